// Package stream implements Server-Sent Events (SSE) streaming of accepted
// telegrams. Clients connect via GET /api/v1/stream/results and receive every
// telegram accepted by the decode endpoint, optionally filtered by receiver.
//
// SSE message format:
//
//	data: {"type":"decode","receiver":"rx1","decoded_at":"...","result":{...}}\n\n
//
// First message is always a snapshot of the last result per receiver:
//
//	data: {"type":"snapshot","receivers":[...]}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval to prevent timeout.
// Reconnecting clients receive a fresh snapshot on each connection.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/aso824/dcf77decoder/internal/httputil"
	"github.com/aso824/dcf77decoder/internal/metrics"
	"github.com/aso824/dcf77decoder/internal/store"
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	Buffer             int           // Per-stream record buffer (default: 16).
	TrustProxy         bool          // Take the client IP from proxy headers.
}

// Handler manages SSE streaming connections.
type Handler struct {
	store   *store.Store
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(st *store.Store, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP < 1 {
		config.MaxConcurrentPerIP = 10
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	if config.Buffer < 1 {
		config.Buffer = 16
	}
	return &Handler{
		store:   st,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP),
		logger:  logger,
	}
}

// HandleResults serves the SSE stream of accepted telegrams.
// GET /api/v1/stream/results?receiver=rx1
func (h *Handler) HandleResults(w http.ResponseWriter, r *http.Request) {
	receiver := r.URL.Query().Get("receiver")

	// Rate limiting: enforce concurrent stream limit per IP.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"component", "stream",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "too many concurrent streams"})
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"component", "stream",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"receiver", receiver,
	)

	// Subscribe before the snapshot so nothing accepted in between is lost.
	records, unsubscribe := h.store.Subscribe(h.config.Buffer)

	defer func() {
		unsubscribe()
		h.limiter.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"component", "stream",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's default WriteTimeout for this long-lived connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "component", "stream", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  h.logger,
	}

	// Jittered retry interval (3-7s) spreads reconnects after a restart.
	retryMs := 3000 + rand.Intn(4000)
	fmt.Fprintf(w, "retry: %d\n\n", retryMs)
	flusher.Flush()

	if err := c.sendJSON(buildSnapshotMessage(h.store.List(), receiver)); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (snapshot)", "component", "stream", "remote_ip", ip, "error", err)
		return
	}

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case rec, ok := <-records:
			if !ok {
				return
			}
			if receiver != "" && rec.Receiver != receiver {
				continue
			}
			if err := c.sendJSON(buildDecodeMessage(rec)); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "component", "stream", "remote_ip", ip, "error", err)
				return
			}
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "component", "stream", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

func buildSnapshotMessage(recs []store.Record, receiver string) snapshotMessage {
	msg := snapshotMessage{Type: "snapshot", Receivers: []decodeMessage{}}
	for _, rec := range recs {
		if receiver != "" && rec.Receiver != receiver {
			continue
		}
		msg.Receivers = append(msg.Receivers, buildDecodeMessage(rec))
	}
	return msg
}

func buildDecodeMessage(rec store.Record) decodeMessage {
	return decodeMessage{
		Type:      "decode",
		Receiver:  rec.Receiver,
		DecodedAt: rec.DecodedAt.UTC().Format(time.RFC3339),
		Telegram:  rec.Telegram,
		Result:    rec.Result,
	}
}
