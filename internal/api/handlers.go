package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/aso824/dcf77decoder/internal/metrics"
	"github.com/aso824/dcf77decoder/internal/report"
	"github.com/aso824/dcf77decoder/internal/store"
	"github.com/aso824/dcf77decoder/internal/telegram"
)

// decodeRequest carries one telegram either as text or as 0/1 values.
type decodeRequest struct {
	Receiver string `json:"receiver" validate:"required,max=64,excludesall=/#+"`
	Bits     string `json:"bits" validate:"required_without=Values,excluded_with=Values"`
	Values   []int  `json:"values" validate:"required_without=Bits,excluded_with=Bits"`
}

// bits converts the request into a telegram. Length errors carry the
// invalid_length kind like any other decode failure.
func (req decodeRequest) bits() (telegram.Bits, error) {
	if req.Values != nil {
		return telegram.FromInts(req.Values)
	}
	return telegram.Parse(req.Bits)
}

type decodeResponse struct {
	Receiver  string    `json:"receiver"`
	Telegram  string    `json:"telegram"`
	DecodedAt time.Time `json:"decoded_at"`
	RequestID string    `json:"request_id,omitempty"`
	report.Document
}

type receiverSummary struct {
	Receiver   string          `json:"receiver"`
	Telegram   string          `json:"telegram"`
	Result     telegram.Result `json:"result"`
	DecodedAt  time.Time       `json:"decoded_at"`
	AgeSeconds float64         `json:"age_seconds"`
	Age        string          `json:"age"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeHandler validates a submitted telegram. Accepted telegrams are stored,
// which also broadcasts them to streams, and handed to the publisher.
// POST /api/v1/decode
func decodeHandler(logger *slog.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req decodeRequest
		if err := bindJSON(w, r, &req); err != nil {
			metrics.IncDecodes("bad_request")
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		bits, err := req.bits()
		var result telegram.Result
		if err == nil {
			result, err = telegram.Decode(bits)
		}
		if err != nil {
			kind := telegram.Kind(err)
			metrics.IncDecodes(kind)
			logger.Debug("telegram rejected",
				"component", "api",
				"request_id", RequestIDFrom(r.Context()),
				"receiver", req.Receiver,
				"kind", kind,
				"error", err,
			)
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": err.Error(),
				"kind":  kind,
			})
			return
		}

		rec := store.Record{
			Receiver:  req.Receiver,
			Telegram:  bits.String(),
			Result:    result,
			DecodedAt: deps.Now().UTC(),
		}
		deps.Store.Put(rec)
		metrics.IncDecodes("ok")
		metrics.SetReceivers(deps.Store.Len())

		// Publishing must not hold up the response or die with the request.
		go func(ctx context.Context) {
			if err := deps.Publisher.Publish(ctx, rec); err != nil {
				logger.Warn("publish failed",
					"component", "api",
					"receiver", rec.Receiver,
					"error", err,
				)
			}
		}(context.WithoutCancel(r.Context()))

		writeJSON(w, http.StatusOK, decodeResponse{
			Receiver:  rec.Receiver,
			Telegram:  rec.Telegram,
			DecodedAt: rec.DecodedAt,
			RequestID: RequestIDFrom(r.Context()),
			Document:  report.NewDocument(result, deps.Century),
		})
	}
}

// receiversHandler lists every receiver with its last accepted telegram.
// GET /api/v1/receivers
func receiversHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := deps.Now()
		recs := deps.Store.List()

		out := make([]receiverSummary, 0, len(recs))
		for _, rec := range recs {
			out = append(out, receiverSummary{
				Receiver:   rec.Receiver,
				Telegram:   rec.Telegram,
				Result:     rec.Result,
				DecodedAt:  rec.DecodedAt,
				AgeSeconds: now.Sub(rec.DecodedAt).Seconds(),
				Age:        humanize.RelTime(rec.DecodedAt, now, "ago", "from now"),
			})
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"count":     len(out),
			"receivers": out,
		})
	}
}

// lastHandler returns the last accepted telegram of one receiver.
// GET /api/v1/receivers/{id}/last
func lastHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		rec, ok := deps.Store.Get(id)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error":    "no telegram received",
				"receiver": id,
			})
			return
		}

		writeJSON(w, http.StatusOK, decodeResponse{
			Receiver:  rec.Receiver,
			Telegram:  rec.Telegram,
			DecodedAt: rec.DecodedAt,
			Document:  report.NewDocument(rec.Result, deps.Century),
		})
	}
}
