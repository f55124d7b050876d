package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aso824/dcf77decoder/internal/store"
	"github.com/aso824/dcf77decoder/internal/telegram"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

func testRecord(receiver string, minute int) store.Record {
	return store.Record{
		Receiver:  receiver,
		Telegram:  "00011110001100100010110001000010010010010000110000001010000",
		Result:    telegram.Result{Time: telegram.Time{Hour: 12, Minute: minute, Day: 9, Weekday: 4, Month: 1, Year: 14}, SummerTime: 1},
		DecodedAt: time.Date(2014, 1, 9, 11, minute, 0, 0, time.UTC),
	}
}

func testConfig() Config {
	return Config{
		MaxConcurrentPerIP: 10,
		KeepaliveInterval:  30 * time.Second,
		Buffer:             8,
	}
}

// readData reads SSE lines until the next "data:" message and decodes it.
func readData(t *testing.T, r *bufio.Reader, v any) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		if payload, ok := strings.CutPrefix(line, "data: "); ok {
			if err := json.Unmarshal([]byte(payload), v); err != nil {
				t.Fatalf("decoding %q: %v", payload, err)
			}
			return
		}
	}
}

func TestBuildDecodeMessage(t *testing.T) {
	msg := buildDecodeMessage(testRecord("rx1", 11))

	if msg.Type != "decode" {
		t.Errorf("type = %q, want decode", msg.Type)
	}
	if msg.Receiver != "rx1" {
		t.Errorf("receiver = %q, want rx1", msg.Receiver)
	}
	if msg.DecodedAt != "2014-01-09T11:11:00Z" {
		t.Errorf("decoded_at = %q, want 2014-01-09T11:11:00Z", msg.DecodedAt)
	}
	if msg.Result.Time.Minute != 11 {
		t.Errorf("minute = %d, want 11", msg.Result.Time.Minute)
	}
}

func TestBuildSnapshotMessageFilter(t *testing.T) {
	recs := []store.Record{testRecord("rx1", 1), testRecord("rx2", 2)}

	all := buildSnapshotMessage(recs, "")
	if len(all.Receivers) != 2 {
		t.Errorf("receivers = %d, want 2", len(all.Receivers))
	}

	one := buildSnapshotMessage(recs, "rx2")
	if len(one.Receivers) != 1 || one.Receivers[0].Receiver != "rx2" {
		t.Errorf("filtered receivers = %+v, want rx2 only", one.Receivers)
	}

	none := buildSnapshotMessage(nil, "")
	data, _ := json.Marshal(none)
	if !strings.Contains(string(data), `"receivers":[]`) {
		t.Errorf("empty snapshot = %s, want empty array", data)
	}
}

func TestHandleResultsStreamsDecodes(t *testing.T) {
	st := store.New()
	st.Put(testRecord("rx1", 1))

	h := NewHandler(st, testConfig(), testLogger())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleResults))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL+"?receiver=rx2", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content-type = %q, want text/event-stream", ct)
	}

	r := bufio.NewReader(resp.Body)

	var snap snapshotMessage
	readData(t, r, &snap)
	if snap.Type != "snapshot" || len(snap.Receivers) != 0 {
		t.Errorf("snapshot = %+v, want empty snapshot for rx2", snap)
	}

	// rx1 is filtered out; rx2 arrives.
	st.Put(testRecord("rx1", 2))
	st.Put(testRecord("rx2", 3))

	var msg decodeMessage
	readData(t, r, &msg)
	if msg.Receiver != "rx2" || msg.Result.Time.Minute != 3 {
		t.Errorf("message = %+v, want rx2 minute 3", msg)
	}
}

func TestHandleResultsRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentPerIP = 1
	h := NewHandler(store.New(), cfg, testLogger())

	if !h.limiter.acquire("192.0.2.1") {
		t.Fatal("first acquire failed")
	}

	req := httptest.NewRequest("GET", "/api/v1/stream/results", nil)
	req.RemoteAddr = "192.0.2.1:5000"
	w := httptest.NewRecorder()
	h.HandleResults(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestStreamLimiter(t *testing.T) {
	l := newStreamLimiter(2)

	if !l.acquire("a") || !l.acquire("a") {
		t.Fatal("acquire within limit failed")
	}
	if l.acquire("a") {
		t.Error("third acquire for same IP succeeded")
	}
	if !l.acquire("b") {
		t.Error("acquire for other IP failed")
	}
	if l.active() != 3 {
		t.Errorf("active() = %d, want 3", l.active())
	}

	l.release("a")
	l.release("a")
	l.release("a") // extra release is ignored
	if l.count("a") != 0 {
		t.Errorf("count(a) = %d, want 0", l.count("a"))
	}
	if l.active() != 1 {
		t.Errorf("active() = %d, want 1", l.active())
	}
}

func TestStreamLimiterGlobalCap(t *testing.T) {
	l := newStreamLimiter(10)
	l.maxTotal = 2

	l.acquire("a")
	l.acquire("b")
	if l.acquire("c") {
		t.Error("acquire beyond global cap succeeded")
	}
}
