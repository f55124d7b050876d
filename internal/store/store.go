// Package store keeps the last accepted telegram of every receiver and fans
// new ones out to subscribers.
package store

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aso824/dcf77decoder/internal/telegram"
)

// Record is one accepted telegram.
type Record struct {
	Receiver  string          `json:"receiver" yaml:"receiver"`
	Telegram  string          `json:"telegram" yaml:"telegram"`
	Result    telegram.Result `json:"result" yaml:"result"`
	DecodedAt time.Time       `json:"decoded_at" yaml:"decoded_at"`
}

// Store provides thread-safe access to the last record per receiver.
type Store struct {
	mu      sync.RWMutex
	records map[string]Record
	subs    map[int]chan Record
	nextSub int

	latest  atomic.Pointer[Record]
	version atomic.Uint64
	dropped atomic.Int64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		records: make(map[string]Record),
		subs:    make(map[int]chan Record),
	}
}

// Put replaces the receiver's record and delivers it to every subscriber.
// Subscribers that are not keeping up miss the record instead of blocking
// the caller.
func (s *Store) Put(rec Record) {
	s.mu.Lock()
	s.records[rec.Receiver] = rec
	s.version.Add(1)
	s.latest.Store(&rec)

	for _, ch := range s.subs {
		select {
		case ch <- rec:
		default:
			s.dropped.Add(1)
		}
	}
	s.mu.Unlock()
}

// Restore loads records without notifying subscribers. A restored record
// never replaces a newer one already in the store.
func (s *Store) Restore(recs []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range recs {
		if cur, ok := s.records[rec.Receiver]; ok && !rec.DecodedAt.After(cur.DecodedAt) {
			continue
		}
		s.records[rec.Receiver] = rec
		if l := s.latest.Load(); l == nil || rec.DecodedAt.After(l.DecodedAt) {
			r := rec
			s.latest.Store(&r)
		}
	}
}

// Get returns the receiver's last record.
func (s *Store) Get(receiver string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[receiver]
	return rec, ok
}

// List returns all records ordered by receiver.
func (s *Store) List() []Record {
	s.mu.RLock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Receiver < out[j].Receiver
	})
	return out
}

// Len returns the number of receivers with a record.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Version increases on every Put. Snapshot writers use it to skip
// unchanged state.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (s *Store) Dropped() int64 {
	return s.dropped.Load()
}

// AgeSeconds returns the age of the newest record in seconds.
// Returns -1 if the store is empty.
func (s *Store) AgeSeconds() float64 {
	rec := s.latest.Load()
	if rec == nil {
		return -1
	}
	return time.Since(rec.DecodedAt).Seconds()
}

// Subscribe registers a subscriber with a buffer of size buf. The returned
// function unsubscribes and closes the channel; it is safe to call twice.
func (s *Store) Subscribe(buf int) (<-chan Record, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan Record, buf)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}
