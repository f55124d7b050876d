// Package journal persists snapshots of the result store so receivers keep
// their last decoded minute across restarts. Snapshots are YAML documents
// compressed with zstd, one file per snapshot, named by Unix timestamp.
package journal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"github.com/aso824/dcf77decoder/internal/metrics"
	"github.com/aso824/dcf77decoder/internal/store"
)

const (
	filePrefix = "results_"
	fileSuffix = ".yaml.zst"

	snapshotVersion = 1
)

// ErrNoSnapshot is returned by LoadLatest when the directory holds no snapshot.
var ErrNoSnapshot = errors.New("no snapshot files found")

type snapshot struct {
	Version   int            `yaml:"version"`
	WrittenAt time.Time      `yaml:"written_at"`
	Records   []store.Record `yaml:"records"`
}

// Journal manages snapshot files on disk.
type Journal struct {
	dir      string
	maxFiles int
}

// New creates a Journal that stores files in dir and keeps at most maxFiles.
func New(dir string, maxFiles int) *Journal {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Journal{
		dir:      dir,
		maxFiles: maxFiles,
	}
}

// Dir returns the snapshot directory.
func (j *Journal) Dir() string {
	return j.dir
}

// Write saves recs as a snapshot stamped ts and prunes old files beyond
// maxFiles.
func (j *Journal) Write(recs []store.Record, ts time.Time) error {
	if err := os.MkdirAll(j.dir, 0755); err != nil {
		return fmt.Errorf("creating journal dir: %w", err)
	}

	doc, err := yaml.Marshal(snapshot{
		Version:   snapshotVersion,
		WrittenAt: ts.UTC(),
		Records:   recs,
	})
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if _, err := enc.Write(doc); err != nil {
		enc.Close()
		return fmt.Errorf("compressing snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("compressing snapshot: %w", err)
	}

	// Write to a temp file first so a crash never leaves a torn snapshot
	// with a valid name.
	name := fmt.Sprintf("%s%d%s", filePrefix, ts.Unix(), fileSuffix)
	tmp, err := os.CreateTemp(j.dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing snapshot file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(j.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming snapshot file: %w", err)
	}

	return j.prune()
}

// LoadLatest reads the newest snapshot by the timestamp in its file name.
func (j *Journal) LoadLatest() ([]store.Record, time.Time, error) {
	files, err := j.listFiles()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, ErrNoSnapshot
	}

	latest := files[len(files)-1]
	f, err := os.Open(filepath.Join(j.dir, latest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer dec.Close()

	doc, err := io.ReadAll(dec)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("decompressing snapshot %s: %w", latest.name, err)
	}

	var snap snapshot
	if err := yaml.Unmarshal(doc, &snap); err != nil {
		return nil, time.Time{}, fmt.Errorf("decoding snapshot %s: %w", latest.name, err)
	}
	if snap.Version != snapshotVersion {
		return nil, time.Time{}, fmt.Errorf("snapshot %s has version %d, want %d", latest.name, snap.Version, snapshotVersion)
	}

	return snap.Records, latest.ts, nil
}

// Run writes a snapshot of st every interval if the store changed since the
// last write, plus a final one when ctx is cancelled. Records restored at
// startup do not count as a change.
func (j *Journal) Run(ctx context.Context, st *store.Store, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var written uint64
	flush := func() {
		v := st.Version()
		if v == written {
			return
		}
		if err := j.Write(st.List(), time.Now()); err != nil {
			metrics.IncSnapshotWrites("error")
			logger.Warn("snapshot write failed", "component", "journal", "dir", j.dir, "error", err)
			return
		}
		metrics.IncSnapshotWrites("ok")
		logger.Debug("snapshot written", "component", "journal", "receivers", st.Len(), "version", v)
		written = v
	}

	for {
		select {
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
	}
}

type snapshotFile struct {
	name string
	ts   time.Time
}

func (j *Journal) listFiles() ([]snapshotFile, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing journal dir: %w", err)
	}

	var files []snapshotFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		tsStr := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		unix, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, snapshotFile{name: name, ts: time.Unix(unix, 0)})
	}

	sort.Slice(files, func(a, b int) bool {
		return files[a].ts.Before(files[b].ts)
	})

	return files, nil
}

func (j *Journal) prune() error {
	files, err := j.listFiles()
	if err != nil {
		return err
	}
	if len(files) <= j.maxFiles {
		return nil
	}

	for _, f := range files[:len(files)-j.maxFiles] {
		if err := os.Remove(filepath.Join(j.dir, f.name)); err != nil {
			return fmt.Errorf("pruning snapshot %s: %w", f.name, err)
		}
	}
	return nil
}
