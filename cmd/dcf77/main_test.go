package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aso824/dcf77decoder/internal/config"
	"github.com/aso824/dcf77decoder/internal/journal"
	"github.com/aso824/dcf77decoder/internal/report"
	"github.com/aso824/dcf77decoder/internal/store"
	"github.com/aso824/dcf77decoder/internal/telegram"
)

const exampleTelegram = "00011110001100100010110001000010010010010000110000001010000"

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDecodeArgument(t *testing.T) {
	out, err := execute(t, "", "decode", "--no-color", exampleTelegram)
	require.NoError(t, err)

	want := strings.Join([]string{
		"== Received data ==",
		"Date: 9.1.14",
		"It's 4 day of week (thursday)",
		"Hour: 12:11",
		"Time: winter",
		"Antenna: 0 (normal)",
		"Weather information is encrypted",
		"",
	}, "\n")
	assert.Equal(t, want, out)
}

func TestDecodeStdinPrompt(t *testing.T) {
	out, err := execute(t, "  "+exampleTelegram+"\ntrailing", "decode", "--no-color")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, prompt+"== Received data =="), out)
	assert.Contains(t, out, "Hour: 12:11")
}

func TestDecodeRejected(t *testing.T) {
	bad := "1" + exampleTelegram[1:]

	out, err := execute(t, "", "decode", "--no-color", bad)
	require.ErrorIs(t, err, errRejected)
	assert.Equal(t, report.RejectedMessage+"\n", out)

	out, err = execute(t, "", "decode", "--format", "json", "0101")
	require.ErrorIs(t, err, errRejected)
	var doc map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "invalid_length", doc["kind"])
}

func TestDecodeJSON(t *testing.T) {
	out, err := execute(t, exampleTelegram, "decode", "--format", "json")
	require.NoError(t, err)

	var doc report.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 12, doc.Result.Time.Hour)
	assert.Equal(t, "2014-01-09T12:11:00+01:00", doc.Civil)
}

func TestDecodeEmptyStdin(t *testing.T) {
	_, err := execute(t, "", "decode", "--no-color")
	require.Error(t, err)
	assert.NotErrorIs(t, err, errRejected)
}

func TestDecodeUnknownFormat(t *testing.T) {
	_, err := execute(t, "", "decode", "--format", "xml", exampleTelegram)
	require.ErrorContains(t, err, "unknown format")
}

func TestEncodeReproducesExample(t *testing.T) {
	out, err := execute(t, "", "encode",
		"--hour", "12", "--minute", "11",
		"--day", "9", "--weekday", "4", "--month", "1", "--year", "14")
	require.NoError(t, err)

	bits := strings.TrimSpace(out)
	require.Len(t, bits, telegram.Length)
	// The example carries meteo bits the encoder leaves at zero.
	assert.Equal(t, exampleTelegram[15:], bits[15:])

	r, err := telegram.DecodeString(bits)
	require.NoError(t, err)
	assert.Equal(t, 1, r.SummerTime)
}

func TestEncodeFlags(t *testing.T) {
	out, err := execute(t, "", "encode",
		"--hour", "23", "--minute", "59", "--day", "31", "--weekday", "7",
		"--month", "12", "--year", "99", "--summer", "--antenna", "1", "--time-change", "1")
	require.NoError(t, err)

	r, err := telegram.DecodeString(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, telegram.Result{
		Time:       telegram.Time{Hour: 23, Minute: 59, Day: 31, Weekday: 7, Month: 12, Year: 99},
		Antenna:    1,
		TimeChange: 1,
		SummerTime: 0,
	}, r)
}

func TestEncodeRejectsUnrepresentable(t *testing.T) {
	for _, args := range [][]string{
		{"--year", "123"},
		{"--month", "13"},
		{"--antenna", "2"},
		{"--hour", "25"},
	} {
		_, err := execute(t, "", append([]string{"encode"}, args...)...)
		assert.Error(t, err, args)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "dcf77 dev"), out)
}

func TestRunServeRestoresAndFlushes(t *testing.T) {
	dir := t.TempDir()
	jr := journal.New(dir, 5)
	decodedAt := time.Date(2014, 1, 9, 11, 11, 0, 0, time.UTC)
	r, err := telegram.DecodeString(exampleTelegram)
	require.NoError(t, err)
	require.NoError(t, jr.Write([]store.Record{{
		Receiver:  "rx1",
		Telegram:  exampleTelegram,
		Result:    r,
		DecodedAt: decodedAt,
	}}, decodedAt))

	cfg := &config.Config{
		Server: config.ServerConfig{Addr: "127.0.0.1:0", Century: 2000},
		Stream: config.StreamConfig{MaxConcurrentPerIP: 1, KeepaliveInterval: time.Second, Buffer: 1},
		Journal: config.JournalConfig{
			Enabled:  true,
			Dir:      dir,
			MaxFiles: 5,
			Interval: time.Hour,
		},
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, runServe(ctx, cfg, logger))

	recs, _, err := jr.LoadLatest()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "rx1", recs[0].Receiver)
}
