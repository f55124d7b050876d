package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aso824/dcf77decoder/internal/telegram"
)

func exampleResult(t *testing.T) telegram.Result {
	t.Helper()

	r, err := telegram.DecodeString("00011110001100100010110001000010010010010000110000001010000")
	require.NoError(t, err)
	return r
}

func TestRenderText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, exampleResult(t), Options{Format: FormatText, NoColor: true}))

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
	assert.Equal(t, want, buf.String())
}

func TestRenderTextTimeChangeAndBackup(t *testing.T) {
	t.Parallel()

	r := exampleResult(t)
	r.TimeChange = 1
	r.Antenna = 1
	r.SummerTime = 0

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, r, Options{NoColor: true}))

	out := buf.String()
	assert.Contains(t, out, "Time: summer (next hour is time change)\n")
	assert.Contains(t, out, "Antenna: 1 (backup)\n")
}

func TestRenderTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, exampleResult(t), Options{Format: FormatTable, NoColor: true}))

	out := buf.String()
	assert.Contains(t, out, "09.01.14")
	assert.Contains(t, out, "4 (thursday)")
	assert.Contains(t, out, "12:11")
	assert.Contains(t, out, "2014-01-09T12:11:00+01:00")
}

func TestRenderJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, exampleResult(t), Options{Format: FormatJSON}))

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, exampleResult(t), doc.Result)
	assert.Equal(t, "thursday", doc.WeekdayName)
	assert.Equal(t, "winter", doc.Season)
	assert.Equal(t, "normal", doc.AntennaName)
	assert.Equal(t, "2014-01-09T12:11:00+01:00", doc.Civil)
}

func TestNewDocumentWithoutCivil(t *testing.T) {
	t.Parallel()

	r := exampleResult(t)
	r.Time.Minute = 60

	doc := NewDocument(r, DefaultCentury)
	assert.Empty(t, doc.Civil)
}

func TestRenderRejected(t *testing.T) {
	t.Parallel()

	err := &telegram.DecodeError{Kind: telegram.ErrParity, Field: "hour", Bit: 35}

	var text bytes.Buffer
	require.NoError(t, RenderRejected(&text, err, Options{NoColor: true}))
	assert.Equal(t, RejectedMessage+"\n", text.String())

	var js bytes.Buffer
	require.NoError(t, RenderRejected(&js, err, Options{Format: FormatJSON}))
	var got map[string]string
	require.NoError(t, json.Unmarshal(js.Bytes(), &got))
	assert.Equal(t, "parity", got["kind"])
	assert.Equal(t, RejectedMessage, got["error"])

	js.Reset()
	require.NoError(t, RenderRejected(&js, errors.New("other"), Options{Format: FormatJSON}))
	assert.Contains(t, js.String(), `"kind":""`)
}

func TestWeekdayName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "monday", WeekdayName(1))
	assert.Equal(t, "sunday", WeekdayName(7))
	assert.Equal(t, "", WeekdayName(0))
	assert.Equal(t, "", WeekdayName(8))
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"text", "table", "json"} {
		f, err := ParseFormat(s)
		require.NoError(t, err)
		assert.Equal(t, Format(s), f)
	}

	_, err := ParseFormat("xml")
	require.Error(t, err)
}
