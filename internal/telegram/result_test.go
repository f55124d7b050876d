package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCivil(t *testing.T) {
	t.Parallel()

	got, err := exampleResult.Civil(2000)
	require.NoError(t, err)

	want := time.Date(2014, time.January, 9, 11, 11, 0, 0, time.UTC)
	assert.True(t, got.Equal(want), "got %v, want %v", got, want)

	name, offset := got.Zone()
	assert.Equal(t, "CET", name)
	assert.Equal(t, 3600, offset)
}

func TestCivilSummer(t *testing.T) {
	t.Parallel()

	r := Result{
		Time:       Time{Hour: 2, Minute: 30, Day: 28, Weekday: 7, Month: 6, Year: 26},
		SummerTime: 0,
	}

	got, err := r.Civil(2000)
	require.NoError(t, err)

	name, offset := got.Zone()
	assert.Equal(t, "CEST", name)
	assert.Equal(t, 7200, offset)
	assert.Equal(t, time.Sunday, got.Weekday())
}

func TestCivilRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Result)
	}{
		{"hour 24", func(r *Result) { r.Time.Hour = 24 }},
		{"minute 60", func(r *Result) { r.Time.Minute = 60 }},
		{"month 0", func(r *Result) { r.Time.Month = 0 }},
		{"day 0", func(r *Result) { r.Time.Day = 0 }},
		{"february 30", func(r *Result) { r.Time.Month, r.Time.Day = 2, 30 }},
		{"wrong weekday", func(r *Result) { r.Time.Weekday = 5 }},
		{"invalid zone", func(r *Result) { r.SummerTime = -1 }},
		{"both zones", func(r *Result) { r.SummerTime = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := exampleResult
			tt.mutate(&r)

			_, err := r.Civil(2000)
			require.ErrorIs(t, err, ErrRange)
		})
	}
}
