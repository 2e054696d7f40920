package core_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/mktwh/pkg/core"
)

func TestParseWindow(t *testing.T) {
	w, err := core.ParseWindow("2023-01-01", "2024-06-30")
	require.NoError(t, err)
	assert.Equal(t, 547, w.Days())
	assert.Equal(t, "2023-01-01..2024-06-30", w.String())

	_, err = core.ParseWindow("2023-13-01", "2024-06-30")
	assert.ErrorContains(t, err, "invalid window start")

	_, err = core.ParseWindow("2024-01-02", "2024-01-01")
	assert.ErrorContains(t, err, "before start")
}

func TestWindow_SingleDay(t *testing.T) {
	w := core.MustWindow("2024-02-29", "2024-02-29")
	assert.Equal(t, 1, w.Days())

	var days []string
	w.Each(func(d time.Time) { days = append(days, d.Format(core.DateLayout)) })
	assert.Equal(t, []string{"2024-02-29"}, days)
}

func TestWindow_Contains(t *testing.T) {
	w := core.MustWindow("2023-01-01", "2023-01-31")
	loc := time.FixedZone("UTC-5", -5*3600)

	assert.True(t, w.Contains(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2023, 1, 31, 23, 59, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2023, 1, 31, 22, 0, 0, 0, loc)), "civil date is taken in the value's own zone")
	assert.False(t, w.Contains(time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestNewWindow_TruncatesTime(t *testing.T) {
	w, err := core.NewWindow(time.Date(2023, 3, 1, 15, 4, 5, 0, time.UTC), time.Date(2023, 3, 2, 1, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, 2, w.Days())

	_, err = core.NewWindow(time.Time{}, time.Now())
	assert.Error(t, err)
}

func TestStreams(t *testing.T) {
	assert.Len(t, core.Streams, 6)
	for _, s := range core.Streams {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, core.Stream("tv").Valid())
}

func TestErrors(t *testing.T) {
	err := &core.SchemaError{Source: "paid_social_fb", File: "fb.csv", Missing: []string{"spend", "date"}}
	assert.Equal(t, "source paid_social_fb (fb.csv): missing required column(s) spend, date", err.Error())

	grain := &core.GrainError{Table: "dim_date", Grain: []string{"date"}, Duplicates: 2, SampleKey: "2023-01-01"}
	assert.True(t, strings.HasSuffix(grain.Error(), "first duplicate key 2023-01-01"))

	w := core.MustWindow("2023-01-01", "2023-01-31")
	rng := &core.RangeError{Table: "fact_ooh_daily", Column: "date", Min: w.Start, Max: w.End.AddDate(0, 0, 1), Window: w}
	assert.Contains(t, rng.Error(), "2023-01-01..2023-02-01 outside window 2023-01-01..2023-01-31")
}
