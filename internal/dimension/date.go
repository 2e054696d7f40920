// Package dimension builds the conformed dimension tables.
package dimension

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/mktwh/internal/table"
	"github.com/leapstack-labs/mktwh/internal/warehouse"
	"github.com/leapstack-labs/mktwh/pkg/core"
)

// SeasonRegular is the flag for days outside every season window.
const SeasonRegular = "regular"

// MonthDay is a calendar day independent of year.
type MonthDay struct {
	Month time.Month
	Day   int
}

func (md MonthDay) before(o MonthDay) bool {
	if md.Month != o.Month {
		return md.Month < o.Month
	}
	return md.Day < o.Day
}

// Season is a named, inclusive (month, day) window.
type Season struct {
	Name string
	From MonthDay
	To   MonthDay
}

// Contains reports whether t's month and day fall inside the window.
func (s Season) Contains(t time.Time) bool {
	md := MonthDay{Month: t.Month(), Day: t.Day()}
	return !md.before(s.From) && !s.To.before(md)
}

// DefaultSeasons are evaluated in order; the first match wins.
var DefaultSeasons = []Season{
	{Name: "back_to_school", From: MonthDay{time.July, 15}, To: MonthDay{time.September, 15}},
	{Name: "black_friday_holiday", From: MonthDay{time.November, 15}, To: MonthDay{time.December, 10}},
}

// ValidateSeasons checks that every window is ordered within a year and that
// no two windows overlap.
func ValidateSeasons(seasons []Season) error {
	for i, s := range seasons {
		if s.Name == "" || s.Name == SeasonRegular {
			return fmt.Errorf("season %d: invalid name %q", i, s.Name)
		}
		if s.To.before(s.From) {
			return fmt.Errorf("season %s: window ends before it starts", s.Name)
		}
		for _, o := range seasons[:i] {
			if !s.To.before(o.From) && !o.To.before(s.From) {
				return fmt.Errorf("seasons %s and %s overlap", o.Name, s.Name)
			}
		}
	}
	return nil
}

// SeasonOf returns the flag for a day.
func SeasonOf(seasons []Season, t time.Time) string {
	for _, s := range seasons {
		if s.Contains(t) {
			return s.Name
		}
	}
	return SeasonRegular
}

// DateSchema is the column layout of dim_date.
var DateSchema = table.Schema{
	{Name: "date", Kind: table.Date},
	{Name: "day_of_week", Kind: table.String},
	{Name: "day_of_week_num", Kind: table.Int},
	{Name: "week_start_date", Kind: table.Date},
	{Name: "month", Kind: table.Int},
	{Name: "month_name", Kind: table.String},
	{Name: "quarter", Kind: table.Int},
	{Name: "year", Kind: table.Int},
	{Name: "is_weekend", Kind: table.Bool},
	{Name: "season_flag", Kind: table.String},
}

// isoWeekday maps Sunday..Saturday to 7, 1..6.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// BuildDate returns one row per day of the window with calendar attributes.
func BuildDate(w core.Window, seasons []Season) (*table.Table, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("dim_date: %w", err)
	}
	if err := ValidateSeasons(seasons); err != nil {
		return nil, fmt.Errorf("dim_date: %w", err)
	}
	entry := warehouse.MustLookup(warehouse.DimDate)
	t := table.New(entry.Name, DateSchema, entry.Grain...)
	t.Rows = make([]table.Row, 0, w.Days())
	w.Each(func(d time.Time) {
		dow := isoWeekday(d)
		t.Append(table.Row{
			d,
			d.Weekday().String(),
			int64(dow),
			d.AddDate(0, 0, 1-dow),
			int64(d.Month()),
			d.Month().String(),
			int64((int(d.Month())-1)/3 + 1),
			int64(d.Year()),
			dow >= 6,
			SeasonOf(seasons, d),
		})
	})
	return t, nil
}
