package core

import (
	"fmt"
	"strings"
	"time"
)

// SchemaError is returned when a raw extract lacks a column that the
// canonical schema requires and no drift rule supplies it.
type SchemaError struct {
	Source  string
	File    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("source %s (%s): missing required column(s) %s",
		e.Source, e.File, strings.Join(e.Missing, ", "))
}

// GrainError is returned when a table has duplicate rows on its grain key.
// It always indicates a transform defect and blocks the table's write.
type GrainError struct {
	Table      string
	Grain      []string
	Duplicates int
	SampleKey  string
}

func (e *GrainError) Error() string {
	msg := fmt.Sprintf("table %s: %d duplicate row(s) on grain (%s)",
		e.Table, e.Duplicates, strings.Join(e.Grain, ", "))
	if e.SampleKey != "" {
		msg += "; first duplicate key " + e.SampleKey
	}
	return msg
}

// RangeError is returned when a table's date column leaves the configured window.
type RangeError struct {
	Table  string
	Column string
	Min    time.Time
	Max    time.Time
	Window Window
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("table %s: %s range %s..%s outside window %s",
		e.Table, e.Column, e.Min.Format(DateLayout), e.Max.Format(DateLayout), e.Window)
}
