package timeseries

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrInvalidInput indicates a malformed frame operation (unknown column,
// mismatched lengths, missing required input columns)
var ErrInvalidInput = errors.New("timeseries: invalid input")

// DateLayout is the ISO date format used across the system
const DateLayout = "2006-01-02"

// Frame is an immutable date-indexed table of float64 columns.
// Missing values are represented as NaN. Every transforming method
// returns a new Frame and leaves the receiver untouched.
type Frame struct {
	dates []time.Time
	order []string
	cols  map[string][]float64
}

// New creates a frame from a slice of dates with no value columns.
// Dates are normalized to midnight UTC.
func New(dates []time.Time) *Frame {
	f := &Frame{
		dates: make([]time.Time, len(dates)),
		cols:  map[string][]float64{},
	}
	for i, d := range dates {
		f.dates[i] = Normalize(d)
	}
	return f
}

// Normalize truncates a timestamp to date-only granularity in UTC
func Normalize(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Len returns the number of rows
func (f *Frame) Len() int {
	return len(f.dates)
}

// Date returns the date of row i
func (f *Frame) Date(i int) time.Time {
	return f.dates[i]
}

// Dates returns a copy of the date index
func (f *Frame) Dates() []time.Time {
	out := make([]time.Time, len(f.dates))
	copy(out, f.dates)
	return out
}

// Columns returns column names in insertion order
func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// HasColumn reports whether the frame contains the named column
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Column returns a copy of the named column, or an error if it does
// not exist
func (f *Frame) Column(name string) ([]float64, error) {
	vals, ok := f.cols[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown column %q", ErrInvalidInput, name)
	}
	out := make([]float64, len(vals))
	copy(out, vals)
	return out, nil
}

// Value returns the value of the named column at row i, or NaN if the
// column does not exist
func (f *Frame) Value(name string, i int) float64 {
	vals, ok := f.cols[name]
	if !ok || i < 0 || i >= len(vals) {
		return math.NaN()
	}
	return vals[i]
}

// WithColumn returns a new frame with the named column added or
// replaced. The values slice length must match the row count.
func (f *Frame) WithColumn(name string, values []float64) (*Frame, error) {
	if len(values) != len(f.dates) {
		return nil, fmt.Errorf("%w: column %q has %d values, frame has %d rows",
			ErrInvalidInput, name, len(values), len(f.dates))
	}

	out := f.clone()
	if _, exists := out.cols[name]; !exists {
		out.order = append(out.order, name)
	}
	vals := make([]float64, len(values))
	copy(vals, values)
	out.cols[name] = vals
	return out, nil
}

// Rename returns a new frame with column `from` renamed to `to`,
// preserving column order
func (f *Frame) Rename(from, to string) (*Frame, error) {
	if _, ok := f.cols[from]; !ok {
		return nil, fmt.Errorf("%w: unknown column %q", ErrInvalidInput, from)
	}

	out := f.clone()
	out.cols[to] = out.cols[from]
	delete(out.cols, from)
	for i, name := range out.order {
		if name == from {
			out.order[i] = to
		}
	}
	return out, nil
}

// SortByDate returns a new frame with rows ordered by ascending date
func (f *Frame) SortByDate() *Frame {
	idx := make([]int, len(f.dates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return f.dates[idx[a]].Before(f.dates[idx[b]])
	})
	return f.take(idx)
}

// FilterRows returns a new frame containing only rows for which keep
// returns true
func (f *Frame) FilterRows(keep func(i int) bool) *Frame {
	var idx []int
	for i := range f.dates {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return f.take(idx)
}

// DropNaNRows returns a new frame without rows that hold a NaN in any
// of the given columns
func (f *Frame) DropNaNRows(cols ...string) *Frame {
	return f.FilterRows(func(i int) bool {
		for _, name := range cols {
			if math.IsNaN(f.Value(name, i)) {
				return false
			}
		}
		return true
	})
}

// LeftJoin returns a new frame with the other frame's columns merged in
// by date. Rows come from the receiver only; dates absent from the
// other frame produce NaN values.
func (f *Frame) LeftJoin(other *Frame) *Frame {
	pos := make(map[time.Time]int, len(other.dates))
	for i, d := range other.dates {
		pos[d] = i
	}

	out := f.clone()
	for _, name := range other.order {
		vals := make([]float64, len(out.dates))
		for i, d := range out.dates {
			if j, ok := pos[d]; ok {
				vals[i] = other.cols[name][j]
			} else {
				vals[i] = math.NaN()
			}
		}
		if _, exists := out.cols[name]; !exists {
			out.order = append(out.order, name)
		}
		out.cols[name] = vals
	}
	return out
}

// Shift returns a copy of values displaced by n positions: a positive n
// lags (row i takes the value from row i-n), a negative n leads.
// Vacated positions are NaN. Shifts operate on row order, not on
// calendar distance.
func Shift(values []float64, n int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		j := i - n
		if j < 0 || j >= len(values) {
			out[i] = math.NaN()
		} else {
			out[i] = values[j]
		}
	}
	return out
}

func (f *Frame) clone() *Frame {
	out := &Frame{
		dates: make([]time.Time, len(f.dates)),
		order: make([]string, len(f.order)),
		cols:  make(map[string][]float64, len(f.cols)),
	}
	copy(out.dates, f.dates)
	copy(out.order, f.order)
	for name, vals := range f.cols {
		c := make([]float64, len(vals))
		copy(c, vals)
		out.cols[name] = c
	}
	return out
}

func (f *Frame) take(idx []int) *Frame {
	out := &Frame{
		dates: make([]time.Time, len(idx)),
		order: make([]string, len(f.order)),
		cols:  make(map[string][]float64, len(f.cols)),
	}
	copy(out.order, f.order)
	for i, j := range idx {
		out.dates[i] = f.dates[j]
	}
	for name, vals := range f.cols {
		c := make([]float64, len(idx))
		for i, j := range idx {
			c[i] = vals[j]
		}
		out.cols[name] = c
	}
	return out
}
