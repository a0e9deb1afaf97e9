package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"fxforecast/internal/calendar"
	"fxforecast/internal/timeseries"
)

// Horizons is the fixed number of steps ahead the system forecasts
const Horizons = 3

// ErrNoPriorDate indicates that the cutoff date has no earlier match in
// the data. Silently picking an arbitrary date would corrupt the
// train/test boundary, so this is raised instead of defaulted.
var ErrNoPriorDate = errors.New("pipeline: no date before cutoff")

// ErrInsufficientFutureDates indicates fewer than Horizons dates exist
// after the cutoff in the union of table and calendar dates
var ErrInsufficientFutureDates = errors.New("pipeline: insufficient dates after cutoff")

// TrainInferenceSplit partitions a preprocessed frame at a cutoff date.
//
// If the cutoff is absent from the frame, the closest earlier date
// present is substituted. The training set holds every row dated at or
// before the effective cutoff; the inference set holds the single row
// dated exactly at it. The next Horizons distinct dates after the
// cutoff, taken from the sorted union of frame dates and calendar
// dates, are returned as ISO strings.
func TrainInferenceSplit(frame *timeseries.Frame, cutoff string, cal calendar.Calendar) (train, inference *timeseries.Frame, nextDates []string, err error) {
	frame = frame.SortByDate()

	cutoffDate, err := time.Parse(timeseries.DateLayout, cutoff)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: malformed cutoff date %q", timeseries.ErrInvalidInput, cutoff)
	}
	cutoffDate = timeseries.Normalize(cutoffDate)

	effective, err := effectiveCutoff(frame, cutoffDate)
	if err != nil {
		return nil, nil, nil, err
	}

	train = frame.FilterRows(func(i int) bool {
		return !frame.Date(i).After(effective)
	})
	inference = frame.FilterRows(func(i int) bool {
		return frame.Date(i).Equal(effective)
	})

	nextDates, err = horizonDates(frame, cal, effective)
	if err != nil {
		return nil, nil, nil, err
	}

	return train, inference, nextDates, nil
}

// effectiveCutoff returns the cutoff itself when present in the frame,
// otherwise the closest earlier frame date
func effectiveCutoff(frame *timeseries.Frame, cutoff time.Time) (time.Time, error) {
	var closest time.Time
	found := false
	for i := 0; i < frame.Len(); i++ {
		d := frame.Date(i)
		if d.Equal(cutoff) {
			return cutoff, nil
		}
		if d.Before(cutoff) && (!found || d.After(closest)) {
			closest = d
			found = true
		}
	}
	if !found {
		return time.Time{}, fmt.Errorf("%w (cutoff %s)", ErrNoPriorDate, cutoff.Format(timeseries.DateLayout))
	}
	return closest, nil
}

// horizonDates returns the Horizons distinct dates that follow the
// cutoff in the sorted union of frame and calendar dates
func horizonDates(frame *timeseries.Frame, cal calendar.Calendar, cutoff time.Time) ([]string, error) {
	set := make(map[time.Time]struct{})
	for i := 0; i < frame.Len(); i++ {
		set[frame.Date(i)] = struct{}{}
	}
	for _, d := range cal.Dates() {
		set[d] = struct{}{}
	}

	union := make([]time.Time, 0, len(set))
	for d := range set {
		union = append(union, d)
	}
	sort.Slice(union, func(i, j int) bool { return union[i].Before(union[j]) })

	var future []string
	for _, d := range union {
		if d.After(cutoff) {
			future = append(future, d.Format(timeseries.DateLayout))
			if len(future) == Horizons {
				return future, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: found %d, need %d", ErrInsufficientFutureDates, len(future), Horizons)
}
