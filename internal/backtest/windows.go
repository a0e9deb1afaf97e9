// Package backtest generates train/test index windows for validating
// models over an ordered sequence.
package backtest

import (
	"errors"
	"fmt"
)

// Method selects how the training window grows between splits
type Method string

const (
	// Rolling keeps the train window width constant and slides it forward
	Rolling Method = "rolling"
	// Expanding grows the train window from index 0
	Expanding Method = "expanding"
)

// ErrInvalidInput indicates invalid window-generation arguments
var ErrInvalidInput = errors.New("backtest: invalid input")

// Split is one (train, test) pair of row positions into a single
// dataset. Test indices strictly follow train indices; the test block
// holds exactly the prediction horizon's worth of consecutive indices.
type Split struct {
	Train []int
	Test  []int
}

// Indexes produces the ordered sequence of (train, test) index pairs
// covering every valid split point from the initial window through the
// end of the data. n is the dataset row count, ratio the share of rows
// in the initial window, stepsAhead the prediction horizon.
func Indexes(n int, ratio float64, method Method, stepsAhead int) ([]Split, error) {
	if method != Rolling && method != Expanding {
		return nil, fmt.Errorf("%w: invalid method %q, use %q or %q", ErrInvalidInput, method, Rolling, Expanding)
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: dataset size %d", ErrInvalidInput, n)
	}
	if ratio <= 0 || ratio >= 1 {
		return nil, fmt.Errorf("%w: ratio %v not in (0, 1)", ErrInvalidInput, ratio)
	}
	if stepsAhead < 1 {
		return nil, fmt.Errorf("%w: steps ahead %d", ErrInvalidInput, stepsAhead)
	}

	initSize := int(float64(n) * ratio)

	var splits []Split
	for i := initSize; i <= n-stepsAhead; i++ {
		start := 0
		if method == Rolling {
			start = i - initSize
		}

		train := make([]int, 0, i-start)
		for j := start; j < i; j++ {
			train = append(train, j)
		}
		test := make([]int, 0, stepsAhead)
		for j := i; j < i+stepsAhead; j++ {
			test = append(test, j)
		}

		splits = append(splits, Split{Train: train, Test: test})
	}

	return splits, nil
}
