package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexesRolling(t *testing.T) {
	splits, err := Indexes(10, 0.5, Rolling, 1)
	require.NoError(t, err)
	require.Len(t, splits, 5)

	for _, s := range splits {
		// Constant train width for rolling windows
		assert.Len(t, s.Train, 5)
		assert.Len(t, s.Test, 1)
		assert.Less(t, s.Train[len(s.Train)-1], s.Test[0])
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, splits[0].Train)
	assert.Equal(t, []int{5}, splits[0].Test)
	assert.Equal(t, []int{4, 5, 6, 7, 8}, splits[4].Train)
	assert.Equal(t, []int{9}, splits[4].Test)
}

func TestIndexesExpanding(t *testing.T) {
	splits, err := Indexes(10, 0.5, Expanding, 2)
	require.NoError(t, err)
	require.Len(t, splits, 4)

	prevLen := 0
	for _, s := range splits {
		// Strictly growing train windows, always anchored at 0
		assert.Equal(t, 0, s.Train[0])
		assert.Greater(t, len(s.Train), prevLen)
		prevLen = len(s.Train)

		assert.Len(t, s.Test, 2)
		assert.Less(t, s.Train[len(s.Train)-1], s.Test[0])
	}

	last := splits[len(splits)-1]
	assert.Equal(t, []int{8, 9}, last.Test)
}

func TestIndexesHorizonBlocks(t *testing.T) {
	for _, method := range []Method{Rolling, Expanding} {
		for _, horizon := range []int{1, 2, 3} {
			splits, err := Indexes(20, 0.6, method, horizon)
			require.NoError(t, err)
			require.NotEmpty(t, splits)

			for _, s := range splits {
				assert.Len(t, s.Test, horizon)
				assert.Less(t, s.Train[len(s.Train)-1], s.Test[0])

				// Test indices are consecutive
				for i := 1; i < len(s.Test); i++ {
					assert.Equal(t, s.Test[i-1]+1, s.Test[i])
				}
			}

			// The last test block reaches the end of the data
			last := splits[len(splits)-1]
			assert.Equal(t, 19, last.Test[len(last.Test)-1])
		}
	}
}

func TestIndexesInvalidInput(t *testing.T) {
	tests := []struct {
		name       string
		n          int
		ratio      float64
		method     Method
		stepsAhead int
	}{
		{name: "unknown method", n: 10, ratio: 0.5, method: "sliding", stepsAhead: 1},
		{name: "empty method", n: 10, ratio: 0.5, method: "", stepsAhead: 1},
		{name: "zero rows", n: 0, ratio: 0.5, method: Rolling, stepsAhead: 1},
		{name: "ratio too small", n: 10, ratio: 0, method: Rolling, stepsAhead: 1},
		{name: "ratio too large", n: 10, ratio: 1, method: Rolling, stepsAhead: 1},
		{name: "zero horizon", n: 10, ratio: 0.5, method: Expanding, stepsAhead: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Indexes(tt.n, tt.ratio, tt.method, tt.stepsAhead)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}
