package model

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInvalidInput indicates malformed fit/predict arguments: mismatched
// sample counts, ragged feature matrices, wrong feature width
var ErrInvalidInput = errors.New("model: invalid input")

// ErrNotFitted indicates Predict was called before Fit
var ErrNotFitted = errors.New("model: not fitted")

// walkForwardRatio is the share of samples used as the trailing
// training window when estimating out-of-sample residuals
const walkForwardRatio = 0.7

// Prediction is a point forecast with an optional symmetric
// normal-approximation interval. Lower and Upper are nil when the fit
// produced no out-of-sample residuals; callers must handle the
// interval being absent.
type Prediction struct {
	Point float64
	Lower *float64
	Upper *float64
}

// Regression is an ordinary-least-squares model that estimates
// prediction-interval half-widths from out-of-sample residuals
// computed over a trailing walk-forward window.
//
// A zero Regression is untrained; Fit transitions it to fitted and
// fully resets any previous residual state.
type Regression struct {
	confidenceLevel float64

	coeffs      []float64 // intercept first
	nFeatures   int
	residuals   []float64
	stdResidual float64
	zScore      float64
	fitted      bool
}

// New creates a regression model for the given two-sided confidence
// level (e.g. 0.95)
func New(confidenceLevel float64) (*Regression, error) {
	if confidenceLevel <= 0 || confidenceLevel >= 1 {
		return nil, fmt.Errorf("%w: confidence level %v not in (0, 1)", ErrInvalidInput, confidenceLevel)
	}
	return &Regression{confidenceLevel: confidenceLevel}, nil
}

// Fit estimates the OLS coefficients on the full sample and the
// residual dispersion on trailing out-of-sample predictions.
//
// The walk-forward pass uses a window of floor(0.7*n) samples: for each
// position t from the window end to the last sample, a temporary model
// is fitted on [t-window, t) only and predicts the single held-out
// point t. No residual is computed using information from its own
// future, at the cost of the first 70% of data never contributing a
// residual.
func (m *Regression) Fit(X [][]float64, y []float64) error {
	if err := validateMatrix(X); err != nil {
		return err
	}
	if len(X) != len(y) {
		return fmt.Errorf("%w: X has %d samples, y has %d", ErrInvalidInput, len(X), len(y))
	}

	nSamples := len(X)
	nFeatures := len(X[0])

	coeffs, err := olsFit(X, y)
	if err != nil {
		return err
	}

	m.coeffs = coeffs
	m.nFeatures = nFeatures
	m.residuals = nil
	m.stdResidual = 0
	m.fitted = true

	alpha := 1 - m.confidenceLevel
	m.zScore = distuv.UnitNormal.Quantile(1 - alpha/2)

	windowSize := int(walkForwardRatio * float64(nSamples))
	if windowSize <= nFeatures+1 {
		// Too little data for the trailing fits; leave the interval absent
		return nil
	}

	residuals := make([]float64, 0, nSamples-windowSize)
	for t := windowSize; t < nSamples; t++ {
		temp, err := olsFit(X[t-windowSize:t], y[t-windowSize:t])
		if err != nil {
			return fmt.Errorf("walk-forward fit at position %d: %w", t, err)
		}
		residuals = append(residuals, y[t]-dot(temp, X[t]))
	}

	if len(residuals) >= 2 {
		m.residuals = residuals
		m.stdResidual = stat.StdDev(residuals, nil)
	}

	return nil
}

// Predict produces a point forecast for a single feature vector. When
// residual statistics exist the prediction carries the symmetric
// interval point ± z·σ; otherwise the bounds are nil.
func (m *Regression) Predict(x []float64) (Prediction, error) {
	if !m.fitted {
		return Prediction{}, ErrNotFitted
	}
	if len(x) != m.nFeatures {
		return Prediction{}, fmt.Errorf("%w: feature vector has width %d, model expects %d",
			ErrInvalidInput, len(x), m.nFeatures)
	}

	point := dot(m.coeffs, x)
	pred := Prediction{Point: point}

	if m.residuals != nil {
		lower := point - m.zScore*m.stdResidual
		upper := point + m.zScore*m.stdResidual
		pred.Lower = &lower
		pred.Upper = &upper
	}

	return pred, nil
}

// Residuals returns the out-of-sample residuals from the last fit, or
// nil when the fit produced none
func (m *Regression) Residuals() []float64 {
	if m.residuals == nil {
		return nil
	}
	out := make([]float64, len(m.residuals))
	copy(out, m.residuals)
	return out
}

// StdResidual returns the Bessel-corrected standard deviation of the
// out-of-sample residuals
func (m *Regression) StdResidual() float64 {
	return m.stdResidual
}

// ZScore returns the two-sided z-score for the configured confidence
// level
func (m *Regression) ZScore() float64 {
	return m.zScore
}

// Coefficients returns the fitted coefficient set, intercept first
func (m *Regression) Coefficients() []float64 {
	out := make([]float64, len(m.coeffs))
	copy(out, m.coeffs)
	return out
}

func validateMatrix(X [][]float64) error {
	if len(X) == 0 || len(X[0]) == 0 {
		return fmt.Errorf("%w: empty feature matrix", ErrInvalidInput)
	}
	width := len(X[0])
	for i, row := range X {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has width %d, expected %d", ErrInvalidInput, i, len(row), width)
		}
	}
	return nil
}

// olsFit solves the least-squares problem with an intercept column via
// QR decomposition, returning coefficients with the intercept first
func olsFit(X [][]float64, y []float64) ([]float64, error) {
	n := len(X)
	p := len(X[0])
	if n < p+1 {
		return nil, fmt.Errorf("%w: %d samples cannot determine %d coefficients", ErrInvalidInput, n, p+1)
	}

	a := mat.NewDense(n, p+1, nil)
	for i, row := range X {
		a.Set(i, 0, 1)
		for j, v := range row {
			a.Set(i, j+1, v)
		}
	}

	var qr mat.QR
	qr.Factorize(a)

	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, mat.NewVecDense(n, y)); err != nil {
		return nil, fmt.Errorf("ols solve failed: %w", err)
	}

	coeffs := make([]float64, p+1)
	for i := range coeffs {
		coeffs[i] = beta.AtVec(i)
	}
	return coeffs, nil
}

// dot applies intercept-first coefficients to a feature vector
func dot(coeffs, x []float64) float64 {
	out := coeffs[0]
	for i, v := range x {
		out += coeffs[i+1] * v
	}
	return out
}
