package fit

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/pronyfit/internal/curve"
	"github.com/verte-zerg/pronyfit/internal/model"
)

func logspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Pow(10, lo+(hi-lo)*float64(i)/float64(n-1))
	}
	return out
}

func synth(t *testing.T, spec model.Spec, params, ts []float64) []float64 {
	t.Helper()
	m, err := curve.New(spec)
	require.NoError(t, err)
	return m.Predict(ts, params)
}

func rSquared(t *testing.T, res model.FitResult, ts, ys []float64) float64 {
	t.Helper()
	m, err := curve.New(res.Spec)
	require.NoError(t, err)
	pred := m.Predict(ts, res.Params)
	var mean float64
	for _, y := range ys {
		mean += y
	}
	mean /= float64(len(ys))
	var ssRes, ssTot float64
	for i, y := range ys {
		ssRes += (y - pred[i]) * (y - pred[i])
		ssTot += (y - mean) * (y - mean)
	}
	return 1 - ssRes/ssTot
}

func TestSingleTermComplianceRecovery(t *testing.T) {
	ts := []float64{0.1, 1, 10, 100, 1000}
	ys := make([]float64, len(ts))
	for i, tt := range ts {
		ys[i] = 1.0 + 2.0*(1-math.Exp(-tt/10))
	}

	res, err := Optimize(ts, ys, model.KindPronyCompliance, 1)
	require.NoError(t, err)
	require.Len(t, res.Params, 4)
	require.Len(t, res.StdErrors, 4)
	assert.InDelta(t, 1.0, res.Params[0], 1e-4)
	assert.InDelta(t, 2.0, res.Params[1], 1e-4)
	assert.InDelta(t, 1.0, res.Params[2], 1e-4)
	assert.InDelta(t, 0.0, res.Params[3], 1e-6)
	assert.InDelta(t, 1.0, rSquared(t, res, ts, ys), 1e-9)
	assert.Equal(t, "trf", res.Algorithm)
	for _, p := range res.Params {
		assert.GreaterOrEqual(t, p, 0.0)
	}
}

func TestModulusDefaultPolicySingleRelaxation(t *testing.T) {
	ts := logspace(-2, 4, 25)
	ys := synth(t, model.Spec{Kind: model.KindPronyModulus, Terms: 1}, []float64{3, 2, 1}, ts)

	res, err := Optimize(ts, ys, model.KindPronyModulus, 1)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, res.Params[0], 1e-5)
	assert.InDelta(t, 2.0, res.Params[1], 1e-5)
	assert.InDelta(t, 1.0, res.Params[2], 1e-5)
	assert.InDelta(t, 1.0, rSquared(t, res, ts, ys), 1e-9)
}

func TestTwoTermModulusRecovery(t *testing.T) {
	ts := logspace(-2, 4, 25)
	spec := model.Spec{Kind: model.KindPronyModulus, Terms: 2}
	truth := []float64{3, 1, 0, 1.5, 2}
	ys := synth(t, spec, truth, ts)

	policy := DefaultPolicy(model.KindPronyModulus)
	policy.Guess = InitialGuess{Strategy: GuessLogSpaced}
	res, err := OptimizeWithPolicy(ts, ys, spec, policy, DefaultOptions())
	require.NoError(t, err)
	for i, want := range truth {
		assert.InDelta(t, want, res.Params[i], 1e-5, "param %d", i)
	}
	assert.InDelta(t, 1.0, rSquared(t, res, ts, ys), 1e-9)
}

func TestEmptyInputFails(t *testing.T) {
	_, err := Optimize(nil, nil, model.KindPronyCompliance, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrEmptyInput))
}

func TestLengthMismatchFails(t *testing.T) {
	_, err := Optimize([]float64{1, 2, 3}, []float64{1, 2}, model.KindPronyCompliance, 1)
	assert.ErrorIs(t, err, model.ErrLengthMismatch)
}

func TestNonFiniteInputFails(t *testing.T) {
	_, err := Optimize([]float64{1, 2}, []float64{1, math.NaN()}, model.KindPowerLaw, 0)
	assert.ErrorIs(t, err, model.ErrNonFinite)
}

func TestNonPositiveReducedTimeFails(t *testing.T) {
	_, err := Optimize([]float64{0, 1, 2}, []float64{1, 2, 3}, model.KindPowerLaw, 0)
	assert.ErrorIs(t, err, model.ErrNonPositiveTime)
	_, err = Optimize([]float64{-1, 1, 2}, []float64{1, 2, 3}, model.KindSigmoid, 0)
	assert.ErrorIs(t, err, model.ErrNonPositiveTime)
}

func TestInvalidSpecFails(t *testing.T) {
	_, err := Optimize([]float64{1, 2}, []float64{1, 2}, model.KindPronyCompliance, 0)
	require.Error(t, err)
}

func TestLevenbergMarquardtRejectsBounds(t *testing.T) {
	spec := model.Spec{Kind: model.KindPowerLaw}
	policy := Policy{Guess: InitialGuess{Strategy: GuessZeros}, Bounds: NonNegative(), Algorithm: LevenbergMarquardt}
	_, err := OptimizeWithPolicy([]float64{1, 2, 3, 4}, []float64{1, 2, 3, 4}, spec, policy, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestExplicitGuessArityChecked(t *testing.T) {
	spec := model.Spec{Kind: model.KindPowerLaw}
	policy := DefaultPolicy(model.KindPowerLaw)
	policy.Guess = InitialGuess{Strategy: GuessExplicit, Values: []float64{1, 2}}
	_, err := OptimizeWithPolicy([]float64{1, 2, 3, 4}, []float64{1, 2, 3, 4}, spec, policy, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestIterationBudgetExhausted(t *testing.T) {
	ts := []float64{0.1, 1, 10, 100, 1000}
	ys := make([]float64, len(ts))
	for i, tt := range ts {
		ys[i] = 1.0 + 2.0*(1-math.Exp(-tt/10))
	}
	opts := DefaultOptions()
	opts.MaxIterations = 1
	_, err := OptimizeWithPolicy(ts, ys, model.Spec{Kind: model.KindPronyCompliance, Terms: 1},
		DefaultPolicy(model.KindPronyCompliance), opts)
	assert.ErrorIs(t, err, ErrNoConvergence)
}

func TestPowerLawLevenbergMarquardt(t *testing.T) {
	ts := logspace(-1, 2, 20)
	truth := []float64{1, 2, 0.5}
	ys := synth(t, model.Spec{Kind: model.KindPowerLaw}, truth, ts)

	res, err := Optimize(ts, ys, model.KindPowerLaw, 0)
	require.NoError(t, err)
	assert.Equal(t, "lm", res.Algorithm)
	for i, want := range truth {
		assert.InDelta(t, want, res.Params[i], 1e-5, "param %d", i)
	}
}

func TestModifiedPowerLawDogbox(t *testing.T) {
	ts := logspace(-2, 4, 30)
	truth := []float64{0.5, 0.8, 3, 10}
	ys := synth(t, model.Spec{Kind: model.KindModifiedPowerLaw}, truth, ts)

	res, err := Optimize(ts, ys, model.KindModifiedPowerLaw, 0)
	require.NoError(t, err)
	assert.Equal(t, "dogbox", res.Algorithm)
	for i, want := range truth {
		assert.InDelta(t, want, res.Params[i], 1e-4, "param %d", i)
	}
	assert.Greater(t, rSquared(t, res, ts, ys), 0.999999)
}

func TestDogboxOnCompliance(t *testing.T) {
	ts := []float64{0.1, 1, 10, 100, 1000}
	ys := make([]float64, len(ts))
	for i, tt := range ts {
		ys[i] = 1.0 + 2.0*(1-math.Exp(-tt/10))
	}
	policy := DefaultPolicy(model.KindPronyCompliance)
	policy.Algorithm = Dogbox
	res, err := OptimizeWithPolicy(ts, ys, model.Spec{Kind: model.KindPronyCompliance, Terms: 1}, policy, DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Params[0], 1e-4)
	assert.InDelta(t, 2.0, res.Params[1], 1e-4)
	assert.InDelta(t, 1.0, res.Params[2], 1e-4)
}

func TestGeneralizedPowerLawSingleTerm(t *testing.T) {
	ts := logspace(-2, 4, 30)
	spec := model.Spec{Kind: model.KindGeneralizedPowerLaw, Terms: 1}
	truth := []float64{0.5, 0.6, 2, 10}
	ys := synth(t, spec, truth, ts)

	res, err := Optimize(ts, ys, model.KindGeneralizedPowerLaw, 1)
	require.NoError(t, err)
	for i, want := range truth {
		assert.InDelta(t, want, res.Params[i], 1e-4, "param %d", i)
	}
}

func TestSigmoidNelderMead(t *testing.T) {
	ts := logspace(-4, 4, 40)
	truth := []float64{1, 3, -0.5, 0.6}
	logE := synth(t, model.Spec{Kind: model.KindSigmoid}, truth, ts)

	policy := DefaultPolicy(model.KindSigmoid)
	policy.Guess = InitialGuess{Strategy: GuessExplicit, Values: []float64{0.9, 2.8, -0.4, 0.5}}
	res, err := OptimizeWithPolicy(ts, logE, model.Spec{Kind: model.KindSigmoid}, policy, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "nelder-mead", res.Algorithm)
	assert.Greater(t, rSquared(t, res, ts, logE), 0.999)
	assert.Less(t, curve.SigmoidMSE(res.Params, ts, logE), curve.SigmoidMSE(policy.Guess.Values, ts, logE))
}

func TestNumericJacobian(t *testing.T) {
	ts := logspace(-1, 2, 20)
	truth := []float64{1, 2, 0.5}
	ys := synth(t, model.Spec{Kind: model.KindPowerLaw}, truth, ts)

	opts := DefaultOptions()
	opts.Jacobian = JacobianNumeric
	res, err := OptimizeWithPolicy(ts, ys, model.Spec{Kind: model.KindPowerLaw}, DefaultPolicy(model.KindPowerLaw), opts)
	require.NoError(t, err)
	for i, want := range truth {
		assert.InDelta(t, want, res.Params[i], 1e-4, "param %d", i)
	}
}

func TestStdErrorsInfiniteWithoutDegreesOfFreedom(t *testing.T) {
	ts := []float64{1, 2, 4}
	ys := synth(t, model.Spec{Kind: model.KindPowerLaw}, []float64{1, 2, 0.5}, ts)
	res, err := Optimize(ts, ys, model.KindPowerLaw, 0)
	require.NoError(t, err)
	for _, se := range res.StdErrors {
		assert.True(t, math.IsInf(se, 1))
	}
}

func TestStdErrorsFromNoisyData(t *testing.T) {
	ts := logspace(-1, 2, 30)
	ys := synth(t, model.Spec{Kind: model.KindPowerLaw}, []float64{1, 2, 0.5}, ts)
	for i := range ys {
		if i%2 == 0 {
			ys[i] += 0.01
		} else {
			ys[i] -= 0.01
		}
	}
	res, err := Optimize(ts, ys, model.KindPowerLaw, 0)
	require.NoError(t, err)
	for i, se := range res.StdErrors {
		assert.False(t, math.IsInf(se, 0) || math.IsNaN(se), "stderr %d", i)
		assert.Greater(t, se, 0.0)
		assert.InDelta(t, se*se, res.Covariance[i][i], 1e-15)
	}
}
