package curve

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/verte-zerg/pronyfit/internal/model"
)

func TestPronyComplianceShortTimeLimit(t *testing.T) {
	for nn := 1; nn <= 6; nn++ {
		m := PronyCompliance(nn)
		p := make([]float64, m.Arity())
		p[0] = 0.7
		for i := 1; i < 2*nn; i += 2 {
			p[i] = float64(i)
			p[i+1] = float64(i) - 3
		}
		p[2*nn+1] = 1e-3
		assert.InDelta(t, 0.7, m.Eval(1e-14, p), 1e-9, "nn=%d", nn)
		assert.Equal(t, 0.7, m.Eval(0, p), "nn=%d", nn)
	}
}

func TestPronyModulusLimits(t *testing.T) {
	for nn := 1; nn <= 6; nn++ {
		m := PronyModulus(nn)
		p := make([]float64, m.Arity())
		p[0] = 10
		sum := 0.0
		for i := 1; i < 2*nn; i += 2 {
			p[i] = 0.5 * float64(i)
			p[i+1] = float64(i) - 2
			sum += p[i]
		}
		assert.Equal(t, 10.0, m.Eval(0, p), "nn=%d", nn)
		assert.InDelta(t, 10-sum, m.Eval(1e30, p), 1e-9, "nn=%d", nn)
	}
}

func TestPronyComplianceKnownValue(t *testing.T) {
	m := PronyCompliance(1)
	p := []float64{1, 2, 1, 0}
	want := 1 + 2*(1-math.Exp(-1))
	assert.InDelta(t, want, m.Eval(10, p), 1e-12)
}

func TestPowerLawFamilies(t *testing.T) {
	assert.InDelta(t, 1+2*math.Pow(4, 0.5), PowerLaw().Eval(4, []float64{1, 2, 0.5}), 1e-12)

	mpl := ModifiedPowerLaw()
	p := []float64{0.5, 0.8, 3, 10}
	assert.InDelta(t, 3, mpl.Eval(1e12, p), 1e-9)
	assert.InDelta(t, 0.5, mpl.Eval(1e-12, p), 1e-6)

	gpl := GeneralizedPowerLaw(2)
	q := []float64{1, 0.5, 2, 10, 3, 1000}
	want := 1 + 2/math.Pow(1+10.0/5, 0.5) + 3/math.Pow(1+1000.0/5, 0.5)
	assert.InDelta(t, want, gpl.Eval(5, q), 1e-12)
}

func TestSigmoidMSE(t *testing.T) {
	p := []float64{1, 2, 0.5, 1}
	ts := []float64{1e-3, 1e-1, 10, 1e3}
	logE := Sigmoid().Predict(ts, p)
	assert.Equal(t, 0.0, SigmoidMSE(p, ts, logE))
	shifted := []float64{1.1, 2, 0.5, 1}
	assert.InDelta(t, 0.01, SigmoidMSE(shifted, ts, logE), 1e-12)
}

func TestGradientsMatchFiniteDifferences(t *testing.T) {
	cases := []struct {
		model Model
		p     []float64
	}{
		{PronyCompliance(2), []float64{1, 2, 0.5, 1.5, 2.5, 1e-4}},
		{PronyModulus(2), []float64{3, 1, 0, 1.5, 2}},
		{Sigmoid(), []float64{1, 2, 0.5, 0.8}},
		{PowerLaw(), []float64{1, 2, 0.3}},
		{ModifiedPowerLaw(), []float64{0.5, 0.8, 3, 10}},
		{GeneralizedPowerLaw(2), []float64{1, 0.5, 2, 10, 3, 1000}},
	}
	for _, tc := range cases {
		for _, ts := range []float64{0.3, 7, 120} {
			got := make([]float64, tc.model.Arity())
			tc.model.Gradient(got, ts, tc.p)
			f := func(x []float64) float64 { return tc.model.Eval(ts, x) }
			want := fd.Gradient(nil, f, tc.p, &fd.Settings{Formula: fd.Central})
			for j := range want {
				assert.InDelta(t, want[j], got[j], 1e-5*(1+math.Abs(want[j])), "%s t=%g p[%d]", tc.model.Spec(), ts, j)
			}
		}
	}
}

func TestDecayDegenerateTimeConstants(t *testing.T) {
	e, de := decay(5, -400)
	assert.Equal(t, 0.0, e)
	assert.Equal(t, 0.0, de)
	e, de = decay(5, 400)
	assert.Equal(t, 1.0, e)
	assert.Equal(t, 0.0, de)
}

func TestNewDispatch(t *testing.T) {
	for _, kind := range model.AllKinds() {
		m, err := New(model.Spec{Kind: kind, Terms: 3})
		require.NoError(t, err)
		assert.Equal(t, kind, m.Spec().Kind)
		assert.Equal(t, m.Spec().Arity(), m.Arity())
		assert.Len(t, m.ParamNames(), m.Arity())
	}
	_, err := New(model.Spec{Kind: model.KindPronyCompliance})
	require.Error(t, err)
}

func TestPronyParamNames(t *testing.T) {
	assert.Equal(t, []string{"D0", "D1", "rho1", "D2", "rho2", "flow"}, PronyCompliance(2).ParamNames())
	assert.Equal(t, []string{"E0", "E1", "rho1"}, PronyModulus(1).ParamNames())
}

func TestEvalPanicsOnArityMismatch(t *testing.T) {
	m := PronyCompliance(2)
	assert.Panics(t, func() { m.Eval(1, []float64{1, 2, 3}) })
	assert.Panics(t, func() { PronyModulus(0) })
}
