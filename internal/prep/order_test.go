package prep

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/pronyfit/internal/model"
)

type fakeTable map[string][]float64

func (f fakeTable) Column(ref string) ([]float64, error) {
	col, ok := f[ref]
	if !ok {
		return nil, fmt.Errorf("no column %q", ref)
	}
	return col, nil
}

func TestOrderSortsByReducedTime(t *testing.T) {
	tr, resp, err := Order([]float64{5, 1, 3}, []float64{50, 10, 30})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 5}, tr)
	assert.Equal(t, []float64{10, 30, 50}, resp)
}

func TestOrderDoesNotMutateInput(t *testing.T) {
	tr := []float64{5, 1, 3}
	resp := []float64{50, 10, 30}
	_, _, err := Order(tr, resp)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 1, 3}, tr)
	assert.Equal(t, []float64{50, 10, 30}, resp)
}

func TestOrderIsIdempotent(t *testing.T) {
	tr := []float64{9, 2, 2, 7, 0.5, 2}
	resp := []float64{1, 2, 3, 4, 5, 6}
	once, onceResp, err := Order(tr, resp)
	require.NoError(t, err)
	twice, twiceResp, err := Order(once, onceResp)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
	assert.Equal(t, onceResp, twiceResp)
}

func TestOrderKeepsTiesInInputOrder(t *testing.T) {
	_, resp, err := Order([]float64{2, 1, 2, 2}, []float64{20, 10, 21, 22})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 21, 22}, resp)
}

func TestOrderLengthMismatch(t *testing.T) {
	_, _, err := Order([]float64{1, 2, 3}, []float64{1, 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrLengthMismatch))
}

func TestOrderEmpty(t *testing.T) {
	tr, resp, err := Order(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, tr)
	assert.Empty(t, resp)
}

func TestOrderTable(t *testing.T) {
	tbl := fakeTable{"J": {50, 10, 30}}
	tr, resp, err := OrderTable([]float64{5, 1, 3}, tbl, "J")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 5}, tr)
	assert.Equal(t, []float64{10, 30, 50}, resp)

	_, _, err = OrderTable([]float64{5, 1, 3}, tbl, "E")
	require.Error(t, err)

	_, _, err = OrderTable([]float64{5, 1}, tbl, "J")
	assert.ErrorIs(t, err, model.ErrLengthMismatch)
}

func TestPairsAndSplit(t *testing.T) {
	samples, err := Pairs([]float64{1, 2}, []float64{10, 20})
	require.NoError(t, err)
	assert.Equal(t, []model.Sample{{ReducedTime: 1, Response: 10}, {ReducedTime: 2, Response: 20}}, samples)
	tr, resp := Split(samples)
	assert.Equal(t, []float64{1, 2}, tr)
	assert.Equal(t, []float64{10, 20}, resp)

	_, err = Pairs([]float64{1}, nil)
	assert.ErrorIs(t, err, model.ErrLengthMismatch)
}
