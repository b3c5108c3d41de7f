package fit

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// pseudoInverse returns the Moore-Penrose inverse of a via a thin SVD.
// Singular values below eps*max(m,n)*s_max are treated as zero.
func pseudoInverse(a *mat.Dense) (*mat.Dense, bool) {
	m, n := a.Dims()
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, false
	}
	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	cut := cutoff(values, m, n)
	k := len(values)
	inv := mat.NewDense(n, m, nil)
	scaled := mat.NewDense(n, k, nil)
	scaled.Copy(&v)
	for i, s := range values {
		col := 0.0
		if s > cut {
			col = 1 / s
		}
		for row := 0; row < n; row++ {
			scaled.Set(row, i, scaled.At(row, i)*col)
		}
	}
	inv.Mul(scaled, u.T())
	return inv, true
}

func cutoff(values []float64, m, n int) float64 {
	if len(values) == 0 {
		return 0
	}
	return eps * float64(max(m, n)) * values[0]
}

const eps = 2.220446049250313e-16

// covariance estimates the parameter covariance (J^T J)^+ * 2*cost/(m-n).
// With no residual degrees of freedom every entry is +Inf.
func covariance(jac *mat.Dense, c float64) [][]float64 {
	m, n := jac.Dims()
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	if m <= n {
		fillAll(out, math.Inf(1))
		return out
	}
	var svd mat.SVD
	if !svd.Factorize(jac, mat.SVDThin) {
		fillAll(out, math.Inf(1))
		return out
	}
	values := svd.Values(nil)
	var v mat.Dense
	svd.VTo(&v)
	cut := cutoff(values, m, n)
	s2 := 2 * c / float64(m-n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var sum float64
			for k, s := range values {
				if s > cut {
					sum += v.At(i, k) * v.At(j, k) / (s * s)
				}
			}
			out[i][j] = sum * s2
		}
	}
	return out
}

func stdErrors(cov [][]float64) []float64 {
	out := make([]float64, len(cov))
	for i := range cov {
		out[i] = math.Sqrt(cov[i][i])
	}
	return out
}

func fillAll(a [][]float64, v float64) {
	for i := range a {
		for j := range a[i] {
			a[i][j] = v
		}
	}
}
