package speech

import (
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// burg fits an all-pole model of order m to x with Burg's maximum entropy
// method. It returns the coefficients a[0..m-1] of the predictor
// x[n] ~ sum a[k] x[n-1-k] and the residual power.
func burg(x []float64, m int) ([]float64, float64) {
	n := len(x)
	a := make([]float64, m)
	if n <= m || m < 1 {
		return a, 0
	}

	b1 := make([]float64, n)
	b2 := make([]float64, n)
	prev := make([]float64, m)

	p := 0.0
	for _, v := range x {
		p += v * v
	}
	xms := p / float64(n)
	if xms <= 0 {
		return a, 0
	}

	b1[0] = x[0]
	b2[n-2] = x[n-1]
	for j := 1; j < n-1; j++ {
		b1[j] = x[j]
		b2[j-1] = x[j]
	}

	for k := 0; k < m; k++ {
		num, denum := 0.0, 0.0
		for j := 0; j < n-k-1; j++ {
			num += b1[j] * b2[j]
			denum += b1[j]*b1[j] + b2[j]*b2[j]
		}
		if denum <= 0 {
			return a, 0
		}
		a[k] = 2 * num / denum
		xms *= 1 - a[k]*a[k]
		for i := 0; i < k; i++ {
			a[i] = prev[i] - a[k]*prev[k-i-1]
		}
		if k == m-1 {
			break
		}
		copy(prev[:k+1], a[:k+1])
		for j := 0; j < n-k-2; j++ {
			b1[j] -= prev[k] * b2[j]
			b2[j] = b2[j+1] - prev[k]*b1[j+1]
		}
	}
	return a, xms
}

// predictorRoots returns the roots of z^m - a[0] z^(m-1) - ... - a[m-1] as
// the eigenvalues of its companion matrix.
func predictorRoots(a []float64) []complex128 {
	m := len(a)
	if m == 0 {
		return nil
	}
	c := mat.NewDense(m, m, nil)
	for j, v := range a {
		c.Set(0, j, v)
	}
	for i := 1; i < m; i++ {
		c.Set(i, i-1, 1)
	}
	var eig mat.Eigen
	if ok := eig.Factorize(c, mat.EigenNone); !ok {
		return nil
	}
	return eig.Values(nil)
}

// polesToFormants converts predictor roots at the given sample rate into
// formant candidates sorted by frequency. Roots outside the unit circle are
// reflected inside, only the upper half plane is used, and candidates within
// safetyMargin Hz of 0 or the Nyquist frequency are dropped.
func polesToFormants(roots []complex128, sampleRate, safetyMargin float64) []FormantPoint {
	nyquist := 0.5 * sampleRate
	var out []FormantPoint
	for _, z := range roots {
		if imag(z) < 0 {
			continue
		}
		if cmplx.Abs(z) > 1 {
			z = 1 / cmplx.Conj(z)
		}
		r := cmplx.Abs(z)
		if r == 0 {
			continue
		}
		f := math.Abs(math.Atan2(imag(z), real(z))) * nyquist / math.Pi
		if f <= safetyMargin || f >= nyquist-safetyMargin {
			continue
		}
		out = append(out, FormantPoint{
			Frequency: f,
			Bandwidth: -math.Log(r) * nyquist / math.Pi,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Frequency < out[j].Frequency })
	return out
}
