package ml

import "math"

// adam is an Adam optimizer keeping first/second moment estimates per named
// parameter tensor.
type adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	t     int
	m     map[string][]float64
	v     map[string][]float64
}

func newAdam(lr float64) *adam {
	return &adam{
		lr:    lr,
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-8,
		m:     make(map[string][]float64),
		v:     make(map[string][]float64),
	}
}

// tick advances the global step; call once per batch before step calls.
func (a *adam) tick() {
	a.t++
}

// step applies one update to weights in place given their gradients.
func (a *adam) step(name string, w, g []float64) {
	m, ok := a.m[name]
	if !ok {
		m = make([]float64, len(w))
		a.m[name] = m
	}
	v, ok := a.v[name]
	if !ok {
		v = make([]float64, len(w))
		a.v[name] = v
	}

	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for i := range w {
		m[i] = a.beta1*m[i] + (1-a.beta1)*g[i]
		v[i] = a.beta2*v[i] + (1-a.beta2)*g[i]*g[i]
		mHat := m[i] / c1
		vHat := v[i] / c2
		w[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
	}
}
