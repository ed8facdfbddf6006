package ml

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// lstmLayer is a single LSTM layer processing one sequence at a time.
//
// Weights are flat row-major slices. The pre-activation vector for one step
// has length 4*Hidden, chunked as [input | forget | cell | output] gates at
// offsets 0, H, 2H, 3H.
type lstmLayer struct {
	In     int       `json:"in"`
	Hidden int       `json:"hidden"`
	Wx     []float64 `json:"wx"` // (4H x In)
	Wh     []float64 `json:"wh"` // (4H x Hidden)
	B      []float64 `json:"b"`  // 4H
}

// lstmCache holds per-step activations needed for the backward pass.
type lstmCache struct {
	xs             [][]float64
	gi, gf, gg, og [][]float64
	cs, hs, tc     [][]float64
}

func newLSTMLayer(in, hidden int, rng *rand.Rand) *lstmLayer {
	l := &lstmLayer{
		In:     in,
		Hidden: hidden,
		Wx:     make([]float64, 4*hidden*in),
		Wh:     make([]float64, 4*hidden*hidden),
		B:      make([]float64, 4*hidden),
	}
	xLimit := math.Sqrt(6.0 / float64(in+hidden))
	hLimit := math.Sqrt(3.0 / float64(hidden))
	for i := range l.Wx {
		l.Wx[i] = (rng.Float64()*2 - 1) * xLimit
	}
	for i := range l.Wh {
		l.Wh[i] = (rng.Float64()*2 - 1) * hLimit
	}
	// forget gate bias starts open
	for u := hidden; u < 2*hidden; u++ {
		l.B[u] = 1
	}
	return l
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// forward runs the layer over a sequence and returns the hidden state at
// every step plus the cache for backprop.
func (l *lstmLayer) forward(seq [][]float64) ([][]float64, *lstmCache) {
	h := l.Hidden
	steps := len(seq)
	cache := &lstmCache{
		xs: seq,
		gi: make([][]float64, steps),
		gf: make([][]float64, steps),
		gg: make([][]float64, steps),
		og: make([][]float64, steps),
		cs: make([][]float64, steps),
		hs: make([][]float64, steps),
		tc: make([][]float64, steps),
	}

	hPrev := make([]float64, h)
	cPrev := make([]float64, h)
	z := make([]float64, 4*h)

	for t, x := range seq {
		for u := 0; u < 4*h; u++ {
			z[u] = l.B[u] +
				floats.Dot(l.Wx[u*l.In:(u+1)*l.In], x) +
				floats.Dot(l.Wh[u*h:(u+1)*h], hPrev)
		}

		gi := make([]float64, h)
		gf := make([]float64, h)
		gg := make([]float64, h)
		og := make([]float64, h)
		cs := make([]float64, h)
		hs := make([]float64, h)
		tc := make([]float64, h)
		for u := 0; u < h; u++ {
			gi[u] = sigmoid(z[u])
			gf[u] = sigmoid(z[h+u])
			gg[u] = math.Tanh(z[2*h+u])
			og[u] = sigmoid(z[3*h+u])
			cs[u] = gf[u]*cPrev[u] + gi[u]*gg[u]
			tc[u] = math.Tanh(cs[u])
			hs[u] = og[u] * tc[u]
		}
		cache.gi[t], cache.gf[t], cache.gg[t], cache.og[t] = gi, gf, gg, og
		cache.cs[t], cache.hs[t], cache.tc[t] = cs, hs, tc
		hPrev, cPrev = hs, cs
	}
	return cache.hs, cache
}

// lstmGrads accumulates weight gradients across samples of a batch.
type lstmGrads struct {
	dWx, dWh, dB []float64
}

func newLSTMGrads(l *lstmLayer) *lstmGrads {
	return &lstmGrads{
		dWx: make([]float64, len(l.Wx)),
		dWh: make([]float64, len(l.Wh)),
		dB:  make([]float64, len(l.B)),
	}
}

func (g *lstmGrads) zero() {
	for i := range g.dWx {
		g.dWx[i] = 0
	}
	for i := range g.dWh {
		g.dWh[i] = 0
	}
	for i := range g.dB {
		g.dB[i] = 0
	}
}

// backward runs BPTT over one cached sequence. dhs carries the upstream
// gradient w.r.t. the hidden state at each step (nil entries mean zero).
// Gradients accumulate into grads; the returned slices are the gradients
// w.r.t. the layer inputs at each step.
func (l *lstmLayer) backward(cache *lstmCache, dhs [][]float64, grads *lstmGrads) [][]float64 {
	h := l.Hidden
	steps := len(cache.xs)
	dxs := make([][]float64, steps)

	dhNext := make([]float64, h)
	dcNext := make([]float64, h)
	dz := make([]float64, 4*h)

	for t := steps - 1; t >= 0; t-- {
		gi, gf, gg, og := cache.gi[t], cache.gf[t], cache.gg[t], cache.og[t]
		tc := cache.tc[t]

		var cPrev, hPrev []float64
		if t > 0 {
			cPrev = cache.cs[t-1]
			hPrev = cache.hs[t-1]
		} else {
			cPrev = make([]float64, h)
			hPrev = make([]float64, h)
		}

		for u := 0; u < h; u++ {
			dh := dhNext[u]
			if dhs != nil && dhs[t] != nil {
				dh += dhs[t][u]
			}
			dc := dcNext[u] + dh*og[u]*(1-tc[u]*tc[u])

			di := dc * gg[u]
			df := dc * cPrev[u]
			dg := dc * gi[u]
			do := dh * tc[u]

			dz[u] = di * gi[u] * (1 - gi[u])
			dz[h+u] = df * gf[u] * (1 - gf[u])
			dz[2*h+u] = dg * (1 - gg[u]*gg[u])
			dz[3*h+u] = do * og[u] * (1 - og[u])

			dcNext[u] = dc * gf[u]
		}

		x := cache.xs[t]
		dx := make([]float64, l.In)
		for u := 0; u < h; u++ {
			dhNext[u] = 0
		}
		for u := 0; u < 4*h; u++ {
			grads.dB[u] += dz[u]
			floats.AddScaled(grads.dWx[u*l.In:(u+1)*l.In], dz[u], x)
			floats.AddScaled(grads.dWh[u*h:(u+1)*h], dz[u], hPrev)
			floats.AddScaled(dx, dz[u], l.Wx[u*l.In:(u+1)*l.In])
			floats.AddScaled(dhNext, dz[u], l.Wh[u*h:(u+1)*h])
		}
		dxs[t] = dx
	}
	return dxs
}
