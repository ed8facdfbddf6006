package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

const (
	hidden1     = 150
	hidden2     = 100
	dropoutRate = 0.3
	patience    = 15
)

// Network is a stacked recurrent regressor for one-step-ahead forecasting:
// an LSTM of 150 units returning the full sequence, an LSTM of 100 units
// returning its final state, 30% dropout after each, and a single linear
// output unit. Input windows carry one feature per step.
type Network struct {
	l1     *lstmLayer
	l2     *lstmLayer
	denseW []float64
	denseB float64
	rng    *rand.Rand
}

// FitConfig holds the training hyperparameters.
type FitConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64

	// Progress, when set, is called once per epoch with the mean train and
	// validation losses.
	Progress func(epoch int, trainLoss, valLoss float64)
}

// NewNetwork builds an untrained network with randomly initialized weights.
func NewNetwork(seed int64) *Network {
	rng := rand.New(rand.NewSource(seed))
	n := &Network{
		l1:     newLSTMLayer(1, hidden1, rng),
		l2:     newLSTMLayer(hidden1, hidden2, rng),
		denseW: make([]float64, hidden2),
		denseB: 0,
		rng:    rng,
	}
	limit := math.Sqrt(6.0 / float64(hidden2+1))
	for i := range n.denseW {
		n.denseW[i] = (rng.Float64()*2 - 1) * limit
	}
	return n
}

// sampleTape keeps everything the backward pass needs for one sample.
type sampleTape struct {
	cache1, cache2 *lstmCache
	mask1          [][]float64
	mask2          []float64
	h2drop         []float64
	pred           float64
}

func (n *Network) dropMask(size int) []float64 {
	mask := make([]float64, size)
	keep := 1 - dropoutRate
	for i := range mask {
		if n.rng.Float64() < keep {
			mask[i] = 1 / keep
		}
	}
	return mask
}

// forwardTrain runs one window through the network with inverted dropout.
func (n *Network) forwardTrain(window []float64) *sampleTape {
	seq := make([][]float64, len(window))
	for t, v := range window {
		seq[t] = []float64{v}
	}
	hs1, cache1 := n.l1.forward(seq)

	mask1 := make([][]float64, len(hs1))
	dropped := make([][]float64, len(hs1))
	for t, h := range hs1 {
		mask1[t] = n.dropMask(hidden1)
		d := make([]float64, hidden1)
		floats.MulTo(d, h, mask1[t])
		dropped[t] = d
	}

	hs2, cache2 := n.l2.forward(dropped)
	mask2 := n.dropMask(hidden2)
	h2drop := make([]float64, hidden2)
	floats.MulTo(h2drop, hs2[len(hs2)-1], mask2)

	return &sampleTape{
		cache1: cache1,
		cache2: cache2,
		mask1:  mask1,
		mask2:  mask2,
		h2drop: h2drop,
		pred:   floats.Dot(n.denseW, h2drop) + n.denseB,
	}
}

// backwardSample accumulates gradients for one sample given dLoss/dPred.
func (n *Network) backwardSample(tape *sampleTape, dpred float64, g1, g2 *lstmGrads, gdW []float64, gdB *float64) {
	floats.AddScaled(gdW, dpred, tape.h2drop)
	*gdB += dpred

	dh2 := make([]float64, hidden2)
	for u := range dh2 {
		dh2[u] = dpred * n.denseW[u] * tape.mask2[u]
	}

	steps := len(tape.cache2.xs)
	dhs2 := make([][]float64, steps)
	dhs2[steps-1] = dh2
	dxs := n.l2.backward(tape.cache2, dhs2, g2)

	dhs1 := make([][]float64, steps)
	for t := range dxs {
		dh := make([]float64, hidden1)
		floats.MulTo(dh, dxs[t], tape.mask1[t])
		dhs1[t] = dh
	}
	n.l1.backward(tape.cache1, dhs1, g1)
}

// forwardEval runs one window with dropout disabled and returns the output.
func (n *Network) forwardEval(window []float64) float64 {
	seq := make([][]float64, len(window))
	for t, v := range window {
		seq[t] = []float64{v}
	}
	hs1, _ := n.l1.forward(seq)
	hs2, _ := n.l2.forward(hs1)
	return floats.Dot(n.denseW, hs2[len(hs2)-1]) + n.denseB
}

func (n *Network) mse(X [][]float64, y []float64) float64 {
	var sum float64
	for i, w := range X {
		d := n.forwardEval(w) - y[i]
		sum += d * d
	}
	return sum / float64(len(X))
}

// Fit trains the network with Adam on mean squared error. Training stops
// early when the validation loss fails to improve for 15 consecutive epochs,
// restoring the best-seen weights.
func (n *Network) Fit(trainX [][]float64, trainY []float64, valX [][]float64, valY []float64, cfg FitConfig) error {
	if len(trainX) == 0 || len(trainX) != len(trainY) {
		return fmt.Errorf("%w: train set has %d inputs and %d targets", ErrInvalidParameter, len(trainX), len(trainY))
	}
	if len(valX) == 0 || len(valX) != len(valY) {
		return fmt.Errorf("%w: validation set has %d inputs and %d targets", ErrInvalidParameter, len(valX), len(valY))
	}
	if cfg.Epochs < 1 || cfg.BatchSize < 1 || cfg.LearningRate <= 0 {
		return fmt.Errorf("%w: epochs=%d batch_size=%d learning_rate=%g",
			ErrInvalidParameter, cfg.Epochs, cfg.BatchSize, cfg.LearningRate)
	}

	opt := newAdam(cfg.LearningRate)
	g1 := newLSTMGrads(n.l1)
	g2 := newLSTMGrads(n.l2)
	gdW := make([]float64, hidden2)

	bestLoss := math.Inf(1)
	var bestState *networkState
	wait := 0

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		perm := n.rng.Perm(len(trainX))
		var epochLoss float64

		for start := 0; start < len(perm); start += cfg.BatchSize {
			end := start + cfg.BatchSize
			if end > len(perm) {
				end = len(perm)
			}
			batch := perm[start:end]

			g1.zero()
			g2.zero()
			for i := range gdW {
				gdW[i] = 0
			}
			var gdB float64

			for _, idx := range batch {
				tape := n.forwardTrain(trainX[idx])
				diff := tape.pred - trainY[idx]
				epochLoss += diff * diff
				dpred := 2 * diff / float64(len(batch))
				n.backwardSample(tape, dpred, g1, g2, gdW, &gdB)
			}

			opt.tick()
			opt.step("l1.wx", n.l1.Wx, g1.dWx)
			opt.step("l1.wh", n.l1.Wh, g1.dWh)
			opt.step("l1.b", n.l1.B, g1.dB)
			opt.step("l2.wx", n.l2.Wx, g2.dWx)
			opt.step("l2.wh", n.l2.Wh, g2.dWh)
			opt.step("l2.b", n.l2.B, g2.dB)
			opt.step("dense.w", n.denseW, gdW)
			b := []float64{n.denseB}
			opt.step("dense.b", b, []float64{gdB})
			n.denseB = b[0]
		}

		trainLoss := epochLoss / float64(len(trainX))
		valLoss := n.mse(valX, valY)
		if cfg.Progress != nil {
			cfg.Progress(epoch, trainLoss, valLoss)
		}

		if valLoss < bestLoss {
			bestLoss = valLoss
			bestState = n.state()
			wait = 0
			continue
		}
		wait++
		if wait >= patience {
			n.restore(bestState)
			break
		}
	}
	return nil
}

// Predict maps input windows to scaled forecasts. It is a pure function of
// the inputs and current weights; dropout is disabled.
func (n *Network) Predict(X [][]float64) ([]float64, error) {
	if len(X) == 0 {
		return nil, errors.New("no input windows")
	}
	out := make([]float64, len(X))
	for i, w := range X {
		if len(w) == 0 {
			return nil, fmt.Errorf("%w: empty window at index %d", ErrInvalidParameter, i)
		}
		out[i] = n.forwardEval(w)
	}
	return out, nil
}

// networkState is the serialized weight set.
type networkState struct {
	L1     *lstmLayer `json:"l1"`
	L2     *lstmLayer `json:"l2"`
	DenseW []float64  `json:"dense_w"`
	DenseB float64    `json:"dense_b"`
}

func copyLayer(l *lstmLayer) *lstmLayer {
	return &lstmLayer{
		In:     l.In,
		Hidden: l.Hidden,
		Wx:     append([]float64(nil), l.Wx...),
		Wh:     append([]float64(nil), l.Wh...),
		B:      append([]float64(nil), l.B...),
	}
}

func (n *Network) state() *networkState {
	return &networkState{
		L1:     copyLayer(n.l1),
		L2:     copyLayer(n.l2),
		DenseW: append([]float64(nil), n.denseW...),
		DenseB: n.denseB,
	}
}

func (n *Network) restore(s *networkState) {
	if s == nil {
		return
	}
	n.l1 = copyLayer(s.L1)
	n.l2 = copyLayer(s.L2)
	n.denseW = append([]float64(nil), s.DenseW...)
	n.denseB = s.DenseB
}

// Weights serializes the learned weights to an opaque blob.
func (n *Network) Weights() ([]byte, error) {
	return json.Marshal(n.state())
}

// NetworkFromWeights restores a trained network from a serialized blob.
func NetworkFromWeights(blob []byte) (*Network, error) {
	var s networkState
	if err := json.Unmarshal(blob, &s); err != nil {
		return nil, fmt.Errorf("decode weights: %w", err)
	}
	if s.L1 == nil || s.L2 == nil {
		return nil, errors.New("weights blob missing layers")
	}
	if s.L1.Hidden != hidden1 || s.L2.Hidden != hidden2 || len(s.DenseW) != hidden2 {
		return nil, errors.New("weights blob does not match network architecture")
	}
	if len(s.L1.Wx) != 4*hidden1*s.L1.In || len(s.L2.Wx) != 4*hidden2*s.L2.In {
		return nil, errors.New("weights blob has malformed layer shapes")
	}
	n := &Network{
		l1:     s.L1,
		l2:     s.L2,
		denseW: s.DenseW,
		denseB: s.DenseB,
		rng:    rand.New(rand.NewSource(1)),
	}
	return n, nil
}
