package nn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// layer is a dense layer y = x·W + b with an optional ReLU
type layer struct {
	w    *mat.Dense // in × out
	b    *mat.Dense // 1 × out
	relu bool
}

// MLP is a feedforward Q-network with ReLU hidden layers and a linear
// output head, trained with Adam on a Huber loss
type MLP struct {
	InputSize  int
	Hidden1    int
	Hidden2    int // 0 means no second hidden layer
	OutputSize int

	layers []*layer
	opt    *adam
}

// NewMLP creates a new MLP with the given architecture. Weights are drawn
// Glorot-uniform from rng; a nil rng leaves them at zero, which is only
// useful as a target for Load.
func NewMLP(inputSize, hidden1, hidden2, outputSize int, learningRate float64, rng *rand.Rand) (*MLP, error) {
	if inputSize < 1 || hidden1 < 1 || hidden2 < 0 || outputSize < 1 {
		return nil, fmt.Errorf("nn: invalid architecture %d-%d-%d-%d", inputSize, hidden1, hidden2, outputSize)
	}
	m := &MLP{
		InputSize:  inputSize,
		Hidden1:    hidden1,
		Hidden2:    hidden2,
		OutputSize: outputSize,
	}

	sizes := []int{inputSize, hidden1}
	if hidden2 > 0 {
		sizes = append(sizes, hidden2)
	}
	sizes = append(sizes, outputSize)

	for i := 0; i+1 < len(sizes); i++ {
		in, out := sizes[i], sizes[i+1]
		l := &layer{
			w:    mat.NewDense(in, out, nil),
			b:    mat.NewDense(1, out, nil),
			relu: i+2 < len(sizes),
		}
		if rng != nil {
			glorot(l.w, rng)
		}
		m.layers = append(m.layers, l)
	}
	m.opt = newAdam(learningRate, m.params())
	return m, nil
}

// glorot fills w uniformly in ±sqrt(6/(in+out))
func glorot(w *mat.Dense, rng *rand.Rand) {
	in, out := w.Dims()
	limit := math.Sqrt(6.0 / float64(in+out))
	data := w.RawMatrix().Data
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * limit
	}
}

// ParamCount returns the total number of weights (including biases)
func (m *MLP) ParamCount() int {
	n := 0
	for _, p := range m.params() {
		n += len(p)
	}
	return n
}

// params returns the raw backing slices of every weight and bias, in a
// fixed order shared with grads
func (m *MLP) params() [][]float64 {
	ps := make([][]float64, 0, 2*len(m.layers))
	for _, l := range m.layers {
		ps = append(ps, l.w.RawMatrix().Data, l.b.RawMatrix().Data)
	}
	return ps
}

// forward runs a batch through the network and returns the pre-activations
// and activations of every layer; acts[0] is the input
func (m *MLP) forward(x *mat.Dense) (pre, acts []*mat.Dense) {
	acts = append(acts, x)
	for _, l := range m.layers {
		z := &mat.Dense{}
		z.Mul(acts[len(acts)-1], l.w)
		rows, _ := z.Dims()
		bias := l.b.RawRowView(0)
		for i := 0; i < rows; i++ {
			floats.Add(z.RawRowView(i), bias)
		}
		pre = append(pre, z)

		if !l.relu {
			acts = append(acts, z)
			continue
		}
		a := &mat.Dense{}
		a.Apply(func(_, _ int, v float64) float64 { return relu(v) }, z)
		acts = append(acts, a)
	}
	return pre, acts
}

// Evaluate returns the per-action values for a single state
func (m *MLP) Evaluate(state []float64) []float64 {
	x := mat.NewDense(1, m.InputSize, append([]float64(nil), state...))
	_, acts := m.forward(x)
	out := acts[len(acts)-1]
	return append([]float64(nil), out.RawRowView(0)...)
}

// Update takes one Adam step on the mean Huber loss between the value of
// each taken action and its target, and returns that loss
func (m *MLP) Update(states [][]float64, actions []int, targets []float64) (float64, error) {
	x, err := m.batch(states, actions, targets)
	if err != nil {
		return 0, err
	}
	loss, grads := m.gradients(x, actions, targets)
	m.opt.step(m.params(), grads)
	return loss, nil
}

// batch validates a training batch and packs the states row-wise
func (m *MLP) batch(states [][]float64, actions []int, targets []float64) (*mat.Dense, error) {
	n := len(states)
	if n == 0 || len(actions) != n || len(targets) != n {
		return nil, fmt.Errorf("nn: batch mismatch: %d states, %d actions, %d targets", n, len(actions), len(targets))
	}
	x := mat.NewDense(n, m.InputSize, nil)
	for i, s := range states {
		if len(s) != m.InputSize {
			return nil, fmt.Errorf("nn: state %d has %d features, want %d", i, len(s), m.InputSize)
		}
		x.SetRow(i, s)
	}
	for i, a := range actions {
		if a < 0 || a >= m.OutputSize {
			return nil, fmt.Errorf("nn: action %d at row %d out of range", a, i)
		}
	}
	return x, nil
}

// gradients returns the mean Huber loss and its gradient with respect to
// every parameter, in params order
func (m *MLP) gradients(x *mat.Dense, actions []int, targets []float64) (float64, [][]float64) {
	n, _ := x.Dims()
	pre, acts := m.forward(x)
	q := acts[len(acts)-1]

	var loss float64
	delta := mat.NewDense(n, m.OutputSize, nil)
	for i := 0; i < n; i++ {
		diff := q.At(i, actions[i]) - targets[i]
		loss += huber(diff)
		delta.Set(i, actions[i], huberGrad(diff)/float64(n))
	}
	loss /= float64(n)

	grads := make([][]float64, 2*len(m.layers))
	for li := len(m.layers) - 1; li >= 0; li-- {
		l := m.layers[li]

		gw := &mat.Dense{}
		gw.Mul(acts[li].T(), delta)
		gb := make([]float64, l.b.RawMatrix().Cols)
		for i := 0; i < n; i++ {
			floats.Add(gb, delta.RawRowView(i))
		}
		grads[2*li] = gw.RawMatrix().Data
		grads[2*li+1] = gb

		if li == 0 {
			break
		}
		prev := &mat.Dense{}
		prev.Mul(delta, l.w.T())
		z := pre[li-1]
		prev.Apply(func(i, j int, v float64) float64 {
			if z.At(i, j) > 0 {
				return v
			}
			return 0
		}, prev)
		delta = prev
	}
	return loss, grads
}

func relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// Argmax returns the index of the largest value, lowest index on ties
func Argmax(vals []float64) int {
	maxIdx := 0
	maxVal := vals[0]
	for i := 1; i < len(vals); i++ {
		if vals[i] > maxVal {
			maxVal = vals[i]
			maxIdx = i
		}
	}
	return maxIdx
}
