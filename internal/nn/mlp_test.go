package nn

import (
	"errors"
	"math"
	"testing"

	"golang.org/x/exp/rand"
)

func newTestMLP(t *testing.T, hidden1, hidden2 int, seed uint64) *MLP {
	t.Helper()
	m, err := NewMLP(4, hidden1, hidden2, 3, 1e-2, rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("NewMLP: %v", err)
	}
	return m
}

var (
	testStates = [][]float64{
		{0.5, 0, 1, 0},
		{-0.25, 1, 0, 0},
		{0, 0, 0, 1},
		{0.9, 1, 1, 0},
	}
	testActions = []int{0, 1, 2, 1}
	testTargets = []float64{0.3, -0.4, 0.1, 0.6}
)

func TestParamCount(t *testing.T) {
	m := newTestMLP(t, 8, 6, 1)
	want := 4*8 + 8 + 8*6 + 6 + 6*3 + 3
	if got := m.ParamCount(); got != want {
		t.Fatalf("ParamCount=%d want=%d", got, want)
	}
	m = newTestMLP(t, 8, 0, 1)
	want = 4*8 + 8 + 8*3 + 3
	if got := m.ParamCount(); got != want {
		t.Fatalf("ParamCount=%d want=%d", got, want)
	}
}

func TestInvalidArchitecture(t *testing.T) {
	if _, err := NewMLP(0, 8, 8, 3, 1e-3, nil); err == nil {
		t.Fatalf("expected error for zero input size")
	}
	if _, err := NewMLP(4, 8, -1, 3, 1e-3, nil); err == nil {
		t.Fatalf("expected error for negative hidden size")
	}
}

func TestSaveLoadBitIdentical(t *testing.T) {
	src := newTestMLP(t, 16, 16, 1)
	for i := 0; i < 5; i++ {
		if _, err := src.Update(testStates, testActions, testTargets); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	blob, err := src.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	dst := newTestMLP(t, 16, 16, 2)
	if err := dst.Load(blob); err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, s := range testStates {
		a, b := src.Evaluate(s), dst.Evaluate(s)
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("Evaluate(%v)[%d]: %v != %v", s, i, a[i], b[i])
			}
		}
	}
}

func TestLoadIncompatibleArchitecture(t *testing.T) {
	src := newTestMLP(t, 16, 16, 1)
	blob, err := src.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	for _, c := range []struct {
		name             string
		hidden1, hidden2 int
	}{
		{"wider", 32, 32},
		{"second layer differs", 16, 8},
		{"fewer layers", 16, 0},
	} {
		t.Run(c.name, func(t *testing.T) {
			dst := newTestMLP(t, c.hidden1, c.hidden2, 3)
			before := dst.Evaluate(testStates[0])
			err := dst.Load(blob)
			if !errors.Is(err, ErrIncompatibleArchitecture) {
				t.Fatalf("Load err=%v want ErrIncompatibleArchitecture", err)
			}
			after := dst.Evaluate(testStates[0])
			for i := range before {
				if before[i] != after[i] {
					t.Fatalf("failed Load changed parameters")
				}
			}
		})
	}
}

func TestLoadGarbage(t *testing.T) {
	m := newTestMLP(t, 8, 8, 1)
	if err := m.Load([]byte("not a snapshot")); err == nil {
		t.Fatalf("expected error for garbage blob")
	}
}

func TestUpdateReducesLoss(t *testing.T) {
	m := newTestMLP(t, 16, 16, 5)
	first, err := m.Update(testStates, testActions, testTargets)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	var last float64
	for i := 0; i < 300; i++ {
		if last, err = m.Update(testStates, testActions, testTargets); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	if last >= 0.5*first {
		t.Fatalf("loss did not drop: first=%v last=%v", first, last)
	}
}

func TestUpdateRejectsBadBatch(t *testing.T) {
	m := newTestMLP(t, 8, 8, 1)
	if _, err := m.Update(nil, nil, nil); err == nil {
		t.Errorf("expected error for empty batch")
	}
	if _, err := m.Update(testStates, testActions[:2], testTargets); err == nil {
		t.Errorf("expected error for length mismatch")
	}
	if _, err := m.Update([][]float64{{1, 2}}, []int{0}, []float64{0}); err == nil {
		t.Errorf("expected error for short state")
	}
	if _, err := m.Update(testStates[:1], []int{3}, []float64{0}); err == nil {
		t.Errorf("expected error for out of range action")
	}
}

func TestGradientsMatchFiniteDifference(t *testing.T) {
	m := newTestMLP(t, 6, 5, 11)
	x, err := m.batch(testStates, testActions, testTargets)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	_, grads := m.gradients(x, testActions, testTargets)

	const h = 1e-6
	for pi, p := range m.params() {
		for j := range p {
			orig := p[j]
			p[j] = orig + h
			up, _ := m.gradients(x, testActions, testTargets)
			p[j] = orig - h
			down, _ := m.gradients(x, testActions, testTargets)
			p[j] = orig

			numeric := (up - down) / (2 * h)
			if math.Abs(numeric-grads[pi][j]) > 1e-5 {
				t.Fatalf("param %d[%d]: analytic=%v numeric=%v", pi, j, grads[pi][j], numeric)
			}
		}
	}
}

func TestHuber(t *testing.T) {
	cases := []struct {
		d, loss, grad float64
	}{
		{0, 0, 0},
		{0.5, 0.125, 0.5},
		{-0.5, 0.125, -0.5},
		{1, 0.5, 1},
		{2, 1.5, 1},
		{-3, 2.5, -1},
	}
	for _, c := range cases {
		if got := huber(c.d); got != c.loss {
			t.Errorf("huber(%v)=%v want=%v", c.d, got, c.loss)
		}
		if got := huberGrad(c.d); got != c.grad {
			t.Errorf("huberGrad(%v)=%v want=%v", c.d, got, c.grad)
		}
	}
}

func TestArgmaxLowestIndexOnTies(t *testing.T) {
	cases := []struct {
		vals []float64
		want int
	}{
		{[]float64{1, 1, 1}, 0},
		{[]float64{0, 2, 2}, 1},
		{[]float64{-1, -2, -0.5}, 2},
	}
	for _, c := range cases {
		if got := Argmax(c.vals); got != c.want {
			t.Errorf("Argmax(%v)=%d want=%d", c.vals, got, c.want)
		}
	}
}
