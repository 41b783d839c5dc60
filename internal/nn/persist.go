package nn

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrIncompatibleArchitecture is returned by Load when the blob's parameter
// shapes differ from the network's
var ErrIncompatibleArchitecture = errors.New("nn: incompatible architecture")

// snapshot is the gob payload of a saved network. Each entry is a
// gonum-encoded matrix, weights and biases interleaved per layer.
type snapshot struct {
	Params [][]byte
}

// Save encodes every parameter into an opaque blob
func (m *MLP) Save() ([]byte, error) {
	var snap snapshot
	for _, l := range m.layers {
		for _, p := range []*mat.Dense{l.w, l.b} {
			raw, err := p.MarshalBinary()
			if err != nil {
				return nil, fmt.Errorf("nn: encode parameters: %w", err)
			}
			snap.Params = append(snap.Params, raw)
		}
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("nn: encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Load restores parameters saved by Save. Nothing is changed unless every
// shape matches.
func (m *MLP) Load(blob []byte) error {
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&snap); err != nil {
		return fmt.Errorf("nn: decode snapshot: %w", err)
	}
	if len(snap.Params) != 2*len(m.layers) {
		return fmt.Errorf("%w: %d parameter tensors, want %d", ErrIncompatibleArchitecture, len(snap.Params), 2*len(m.layers))
	}

	loaded := make([]*mat.Dense, len(snap.Params))
	for i, raw := range snap.Params {
		d := &mat.Dense{}
		if err := d.UnmarshalBinary(raw); err != nil {
			return fmt.Errorf("nn: decode parameter %d: %w", i, err)
		}
		want := m.layers[i/2].w
		if i%2 == 1 {
			want = m.layers[i/2].b
		}
		wr, wc := want.Dims()
		gr, gc := d.Dims()
		if wr != gr || wc != gc {
			return fmt.Errorf("%w: parameter %d is %dx%d, want %dx%d", ErrIncompatibleArchitecture, i, gr, gc, wr, wc)
		}
		loaded[i] = d
	}

	for i, d := range loaded {
		l := m.layers[i/2]
		if i%2 == 0 {
			l.w.Copy(d)
		} else {
			l.b.Copy(d)
		}
	}
	return nil
}
