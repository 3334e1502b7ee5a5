// Package molecule holds the molecular side of the pipeline: a SMILES graph
// reader, the circular (Morgan / ECFP-style) fingerprint featurizer and the
// in-memory FingerprintStore that datasets sample from.
package molecule

import (
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

const (
	DefaultRadius = 4
	DefaultSize   = 2048
)

// Featurizer turns a SMILES string into a fixed-length feature vector.
type Featurizer interface {
	Featurize(smiles string) ([]float64, error)
	Size() int
}

// CircularFingerprint folds Morgan atom environments up to Radius bonds into a
// Size-bit vector.  Set bits are 1.0, the rest 0.0.
type CircularFingerprint struct {
	radius int
	size   int
}

// NewCircularFingerprint validates the parameters; radius 0 keeps only the
// atom invariants.
func NewCircularFingerprint(radius, size int) (*CircularFingerprint, error) {
	if radius < 0 {
		return nil, errors.InvalidParam("fingerprint radius must be >= 0")
	}
	if size <= 0 {
		return nil, errors.InvalidParam("fingerprint size must be > 0")
	}
	return &CircularFingerprint{radius: radius, size: size}, nil
}

func (f *CircularFingerprint) Radius() int { return f.radius }
func (f *CircularFingerprint) Size() int   { return f.size }

// Featurize parses smiles and returns its folded fingerprint.
func (f *CircularFingerprint) Featurize(smiles string) ([]float64, error) {
	g, err := ParseSMILES(smiles)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFingerprintGenerationFailed, "featurize molecule")
	}
	return f.FeaturizeGraph(g), nil
}

// FeaturizeGraph folds the environment identifiers of g into a bit vector.
func (f *CircularFingerprint) FeaturizeGraph(g *Graph) []float64 {
	out := make([]float64, f.size)
	for _, id := range f.Environments(g) {
		out[id%uint64(f.size)] = 1
	}
	return out
}

// Environments returns the unfolded identifiers of every atom environment at
// every radius 0..Radius, deduplicated, in ascending order.
func (f *CircularFingerprint) Environments(g *Graph) []uint64 {
	n := g.NumAtoms()
	ids := make([]uint64, n)
	for i := range ids {
		ids[i] = atomInvariant(g, i)
	}

	seen := make(map[uint64]struct{}, n*(f.radius+1))
	for _, id := range ids {
		seen[id] = struct{}{}
	}

	type pair struct {
		order BondOrder
		id    uint64
	}
	next := make([]uint64, n)
	buf := make([]byte, 0, 64)
	for r := 1; r <= f.radius; r++ {
		for i := 0; i < n; i++ {
			nbs := g.Neighbors(i)
			pairs := make([]pair, len(nbs))
			for k, nb := range nbs {
				pairs[k] = pair{order: nb.Order, id: ids[nb.Atom]}
			}
			sort.Slice(pairs, func(a, b int) bool {
				if pairs[a].order != pairs[b].order {
					return pairs[a].order < pairs[b].order
				}
				return pairs[a].id < pairs[b].id
			})

			buf = buf[:0]
			buf = binary.LittleEndian.AppendUint32(buf, uint32(r))
			buf = binary.LittleEndian.AppendUint64(buf, ids[i])
			for _, p := range pairs {
				buf = binary.LittleEndian.AppendUint32(buf, uint32(p.order))
				buf = binary.LittleEndian.AppendUint64(buf, p.id)
			}
			next[i] = xxhash.Sum64(buf)
		}
		ids, next = next, ids
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}

	out := make([]uint64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// atomInvariant hashes the Daylight-style atom invariants: element, heavy
// degree, hydrogen count, formal charge, isotope and ring membership.
func atomInvariant(g *Graph, i int) uint64 {
	a := g.Atoms[i]
	var buf [28]byte
	binary.LittleEndian.PutUint32(buf[0:], uint32(a.AtomicNum))
	binary.LittleEndian.PutUint32(buf[4:], uint32(g.Degree(i)))
	binary.LittleEndian.PutUint32(buf[8:], uint32(a.HCount))
	binary.LittleEndian.PutUint32(buf[12:], uint32(int32(a.Charge)))
	binary.LittleEndian.PutUint32(buf[16:], uint32(a.Isotope))
	if g.InRing(i) {
		buf[20] = 1
	}
	if a.Aromatic {
		buf[21] = 1
	}
	return xxhash.Sum64(buf[:])
}

// Tanimoto returns |a∧b| / |a∨b| over the non-zero positions of two
// fingerprints of equal length.  Two empty fingerprints score 0.
func Tanimoto(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.InvalidParam("fingerprint length mismatch")
	}
	var both, either int
	for i := range a {
		x, y := a[i] != 0, b[i] != 0
		if x && y {
			both++
		}
		if x || y {
			either++
		}
	}
	if either == 0 {
		return 0, nil
	}
	return float64(both) / float64(either), nil
}
