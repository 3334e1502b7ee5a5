package molnet

import (
	"math"

	"github.com/turtacn/CrossSiameseNet/internal/domain/molecule"
)

// Normalizer z-scores labels per task with the population standard deviation
// of the store it was fitted on.
type Normalizer struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitNormalizer computes per-task mean and standard deviation.  A task with
// zero spread keeps a unit divisor.
func FitNormalizer(store *molecule.Store) *Normalizer {
	t := store.NumTasks()
	n := &Normalizer{Mean: make([]float64, t), Std: make([]float64, t)}
	if store.Len() == 0 {
		for k := range n.Std {
			n.Std[k] = 1
		}
		return n
	}
	for i := 0; i < store.Len(); i++ {
		for k, v := range store.Label(i) {
			n.Mean[k] += v
		}
	}
	for k := range n.Mean {
		n.Mean[k] /= float64(store.Len())
	}
	for i := 0; i < store.Len(); i++ {
		for k, v := range store.Label(i) {
			d := v - n.Mean[k]
			n.Std[k] += d * d
		}
	}
	for k := range n.Std {
		n.Std[k] = math.Sqrt(n.Std[k] / float64(store.Len()))
		if n.Std[k] == 0 {
			n.Std[k] = 1
		}
	}
	return n
}

// Apply returns a store with normalized labels.
func (n *Normalizer) Apply(store *molecule.Store) (*molecule.Store, error) {
	labels := make([][]float64, store.Len())
	for i := range labels {
		src := store.Label(i)
		row := make([]float64, len(src))
		for k, v := range src {
			row[k] = (v - n.Mean[k]) / n.Std[k]
		}
		labels[i] = row
	}
	return store.WithLabels(labels)
}

// Invert maps a normalized value of task k back to its original scale.
func (n *Normalizer) Invert(k int, v float64) float64 {
	return v*n.Std[k] + n.Mean[k]
}
