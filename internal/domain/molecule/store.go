package molecule

import (
	"fmt"

	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// Record is one molecule: its fingerprint, one label per task and its SMILES.
type Record struct {
	Features []float64 `json:"features"`
	Label    []float64 `json:"label"`
	ID       string    `json:"id"`
}

// Store is an ordered, read-only collection of records sharing one feature
// dimensionality and one task count.  Slices returned by accessors alias the
// store and must not be modified.
type Store struct {
	features [][]float64
	labels   [][]float64
	ids      []string
	dim      int
	tasks    int
}

// NewStore checks len(features) == len(labels) == len(ids) and that every row
// has the same width.
func NewStore(features, labels [][]float64, ids []string) (*Store, error) {
	if len(features) != len(labels) || len(features) != len(ids) {
		return nil, errors.New(errors.ErrCodeStoreInvariant, "features, labels and ids must have equal length").
			WithDetail(fmt.Sprintf("features=%d labels=%d ids=%d", len(features), len(labels), len(ids)))
	}
	s := &Store{features: features, labels: labels, ids: ids}
	if len(features) == 0 {
		return s, nil
	}
	s.dim, s.tasks = len(features[0]), len(labels[0])
	for i := range features {
		if len(features[i]) != s.dim {
			return nil, errors.New(errors.ErrCodeStoreInvariant, "ragged feature rows").
				WithDetail(fmt.Sprintf("row %d has %d features, want %d", i, len(features[i]), s.dim))
		}
		if len(labels[i]) != s.tasks {
			return nil, errors.New(errors.ErrCodeStoreInvariant, "ragged label rows").
				WithDetail(fmt.Sprintf("row %d has %d labels, want %d", i, len(labels[i]), s.tasks))
		}
	}
	return s, nil
}

// NewStoreFromRecords builds a Store from records in order.
func NewStoreFromRecords(recs []Record) (*Store, error) {
	features := make([][]float64, len(recs))
	labels := make([][]float64, len(recs))
	ids := make([]string, len(recs))
	for i, r := range recs {
		features[i], labels[i], ids[i] = r.Features, r.Label, r.ID
	}
	return NewStore(features, labels, ids)
}

func (s *Store) Len() int      { return len(s.ids) }
func (s *Store) Dim() int      { return s.dim }
func (s *Store) NumTasks() int { return s.tasks }

func (s *Store) Features(i int) []float64 { return s.features[i] }
func (s *Store) Label(i int) []float64    { return s.labels[i] }
func (s *Store) ID(i int) string          { return s.ids[i] }

// FirstLabel returns the label of the first task, which drives partitioning.
func (s *Store) FirstLabel(i int) float64 { return s.labels[i][0] }

// Record returns row i as a Record.
func (s *Store) Record(i int) Record {
	return Record{Features: s.features[i], Label: s.labels[i], ID: s.ids[i]}
}

// Select returns a new Store made of the given rows in the given order.
// Indices may repeat.
func (s *Store) Select(indices []int) *Store {
	out := &Store{
		features: make([][]float64, len(indices)),
		labels:   make([][]float64, len(indices)),
		ids:      make([]string, len(indices)),
		dim:      s.dim,
		tasks:    s.tasks,
	}
	for k, i := range indices {
		out.features[k], out.labels[k], out.ids[k] = s.features[i], s.labels[i], s.ids[i]
	}
	return out
}

// WithLabels returns a Store with the same features and ids and new labels.
func (s *Store) WithLabels(labels [][]float64) (*Store, error) {
	return NewStore(s.features, labels, s.ids)
}

// Partition splits row indices by first-task label: 0 into Indices0, 1 into
// Indices1.  Rows with any other label belong to neither.
type Partition struct {
	Indices0 []int
	Indices1 []int
}

// Partition computes the label partition of s in store order.
func (s *Store) Partition() Partition {
	p := Partition{Indices0: []int{}, Indices1: []int{}}
	if s.tasks == 0 {
		return p
	}
	for i := range s.labels {
		switch s.labels[i][0] {
		case 0:
			p.Indices0 = append(p.Indices0, i)
		case 1:
			p.Indices1 = append(p.Indices1, i)
		}
	}
	return p
}

// Of returns the partition for label 0 or 1, and the opposite one.
func (p Partition) Of(label float64) (same, opposite []int) {
	if label == 1 {
		return p.Indices1, p.Indices0
	}
	return p.Indices0, p.Indices1
}
