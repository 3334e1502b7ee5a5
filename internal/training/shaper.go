package training

import (
	"gonum.org/v1/gonum/mat"

	"github.com/turtacn/CrossSiameseNet/internal/dataset"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// Phase names one pass of an epoch.
type Phase string

const (
	PhaseTrain Phase = "train"
	PhaseTest  Phase = "test"
)

// ShapedBatch holds the stacked inputs of a triplet batch and their
// embeddings.  Row r of every matrix belongs to triplet r.
type ShapedBatch struct {
	Anchor, Positive, Negative          *mat.Dense
	AnchorEmb, PositiveEmb, NegativeEmb *mat.Dense
	Labels                              []float64
}

// Size returns the number of triplets.
func (b *ShapedBatch) Size() int { return len(b.Labels) }

// BatchShaper turns loader batches into model-ready tensors and embeds them.
type BatchShaper interface {
	ShapeBatch(batch []dataset.Triplet, model Model, phase Phase) (*ShapedBatch, error)
}

// StackShaper stacks anchors, positives and negatives into three matrices and
// embeds each with the model.
type StackShaper struct{}

func (StackShaper) ShapeBatch(batch []dataset.Triplet, model Model, _ Phase) (*ShapedBatch, error) {
	if len(batch) == 0 {
		return nil, errors.InvalidParam("cannot shape an empty batch")
	}
	dim := len(batch[0].Anchor)
	if dim == 0 {
		return nil, errors.New(errors.ErrCodeShapeMismatch, "triplet features are empty")
	}
	out := &ShapedBatch{
		Anchor:   mat.NewDense(len(batch), dim, nil),
		Positive: mat.NewDense(len(batch), dim, nil),
		Negative: mat.NewDense(len(batch), dim, nil),
		Labels:   make([]float64, len(batch)),
	}
	for r, t := range batch {
		if len(t.Anchor) != dim || len(t.Positive) != dim || len(t.Negative) != dim {
			return nil, errors.Newf(errors.ErrCodeShapeMismatch, "triplet %d has ragged features", r)
		}
		out.Anchor.SetRow(r, t.Anchor)
		out.Positive.SetRow(r, t.Positive)
		out.Negative.SetRow(r, t.Negative)
		out.Labels[r] = t.AnchorLabel
	}

	var err error
	if out.AnchorEmb, err = model.Forward(out.Anchor); err != nil {
		return nil, err
	}
	if out.PositiveEmb, err = model.Forward(out.Positive); err != nil {
		return nil, err
	}
	if out.NegativeEmb, err = model.Forward(out.Negative); err != nil {
		return nil, err
	}
	return out, nil
}
