package training

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// distanceEps is added to every difference before the norm, keeping the
// distance differentiable at zero.
const distanceEps = 1e-6

// LossResult is a batch loss and its gradients with respect to the three
// embedding matrices.
type LossResult struct {
	Loss       float64
	GradAnchor *mat.Dense
	GradPos    *mat.Dense
	GradNeg    *mat.Dense
	// Active counts rows with a positive hinge.
	Active int
}

// WeightedTripletMarginLoss is the triplet-margin loss with rows anchored on
// label 1 scaled by Weight1:
//
//	l_r = w_r * max(d(a_r, p_r) - d(a_r, n_r) + Margin, 0)
//	L   = mean_r l_r
//
// with d(x, y) = ||x - y + 1e-6||₂ and w_r = Weight1 when the anchor label is
// 1, else 1.
type WeightedTripletMarginLoss struct {
	Margin  float64
	Weight1 float64
}

// NewWeightedTripletMarginLoss returns the loss with margin 1.
func NewWeightedTripletMarginLoss(weight1 float64) *WeightedTripletMarginLoss {
	return &WeightedTripletMarginLoss{Margin: 1, Weight1: weight1}
}

// Compute evaluates the loss of b.
func (l *WeightedTripletMarginLoss) Compute(b *ShapedBatch) (*LossResult, error) {
	n := b.Size()
	if n == 0 {
		return nil, errors.InvalidParam("empty batch")
	}
	rows, dim := b.AnchorEmb.Dims()
	if pr, pc := b.PositiveEmb.Dims(); pr != rows || pc != dim {
		return nil, errors.Newf(errors.ErrCodeShapeMismatch, "positive embeddings %dx%d, anchors %dx%d", pr, pc, rows, dim)
	}
	if nr, nc := b.NegativeEmb.Dims(); nr != rows || nc != dim {
		return nil, errors.Newf(errors.ErrCodeShapeMismatch, "negative embeddings %dx%d, anchors %dx%d", nr, nc, rows, dim)
	}
	if rows != n {
		return nil, errors.Newf(errors.ErrCodeShapeMismatch, "%d embeddings for %d labels", rows, n)
	}

	res := &LossResult{
		GradAnchor: mat.NewDense(rows, dim, nil),
		GradPos:    mat.NewDense(rows, dim, nil),
		GradNeg:    mat.NewDense(rows, dim, nil),
	}
	diffP := make([]float64, dim)
	diffN := make([]float64, dim)
	var total float64
	for r := 0; r < rows; r++ {
		a, p, ng := b.AnchorEmb.RawRowView(r), b.PositiveEmb.RawRowView(r), b.NegativeEmb.RawRowView(r)
		dp := offsetDistance(a, p, diffP)
		dn := offsetDistance(a, ng, diffN)
		hinge := dp - dn + l.Margin
		if hinge <= 0 {
			continue
		}
		w := 1.0
		if b.Labels[r] == 1 {
			w = l.Weight1
		}
		total += w * hinge
		res.Active++

		scale := w / float64(n)
		ga, gp, gn := res.GradAnchor.RawRowView(r), res.GradPos.RawRowView(r), res.GradNeg.RawRowView(r)
		for k := 0; k < dim; k++ {
			var up, un float64
			if dp > 0 {
				up = diffP[k] / dp
			}
			if dn > 0 {
				un = diffN[k] / dn
			}
			ga[k] = scale * (up - un)
			gp[k] = -scale * up
			gn[k] = scale * un
		}
	}
	res.Loss = total / float64(n)
	return res, nil
}

// offsetDistance writes x - y + eps into diff and returns its norm.
func offsetDistance(x, y, diff []float64) float64 {
	var ss float64
	for k := range x {
		diff[k] = x[k] - y[k] + distanceEps
		ss += diff[k] * diff[k]
	}
	return math.Sqrt(ss)
}
