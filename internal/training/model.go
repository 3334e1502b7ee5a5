// Package training runs the triplet-margin training loop over fingerprint
// triplets: a small embedding model, its loss and optimizer, checkpoints, the
// per-run spreadsheet report and the epoch events.
package training

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// Parameter is one trainable tensor.  Value and Grad share a shape and are
// laid out row-major.
type Parameter struct {
	Name  string
	Shape []int
	Value []float64
	Grad  []float64
}

// Tensor is the serialized form of a Parameter.
type Tensor struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// StateDict maps parameter names to their values.
type StateDict map[string]Tensor

// Model is an embedding network trained by the Trainer.
type Model interface {
	Train()
	Eval()
	IsTraining() bool

	// Forward embeds the rows of x.
	Forward(x *mat.Dense) (*mat.Dense, error)
	// Backward accumulates parameter gradients for the loss gradient gradOut
	// with respect to Forward(x).
	Backward(x, gradOut *mat.Dense) error

	Parameters() []*Parameter
	StateDict() StateDict
	LoadStateDict(sd StateDict) error
}

// EmbeddingModel is a linear projection y = xWᵀ + b.
type EmbeddingModel struct {
	in, out  int
	training bool

	weight *Parameter // out x in
	bias   *Parameter // out
}

// NewEmbeddingModel initializes W with Xavier-uniform values drawn from rng
// and b with zeros.
func NewEmbeddingModel(in, out int, rng *rand.Rand) (*EmbeddingModel, error) {
	if in < 1 || out < 1 {
		return nil, errors.InvalidParam(fmt.Sprintf("embedding model needs positive sizes, got in=%d out=%d", in, out))
	}
	if rng == nil {
		return nil, errors.InvalidParam("embedding model needs a random source")
	}
	m := &EmbeddingModel{
		in:       in,
		out:      out,
		training: true,
		weight:   newParameter("linear.weight", out, in),
		bias:     newParameter("linear.bias", out),
	}
	limit := math.Sqrt(6 / float64(in+out))
	for i := range m.weight.Value {
		m.weight.Value[i] = (rng.Float64()*2 - 1) * limit
	}
	return m, nil
}

func newParameter(name string, shape ...int) *Parameter {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Parameter{Name: name, Shape: shape, Value: make([]float64, n), Grad: make([]float64, n)}
}

func (m *EmbeddingModel) InputDim() int  { return m.in }
func (m *EmbeddingModel) OutputDim() int { return m.out }

func (m *EmbeddingModel) Train()           { m.training = true }
func (m *EmbeddingModel) Eval()            { m.training = false }
func (m *EmbeddingModel) IsTraining() bool { return m.training }

func (m *EmbeddingModel) Parameters() []*Parameter {
	return []*Parameter{m.weight, m.bias}
}

func (m *EmbeddingModel) weights() *mat.Dense {
	return mat.NewDense(m.out, m.in, m.weight.Value)
}

func (m *EmbeddingModel) Forward(x *mat.Dense) (*mat.Dense, error) {
	rows, cols := x.Dims()
	if cols != m.in {
		return nil, errors.Newf(errors.ErrCodeShapeMismatch, "model expects %d features, got %d", m.in, cols)
	}
	var y mat.Dense
	y.Mul(x, m.weights().T())
	for r := 0; r < rows; r++ {
		row := y.RawRowView(r)
		for k, b := range m.bias.Value {
			row[k] += b
		}
	}
	return &y, nil
}

func (m *EmbeddingModel) Backward(x, gradOut *mat.Dense) error {
	xr, xc := x.Dims()
	gr, gc := gradOut.Dims()
	if xc != m.in || gc != m.out || xr != gr {
		return errors.Newf(errors.ErrCodeShapeMismatch,
			"backward shapes x=%dx%d grad=%dx%d for model %dx%d", xr, xc, gr, gc, m.in, m.out)
	}
	// dW += gradOutᵀ x
	dW := mat.NewDense(m.out, m.in, m.weight.Grad)
	var step mat.Dense
	step.Mul(gradOut.T(), x)
	dW.Add(dW, &step)

	for r := 0; r < gr; r++ {
		for k, g := range gradOut.RawRowView(r) {
			m.bias.Grad[k] += g
		}
	}
	return nil
}

func (m *EmbeddingModel) StateDict() StateDict {
	sd := make(StateDict, 2)
	for _, p := range m.Parameters() {
		sd[p.Name] = Tensor{
			Shape: append([]int(nil), p.Shape...),
			Data:  append([]float64(nil), p.Value...),
		}
	}
	return sd
}

func (m *EmbeddingModel) LoadStateDict(sd StateDict) error {
	for _, p := range m.Parameters() {
		t, ok := sd[p.Name]
		if !ok {
			return errors.Newf(errors.ErrCodeShapeMismatch, "state dict has no %q", p.Name)
		}
		if len(t.Data) != len(p.Value) || fmt.Sprint(t.Shape) != fmt.Sprint(p.Shape) {
			return errors.Newf(errors.ErrCodeShapeMismatch, "%q has shape %v, want %v", p.Name, t.Shape, p.Shape)
		}
	}
	for _, p := range m.Parameters() {
		copy(p.Value, sd[p.Name].Data)
	}
	return nil
}
