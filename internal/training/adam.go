package training

import "math"

// Adam is the Adam optimizer with bias-corrected moments.
type Adam struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64

	params []*Parameter
	m, v   [][]float64
	t      int
}

// NewAdam returns an optimizer over params with betas (0.9, 0.999) and eps 1e-8.
func NewAdam(params []*Parameter, lr float64) *Adam {
	a := &Adam{LR: lr, Beta1: 0.9, Beta2: 0.999, Eps: 1e-8, params: params}
	a.m = make([][]float64, len(params))
	a.v = make([][]float64, len(params))
	for i, p := range params {
		a.m[i] = make([]float64, len(p.Value))
		a.v[i] = make([]float64, len(p.Value))
	}
	return a
}

// Steps returns the number of Step calls so far.
func (a *Adam) Steps() int { return a.t }

// ZeroGrad clears every parameter gradient.
func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		for i := range p.Grad {
			p.Grad[i] = 0
		}
	}
}

// Step applies one update from the accumulated gradients.
func (a *Adam) Step() {
	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))
	for i, p := range a.params {
		m, v := a.m[i], a.v[i]
		for k, g := range p.Grad {
			m[k] = a.Beta1*m[k] + (1-a.Beta1)*g
			v[k] = a.Beta2*v[k] + (1-a.Beta2)*g*g
			mHat := m[k] / c1
			vHat := v[k] / c2
			p.Value[k] -= a.LR * mHat / (math.Sqrt(vHat) + a.Eps)
		}
	}
}
