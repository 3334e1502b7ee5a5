package molecule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

func onBits(v []float64) int {
	n := 0
	for _, x := range v {
		if x != 0 {
			n++
		}
	}
	return n
}

func TestNewCircularFingerprint_Validation(t *testing.T) {
	_, err := NewCircularFingerprint(-1, 2048)
	assert.Error(t, err)
	_, err = NewCircularFingerprint(2, 0)
	assert.Error(t, err)

	f, err := NewCircularFingerprint(DefaultRadius, DefaultSize)
	require.NoError(t, err)
	assert.Equal(t, 4, f.Radius())
	assert.Equal(t, 2048, f.Size())
}

func TestCircularFingerprint_Deterministic(t *testing.T) {
	f, _ := NewCircularFingerprint(2, 1024)
	a, err := f.Featurize("CC(=O)Oc1ccccc1C(=O)O")
	require.NoError(t, err)
	b, err := f.Featurize("CC(=O)Oc1ccccc1C(=O)O")
	require.NoError(t, err)

	assert.Len(t, a, 1024)
	assert.Equal(t, a, b)
	assert.Greater(t, onBits(a), 0)
	for _, x := range a {
		assert.True(t, x == 0 || x == 1)
	}
}

func TestCircularFingerprint_KekuleAndAromaticDifferOnlyByBondType(t *testing.T) {
	f, _ := NewCircularFingerprint(2, 2048)
	arom, err := f.Featurize("c1ccccc1")
	require.NoError(t, err)
	same, err := f.Featurize("c1ccc:c:c1")
	require.NoError(t, err)
	assert.Equal(t, arom, same)
}

func TestCircularFingerprint_AtomOrderInvariant(t *testing.T) {
	f, _ := NewCircularFingerprint(3, 2048)
	a, _ := f.Featurize("OCC")
	b, _ := f.Featurize("CCO")
	assert.Equal(t, a, b)
}

func TestCircularFingerprint_RadiusGrowsEnvironmentSet(t *testing.T) {
	g, err := ParseSMILES("CCCCCCO")
	require.NoError(t, err)

	r0, _ := NewCircularFingerprint(0, 2048)
	r2, _ := NewCircularFingerprint(2, 2048)
	assert.Less(t, len(r0.Environments(g)), len(r2.Environments(g)))
}

func TestCircularFingerprint_InvalidSMILES(t *testing.T) {
	f, _ := NewCircularFingerprint(2, 64)
	_, err := f.Featurize("C1CC")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFingerprintGenerationFailed))
}

func TestTanimoto(t *testing.T) {
	s, err := Tanimoto([]float64{1, 1, 0, 0}, []float64{1, 0, 1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3.0, s, 1e-12)

	s, err = Tanimoto([]float64{0, 0}, []float64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)

	_, err = Tanimoto([]float64{1}, []float64{1, 0})
	assert.Error(t, err)
}
