package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// TestNew
// ─────────────────────────────────────────────────────────────────────────────

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal error", errors.CodeInternal, "unexpected failure"},
		{"unsupported dataset", errors.CodeUnsupportedDataset, "unsupported dataset: muv"},
		{"invalid param", errors.CodeInvalidParam, "index out of range"},
		{"triplet config", errors.CodeInvalidTripletConfig, "oversample=true use_fixed_triplets=true"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ae := errors.New(tc.code, tc.message)

			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
		})
	}
}

func TestNewf_FormatsMessage(t *testing.T) {
	t.Parallel()

	ae := errors.Newf(errors.CodeUnsupportedDataset, "unsupported dataset: %s", "muv")
	assert.Equal(t, "unsupported dataset: muv", ae.Message)
}

// ─────────────────────────────────────────────────────────────────────────────
// TestWrap
// ─────────────────────────────────────────────────────────────────────────────

func TestWrap_NilErrReturnsNil(t *testing.T) {
	t.Parallel()

	result := errors.Wrap(nil, errors.CodeInternal, "should not matter")
	assert.Nil(t, result)
}

func TestWrap_CauseChainIsPreserved(t *testing.T) {
	t.Parallel()

	root := stderrors.New("connection reset by peer")
	wrapped := errors.Wrap(root, errors.CodeDatasetFetchFailed, "download HIV.csv")

	require.NotNil(t, wrapped)
	assert.Equal(t, errors.CodeDatasetFetchFailed, wrapped.Code)
	assert.Equal(t, root, stderrors.Unwrap(wrapped))
	assert.True(t, stderrors.Is(wrapped, root))
}

func TestWrap_PreservesOriginalCodeWhenCodeUnknown(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.CodeEmptyPartition, "no label-1 records")
	outer := errors.Wrap(inner, errors.CodeUnknown, "sampling triplet")

	require.NotNil(t, outer)
	assert.Equal(t, errors.CodeEmptyPartition, outer.Code)
}

func TestWrap_OverridesCodeWhenExplicit(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.CodeEmptyPartition, "no label-1 records")
	outer := errors.Wrap(inner, errors.CodeInternal, "unexpected state")

	assert.Equal(t, errors.CodeInternal, outer.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Error()
// ─────────────────────────────────────────────────────────────────────────────

func TestError_Format(t *testing.T) {
	t.Parallel()

	ae := errors.New(errors.CodeUnsupportedDataset, "unsupported dataset")
	assert.Equal(t, "[DS_001] unsupported dataset", ae.Error())

	detailed := ae.WithDetail("name=muv")
	assert.Equal(t, "[DS_001] unsupported dataset: name=muv", detailed.Error())

	caused := detailed.WithCause(fmt.Errorf("boom"))
	assert.Equal(t, "[DS_001] unsupported dataset: name=muv: boom", caused.Error())
}

func TestWithDetail_DoesNotMutateOriginal(t *testing.T) {
	t.Parallel()

	original := errors.NotFound("checkpoint missing")
	detailed := original.WithDetail("hiv_3")

	assert.Empty(t, original.Detail)
	assert.Equal(t, "hiv_3", detailed.Detail)
	assert.Equal(t, original.Code, detailed.Code)
}

func TestWithDetail_NilReceiver(t *testing.T) {
	t.Parallel()

	var ae *errors.AppError
	assert.Nil(t, ae.WithDetail("x"))
	assert.Nil(t, ae.WithCause(stderrors.New("x")))
}

// ─────────────────────────────────────────────────────────────────────────────
// Chain helpers
// ─────────────────────────────────────────────────────────────────────────────

func TestIsCode_WalksFmtWrapping(t *testing.T) {
	t.Parallel()

	soft := errors.NotImplemented("fixed triplets for regular dataset")
	wrapped := fmt.Errorf("get dataset: %w", soft)

	assert.True(t, errors.IsCode(wrapped, errors.CodeNotImplemented))
	assert.False(t, errors.IsCode(wrapped, errors.CodeInternal))
	assert.False(t, errors.IsCode(nil, errors.CodeInternal))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsNotFound(errors.NotFound("x")))
	assert.True(t, errors.IsNotFound(errors.New(errors.ErrCodeCheckpointNotFound, "x")))
	assert.False(t, errors.IsNotFound(errors.Internal("x")))
	assert.False(t, errors.IsNotFound(stderrors.New("plain")))
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.CodeInvalidState,
		errors.GetCode(fmt.Errorf("ctx: %w", errors.InvalidState("not in fixed mode"))))
}
