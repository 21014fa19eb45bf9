package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrSiteBadStatus, "page fetch failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithURL("https://wiki.ambisius.com/gunung/gunung-agung").
		WithRetryable(true)

	assert.Equal(t, ErrSiteBadStatus, GetErrorCode(err))
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, root)
	assert.Contains(t, err.Error(), "SITE_BAD_STATUS")
}

func TestGetErrorCode_Wrapped(t *testing.T) {
	t.Parallel()

	inner := NewError(ErrTimeout, "search endpoint timed out")
	wrapped := fmt.Errorf("stage endpoint: %w", inner)

	assert.Equal(t, ErrTimeout, GetErrorCode(wrapped))
	assert.True(t, IsErrorCode(wrapped, ErrTimeout))
	assert.False(t, IsRetryable(wrapped))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}
