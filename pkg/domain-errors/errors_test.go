package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeInternal, "storage unavailable")

	require.Error(t, err)
	assert.True(t, errors.Is(err, cause))
	assert.True(t, HasCode(err, CodeInternal))
	assert.Equal(t, "storage unavailable", MessageOf(err))
}

func TestHasCodeThroughChain(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(CodeInvalidState, "connection is not pending"))
	assert.True(t, HasCode(err, CodeInvalidState))
	assert.False(t, HasCode(err, CodeNotFound))
}

func TestCodeOfUncoded(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, "internal error", MessageOf(errors.New("boom")))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeBadRequest:    http.StatusBadRequest,
		CodeInvalidInput:  http.StatusBadRequest,
		CodeUnauthorized:  http.StatusUnauthorized,
		CodeForbidden:     http.StatusForbidden,
		CodeNotFound:      http.StatusNotFound,
		CodeInvalidState:  http.StatusConflict,
		CodeQuotaExceeded: http.StatusPaymentRequired,
		CodeInternal:      http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), string(code))
	}
}
