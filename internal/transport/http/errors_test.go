package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/authz"
)

// TestPurpose: Validates that failure responses never echo wrapped error text.
// Scope: Unit Test
// Security: Driver and network details stay in the server log
// Expected: Domain errors answer with the sentinel text only; anything else is a generic 500.
// Test Case ID: HTTP-10
func TestRespondFailure_DoesNotLeakCause(t *testing.T) {
	cause := errors.New("failed to begin transaction: dial tcp 10.0.0.5:5432: connection refused")

	status, msg, ok := domainStatus(fmt.Errorf("%w: %v", authz.ErrInvalidReassignment, cause))
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid reassignment role", msg)

	_, _, ok = domainStatus(cause)
	assert.False(t, ok)

	h := &Handler{}
	w := httptest.NewRecorder()
	h.respondFailure(w, httptest.NewRequest(http.MethodDelete, "/api/v1/roles/r1", nil), fmt.Errorf("failed to delete role: %w", cause))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
	assert.NotContains(t, w.Body.String(), "transaction")
	assert.Contains(t, w.Body.String(), string(authz.KindInternal))
}
