package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryableClassification(t *testing.T) {
	cause := errors.New("boom")

	assert.True(t, IsRetryable(NewCapabilityUnavailableError("languageModel", cause)))
	assert.True(t, IsRetryable(NewTimeoutError("draft", cause)))

	assert.False(t, IsRetryable(NewCapabilityContentError("languageModel", cause)))
	assert.False(t, IsRetryable(NewContractViolationError("planDrafter", cause)))
	assert.False(t, IsRetryable(NewPersistenceUnconfirmedError("users/carl/lessonPlans/p1")))
	assert.False(t, IsRetryable(NewDanglingReferenceError("c1")))
	assert.False(t, IsRetryable(errors.New("plain error")))
}

func TestGraphInvariantClassification(t *testing.T) {
	assert.True(t, IsGraphInvariant(NewDuplicateConceptError("c1")))
	assert.True(t, IsGraphInvariant(NewSelfReferenceError("c1")))
	assert.True(t, IsGraphInvariant(NewDanglingReferenceError("c1")))
	assert.False(t, IsGraphInvariant(NewConflictError("taken")))
}

func TestGetAppError_UnwrapsChain(t *testing.T) {
	appErr := NewNotFoundError("document users/carl")
	wrapped := fmt.Errorf("loading graph: %w", appErr)

	found := GetAppError(wrapped)

	require.NotNil(t, found)
	assert.Equal(t, ErrorTypeNotFound, found.Type)
	assert.True(t, IsNotFound(wrapped))
}

func TestWithRunState_AnnotatesAndExtracts(t *testing.T) {
	err := WithRunState(NewPersistenceUnconfirmedError("users/carl/lessonPlans/p1"), "VerifyingPlan")

	assert.Equal(t, "VerifyingPlan", RunState(err))
	assert.True(t, IsPersistenceUnconfirmed(err))
}

func TestWithRunState_WrapsPlainErrors(t *testing.T) {
	err := WithRunState(errors.New("boom"), "Drafting")

	appErr := GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrorTypeInternal, appErr.Type)
	assert.Equal(t, "Drafting", RunState(err))
}

func TestWithRunState_NilPassthrough(t *testing.T) {
	assert.NoError(t, WithRunState(nil, "Drafting"))
	assert.Equal(t, "", RunState(nil))
}

func TestWrap_PrefixesAppErrorMessage(t *testing.T) {
	err := Wrap(NewNotFoundError("lesson l1"), "verifying plan")

	appErr := GetAppError(err)
	require.NotNil(t, appErr)
	assert.Contains(t, appErr.Message, "verifying plan")
	assert.Equal(t, ErrorTypeNotFound, appErr.Type)
}

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, NewInvalidRequestError("bad").HTTPStatus)
	assert.Equal(t, http.StatusUnprocessableEntity, NewNoActionableIntentError("hi").HTTPStatus)
	assert.Equal(t, http.StatusNotFound, NewNotFoundError("x").HTTPStatus)
	assert.Equal(t, http.StatusConflict, NewConflictError("x").HTTPStatus)
	assert.Equal(t, http.StatusBadGateway, NewCapabilityUnavailableError("search", nil).HTTPStatus)
}
