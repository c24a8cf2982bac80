package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Conflict("session_not_active", "session is not in progress"))
	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.Equal(t, KindPrecondition, KindOf(&BlockingError{Count: 2}))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:    http.StatusBadRequest,
		KindAuthorization: http.StatusForbidden,
		KindNotFound:      http.StatusNotFound,
		KindConflict:      http.StatusConflict,
		KindPrecondition:  http.StatusConflict,
		KindInternal:      http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, kind.HTTPStatus(), kind.String())
	}
}

func TestErrorMessages(t *testing.T) {
	err := &Error{Kind: KindInternal, Message: "save failed", Err: errors.New("disk full")}
	assert.Equal(t, "save failed: disk full", err.Error())
	assert.ErrorIs(t, err, err.Err)

	blocking := &BlockingError{Count: 1, ResponseIDs: []string{"r-3"}}
	assert.Contains(t, blocking.Error(), "1 response(s)")
	assert.Contains(t, blocking.Error(), "r-3")
}
