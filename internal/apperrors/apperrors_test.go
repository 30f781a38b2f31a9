package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		Unauthenticated:  http.StatusUnauthorized,
		Forbidden:        http.StatusForbidden,
		RateLimited:      http.StatusTooManyRequests,
		ValidationError:  http.StatusUnprocessableEntity,
		NotFound:         http.StatusNotFound,
		Conflict:         http.StatusConflict,
		Busy:             http.StatusServiceUnavailable,
		ModelUnavailable: http.StatusServiceUnavailable,
		Internal:         http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.HTTPStatus())
	}
}

func TestKindOfUnwrapsWrappedErrors(t *testing.T) {
	base := New(NotFound, "job missing")
	wrapped := errors.New("context: " + base.Error())
	assert.Equal(t, Internal, KindOf(wrapped))

	assert.Equal(t, NotFound, KindOf(base))
	assert.Equal(t, NotFound, KindOf(fmt.Errorf("context: %w", base)))

	deeper := Wrap(Busy, "scheduler saturated", errors.New("queue full"))
	assert.Equal(t, Busy, KindOf(deeper))
}
