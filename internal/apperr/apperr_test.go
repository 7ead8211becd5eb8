package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", NotFound("due %s", "x"), http.StatusNotFound},
		{"validation", Validation("bad period"), http.StatusBadRequest},
		{"conflict", Conflict("already paid"), http.StatusConflict},
		{"forbidden", Forbidden("viewer"), http.StatusForbidden},
		{"storage", Storage(errors.New("disk full"), "store receipt"), http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestStorageKeepsCause(t *testing.T) {
	cause := errors.New("bucket gone")
	err := Storage(cause, "store %s", "a.pdf")
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "store a.pdf")
}
