package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
		code int
	}{
		{"config", Configf("daily_capacity", "must be positive, got %d", 0), ErrConfiguration, 2},
		{"transient", Transient("sheets", "read", cause), ErrTransientService, 3},
		{"integrity", &IntegrityError{Reason: "duplicate item", ID: "abc"}, ErrDataIntegrity, 4},
		{"wrapped config", fmt.Errorf("load: %w", Configf("start_date", "missing")), ErrConfiguration, 2},
		{"plain", errors.New("boom"), nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.want != nil {
				assert.ErrorIs(t, tt.err, tt.want)
			}
			assert.Equal(t, tt.code, ExitCode(tt.err))
		})
	}
	assert.Equal(t, 0, ExitCode(nil))
}

func TestTransient(t *testing.T) {
	assert.NoError(t, Transient("smtp", "send", nil))

	cause := errors.New("timeout")
	err := Transient("drive", "share", cause)
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "drive: share: timeout")

	var svcErr *ServiceError
	assert.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "drive", svcErr.Service)

	// Already transient errors keep their original context.
	again := Transient("store", "write", err)
	assert.Same(t, err, again)
}

func TestErrorMessages(t *testing.T) {
	assert.EqualError(t, &ConfigError{Reason: "no participants"}, "config: no participants")
	assert.EqualError(t, &IntegrityError{Reason: "missing header"}, "integrity: missing header")
	assert.EqualError(t, &IntegrityError{Reason: "duplicate item", ID: "v1"}, "integrity: duplicate item: v1")
}
