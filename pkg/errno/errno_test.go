package errno

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"nil", nil, OK.Code, OK.Message},
		{"plain errno", ErrNotFound, ErrNotFound.Code, ErrNotFound.Message},
		{"wrapped errno", fmt.Errorf("wallet abc: %w", ErrNotFound), ErrNotFound.Code, "wallet abc: Not found"},
		{"pointer errno", &ErrDuplicateToken, ErrDuplicateToken.Code, ErrDuplicateToken.Message},
		{"foreign error", errors.New("boom"), InternalServerError.Code, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := Decode(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestErrorsIsOnWrappedValues(t *testing.T) {
	err := fmt.Errorf("add token: %w", ErrInvalidAddressFormat)
	assert.True(t, errors.Is(err, ErrInvalidAddressFormat))
	assert.False(t, errors.Is(err, ErrDuplicateToken))
}
