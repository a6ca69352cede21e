package errors

import (
	"database/sql"
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneMatchesSentinel(t *testing.T) {
	err := Clonef(ErrOutOfSequence, "expected installment %d, got %d", 2, 3)
	assert.True(t, stdErrors.Is(err, ErrOutOfSequence))
	assert.False(t, stdErrors.Is(err, ErrOutOfRange))
	assert.Equal(t, "expected installment 2, got 3", err.Error())

	wrapped := fmt.Errorf("register: %w", err)
	assert.True(t, stdErrors.Is(wrapped, ErrOutOfSequence))
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.ErrorIs(t, appErr, sql.ErrConnDone)

	assert.Nil(t, FromError(nil))
	assert.Same(t, ErrNotFound, FromError(ErrNotFound))
}
