package errors_test

import (
	"io"
	"testing"

	"github.com/m-mizutani/iocfeed/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapError(t *testing.T) {
	base := errors.New("blue").With("color", 5)
	wrapped := errors.Wrap(base, "orange").With("fruit", "six")

	assert.Equal(t, "orange: blue", wrapped.Error())
	assert.Equal(t, 5, wrapped.Values["color"])
	assert.Equal(t, "six", wrapped.Values["fruit"])
	_, ok := base.Values["fruit"]
	assert.False(t, ok)
	assert.Contains(t, wrapped.StackTrace(), "errors_test.go")
}

func TestUnwrapCause(t *testing.T) {
	err := errors.Wrap(io.EOF, "reading")
	assert.True(t, errors.Is(err, io.EOF))

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, io.EOF, e.Unwrap())
}
