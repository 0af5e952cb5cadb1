package dexerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeSurvivesWrapping(t *testing.T) {
	err := ErrSlippageExceeded.Wrapf("got %d want %d", 9, 10)
	require.Equal(t, uint32(4), Code(err))
	require.True(t, errors.Is(err, ErrSlippageExceeded))

	outer := fmt.Errorf("hop 2: %w", err)
	require.Equal(t, uint32(4), Code(outer))
	require.True(t, errors.Is(outer, ErrSlippageExceeded))
	require.False(t, errors.Is(outer, ErrInvariantViolated))
}

func TestCodeForeignErrors(t *testing.T) {
	require.Zero(t, Code(nil))
	require.Zero(t, Code(errors.New("plain")))
}
