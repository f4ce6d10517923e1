package pipeerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipelineError_UnwrapsToSentinel(t *testing.T) {
	err := New("persist", "127.0.0.1:5555", 42, ErrStorage)

	assert.True(t, errors.Is(err, ErrStorage))
	assert.False(t, errors.Is(err, ErrParsing))
}

func TestPipelineError_Error(t *testing.T) {
	err := New("validate", "testdata/in.fasta", 7, ErrValidation)

	msg := err.Error()
	assert.Contains(t, msg, "validate")
	assert.Contains(t, msg, "validation error")
	assert.Contains(t, msg, "testdata/in.fasta")
	assert.Contains(t, msg, "7")
}

func TestPipelineError_As(t *testing.T) {
	var target *PipelineError
	err := New("bind", "", 0, ErrBind)

	assert.True(t, errors.As(err, &target))
	assert.Equal(t, "bind", target.Op)
}

func TestSentinels_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrArgument, ErrConnect, ErrSend, ErrBind, ErrClosed,
		ErrParsing, ErrValidation, ErrStorage, ErrCorruptContainer,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, errors.Is(a, b), "sentinels %v and %v must be distinct", a, b)
		}
	}
}
