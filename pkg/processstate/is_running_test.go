package processstate

import (
	"os"
	"testing"

	"github.com/core-tools/hsu-sysd/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsProcessRunning_Self(t *testing.T) {
	running, err := IsProcessRunning(os.Getpid())
	require.NoError(t, err)
	assert.True(t, running)
}

func TestIsProcessRunning_InvalidPID(t *testing.T) {
	_, err := IsProcessRunning(0)
	assert.True(t, errors.IsValidationError(err))

	_, err = IsProcessRunning(-5)
	assert.True(t, errors.IsValidationError(err))
}
