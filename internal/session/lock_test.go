package session

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_Exclusive(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", ".indexsched")

	first, err := Acquire(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, LockFileName), first.Path())

	_, err = Acquire(dir)
	assert.True(t, errors.Is(err, ErrLocked))

	require.NoError(t, first.Release())
	require.NoError(t, first.Release())

	second, err := Acquire(dir)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}

func TestRelease_Nil(t *testing.T) {
	t.Parallel()

	var l *Lock
	assert.NoError(t, l.Release())
}
