package progress

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkerLifecycle(t *testing.T) {
	root := t.TempDir()
	container := filepath.Join(root, "seqs", "chunk")

	assert.Equal(t, filepath.Join(root, "progress", "chunk"), Path(container))

	ok, err := Exists(container)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, Mark(container))
	require.NoError(t, Mark(container))

	ok, err = Exists(container)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, Clear(container))
	require.NoError(t, Clear(container))

	ok, err = Exists(container)
	require.NoError(t, err)
	assert.False(t, ok)
}
