package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedBuildID(t *testing.T) {
	gen := NewFixedBuildID("build-1")
	assert.Equal(t, "build-1", gen.Generate())
	assert.Equal(t, "build-1", gen.Generate())

	assert.Equal(t, "test-build-default", NewFixedBuildID("").Generate())
}

func TestWriteSuite(t *testing.T) {
	dir := WriteSuite(t, "my_suite", map[string]string{
		"test.yaml":     "tc: {}\n",
		"sql/query.sql": "SELECT 1",
	})

	assert.Equal(t, "my_suite", filepath.Base(dir))
	data, err := os.ReadFile(filepath.Join(dir, "sql", "query.sql"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", string(data))
}
