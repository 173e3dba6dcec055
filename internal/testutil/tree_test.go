package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteTree(t *testing.T) {
	root := t.TempDir()
	WriteTree(t, root, map[string]string{
		"a/b/c.txt": "hello",
		"top.txt":   "",
	})

	assert.Equal(t, "hello", ReadFile(t, root, "a/b/c.txt"))
	assert.True(t, Exists(t, root, "top.txt"))
	assert.False(t, Exists(t, root, "missing.txt"))
}
