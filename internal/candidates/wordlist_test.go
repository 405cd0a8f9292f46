package candidates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("admin\n\nroot\n p4ss \n"), 0644))

	words, err := LoadWords(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "root", " p4ss "}, words)
}

func TestLoadWordsMissingFile(t *testing.T) {
	_, err := LoadWords(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
