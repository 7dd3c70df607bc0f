package handles

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"putty.exe":   "putty",
		"PUTTY.EXE":   "PUTTY",
		"minicom":     "minicom",
		".exe":        ".exe",
		"archive.zip": "archive.zip",
		"":            "",
	}
	for in, want := range tests {
		assert.Equal(t, want, DisplayName(in), in)
	}
}

func TestSystemProcessNamer(t *testing.T) {
	namer := NewProcessNamer()

	name, err := namer.Name(context.Background(), int32(os.Getpid()))
	require.NoError(t, err)
	assert.NotEmpty(t, name)

	_, err = namer.Name(context.Background(), -42)
	assert.Error(t, err)
}
