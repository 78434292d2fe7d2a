package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelForVerbosity(t *testing.T) {
	assert.Equal(t, "warn", levelForVerbosity(0).String())
	assert.Equal(t, "info", levelForVerbosity(1).String())
	assert.Equal(t, "debug", levelForVerbosity(2).String())
	assert.Equal(t, "debug", levelForVerbosity(5).String())
}

func TestRotatingFileWriterWritesAndReopens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gearmand.log")

	w, err := NewRotatingFileWriter(path, 10*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("hello\n"))
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	_, err = w.Write([]byte("world\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "world")
}
