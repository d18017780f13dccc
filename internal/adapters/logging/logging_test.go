package logging

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupFile(t *testing.T) {
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	path := filepath.Join(t.TempDir(), "api.log")

	closer, err := Setup(Config{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	log.WithField("k", "v").Debug("hello")
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"hello"`)
	assert.Contains(t, string(raw), `"k":"v"`)
}

func TestSetupRejectsUnknownValues(t *testing.T) {
	_, err := Setup(Config{Level: "loud"})
	assert.Error(t, err)
	_, err = Setup(Config{Format: "xml"})
	assert.Error(t, err)
}
