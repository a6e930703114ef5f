package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSetsLevel(t *testing.T) {
	log := New("debug", "development")
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log = New("error", "development")
	assert.Equal(t, logrus.ErrorLevel, log.GetLevel())
}

func TestNewDefaultsOnInvalidLevel(t *testing.T) {
	log := New("shouting", "development")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestNewProductionUsesJSONFormatter(t *testing.T) {
	log := New("info", "production")
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	log = New("info", "development")
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}

func TestWithRunTagsEntries(t *testing.T) {
	log := New("info", "production")
	buf := &bytes.Buffer{}
	log.SetOutput(buf)

	WithRun(log, "run-42").Info("artifact written")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run-42", entry["run"])
	assert.Equal(t, "artifact written", entry["msg"])
}
