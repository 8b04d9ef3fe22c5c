package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("warn", &buf)

	log.Info("hidden")
	log.Warn("visible warning")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible warning")
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("info", &buf)

	log.WithField("record", 42).Info("matched")
	log.WithFields(map[string]interface{}{"field": "models", "mode": "append"}).Info("patched")

	out := buf.String()
	assert.Contains(t, out, "record=42")
	assert.Contains(t, out, "field=models")
	assert.Contains(t, out, "mode=append")
}

func TestLoggerError(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("info", &buf)

	log.Error("update failed", errors.New("status 500"))

	assert.Contains(t, buf.String(), "status 500")
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("nonsense", &buf)

	log.Debug("hidden")
	log.Info("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}
