package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSONWithService(t *testing.T) {
	var buf bytes.Buffer
	log := newWithOutput("image-worker", "debug", &buf)

	log.WithField("order_id", "o1").Debug("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "image-worker", line["service"])
	assert.Equal(t, "o1", line["order_id"])
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "debug", line["level"])
}

func TestLoggerFallsBackToInfo(t *testing.T) {
	log := newWithOutput("api", "loud", &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, log.Logger.GetLevel())
}
