package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/course-search/backend/internal/config"
	"github.com/course-search/backend/internal/logging"
)

func TestNew_JSON(t *testing.T) {
	entry := logging.New(config.LoggingConfig{Level: "debug", Format: "json"}, "indexer")

	var buf bytes.Buffer
	entry.Logger.SetOutput(&buf)
	entry.WithField("component", "test").Debug("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "indexer", line["service"])
	assert.Equal(t, "test", line["component"])
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, logrus.DebugLevel, entry.Logger.GetLevel())
}

func TestNew_UnknownLevel(t *testing.T) {
	entry := logging.New(config.LoggingConfig{Level: "chatty", Format: "text"}, "server")
	assert.Equal(t, logrus.InfoLevel, entry.Logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, entry.Logger.Formatter)
}
