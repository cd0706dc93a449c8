package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestLogger_WritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo}).With(AgencyID("demo"), Component("http"))

	log.Info("status changed", StudentID("1"), Status("Applied"), Err(errors.New("boom")))

	line := decode(t, &buf)
	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, "status changed", line["msg"])
	assert.Equal(t, "demo", line["agency_id"])
	assert.Equal(t, "http", line["component"])
	assert.Equal(t, "1", line["student_id"])
	assert.Equal(t, "Applied", line["status"])
	assert.Equal(t, "boom", line["error"])
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelWarn})

	log.Info("quiet")
	assert.Zero(t, buf.Len())

	log.Warn("loud")
	assert.Equal(t, "WARN", decode(t, &buf)["level"])
}

func TestLogger_Context(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf}).WithRequestID("req-1")

	FromContext(WithContext(context.Background(), log)).Info("hello")

	assert.Equal(t, "req-1", decode(t, &buf)[RequestIDKey])
	assert.NotNil(t, FromContext(context.Background()))
}

func TestLogger_NumericAndDurationFields(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Output: &buf}).Info("request", Int64("duration_ms", 42), Latency(1500*time.Millisecond))

	line := decode(t, &buf)
	assert.EqualValues(t, 42, line["duration_ms"])
	assert.Equal(t, "1.5s", line["latency"])
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Output: &buf, Format: FormatText}).Info("hello", String("k", "v"))

	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "k=v")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
	assert.Equal(t, "ERROR", LevelError.String())
}
