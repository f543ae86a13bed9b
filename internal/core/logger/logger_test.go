package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_JSONWithService(t *testing.T) {
	var buf bytes.Buffer
	l, done := New(Options{Level: "info", JSON: true, Service: "student-records", Out: zapcore.AddSync(&buf)})
	l.Debug("hidden")
	l.Info("hello", zap.Int("n", 1))
	done()

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "student-records", line["service"])
	assert.EqualValues(t, 1, line["n"])
}

func TestFor_AddsRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := zap.New(core)

	For(context.Background(), l).Info("no rid")
	ctx := WithRequestID(context.Background(), "r-1")
	assert.Equal(t, "r-1", RequestID(ctx))
	For(ctx, l).Info("with rid")

	all := logs.All()
	require.Len(t, all, 2)
	assert.Empty(t, all[0].ContextMap()["rid"])
	assert.Equal(t, "r-1", all[1].ContextMap()["rid"])
	assert.Equal(t, context.Background(), WithRequestID(context.Background(), ""))
}

func TestToWriterAndRedirect(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core)

	_, err := ToWriter(l, zapcore.WarnLevel).Write([]byte("slow sql\n"))
	require.NoError(t, err)

	undo := RedirectStdLog(l, zapcore.InfoLevel)
	log.Print("from std")
	undo()

	all := logs.All()
	require.Len(t, all, 2)
	assert.Equal(t, "slow sql", all[0].Message)
	assert.Equal(t, zapcore.WarnLevel, all[0].Level)
	assert.Equal(t, "from std", all[1].Message)
}
