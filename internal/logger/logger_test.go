package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New(Options{Level: "debug", Format: "json"})
	if log.GetLevel() != zerolog.DebugLevel {
		t.Errorf("Expected debug level, got %v", log.GetLevel())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("test message")

	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	retrieved := FromContext(ctx)
	retrieved.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_NoLogger(t *testing.T) {
	log := FromContext(context.Background())
	if log.GetLevel() != zerolog.Disabled {
		t.Errorf("Expected disabled logger without context value, got %v", log.GetLevel())
	}
}

func TestForTransaction(t *testing.T) {
	buf := &bytes.Buffer{}
	log := ForTransaction(NewWithWriter(buf), "user-1", "tx-9")
	log.Info().Msg("scored")

	out := buf.String()
	if !strings.Contains(out, `"user_id":"user-1"`) {
		t.Errorf("Expected user_id field, got: %s", out)
	}
	if !strings.Contains(out, `"transaction_id":"tx-9"`) {
		t.Errorf("Expected transaction_id field, got: %s", out)
	}

	buf.Reset()
	txLog := ForTransaction(NewWithWriter(buf), "user-1", "")
	txLog.Info().Msg("scored")
	if strings.Contains(buf.String(), "transaction_id") {
		t.Errorf("Expected no transaction_id for empty id, got: %s", buf.String())
	}
}
