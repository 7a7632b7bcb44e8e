// Copyright (C) 2025 wisp-mesh
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{FatalLevel, "FATAL"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestStructuredLogger(t *testing.T) {
	t.Run("LogLevelFiltering", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf, WarnLevel)

		logger.Debug("debug message")
		assert.Empty(t, buf.String(), "Debug message should be filtered")

		logger.Info("info message")
		assert.Empty(t, buf.String(), "Info message should be filtered")

		logger.Warn("warn message")
		assert.NotEmpty(t, buf.String(), "Warn message should be logged")

		buf.Reset()
		logger.Error("error message")
		assert.NotEmpty(t, buf.String(), "Error message should be logged")
	})

	t.Run("StructuredFields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf, InfoLevel)

		logger.Info("test message",
			String("key1", "value1"),
			Int("key2", 42),
			Bool("key3", true),
			Error(errors.New("test error")),
			Duration("duration", 1000000000), // 1 second
		)

		var entry map[string]interface{}
		err := json.Unmarshal(buf.Bytes(), &entry)
		require.NoError(t, err)

		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "test message", entry["message"])
		assert.Equal(t, "value1", entry["key1"])
		assert.Equal(t, float64(42), entry["key2"])
		assert.Equal(t, true, entry["key3"])
		assert.Equal(t, "test error", entry["error"])
		assert.Equal(t, "1s", entry["duration"])
		assert.NotNil(t, entry["timestamp"])
		assert.NotNil(t, entry["caller"])
	})

	t.Run("WithFields", func(t *testing.T) {
		var buf bytes.Buffer
		baseLogger := NewLogger(&buf, InfoLevel)

		logger := baseLogger.WithFields(
			String("service", "sage"),
			String("version", "1.0.0"),
		)

		logger.Info("test message")

		var entry map[string]interface{}
		err := json.Unmarshal(buf.Bytes(), &entry)
		require.NoError(t, err)

		assert.Equal(t, "sage", entry["service"])
		assert.Equal(t, "1.0.0", entry["version"])
	})

	t.Run("WithContext", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf, InfoLevel)

		ctx := context.WithValue(context.Background(), "request_id", "req-123")
		ctx = context.WithValue(ctx, "trace_id", "trace-456")

		contextLogger := logger.WithContext(ctx)
		contextLogger.Info("test message")

		var entry map[string]interface{}
		err := json.Unmarshal(buf.Bytes(), &entry)
		require.NoError(t, err)

		assert.Equal(t, "req-123", entry["request_id"])
		assert.Equal(t, "trace-456", entry["trace_id"])
	})

	t.Run("SetLevel", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf, InfoLevel)

		logger.Debug("debug 1")
		assert.Empty(t, buf.String(), "Debug should be filtered at info level")

		logger.SetLevel(DebugLevel)
		logger.Debug("debug 2")
		assert.NotEmpty(t, buf.String(), "Debug should be logged at debug level")
	})

	t.Run("GetLevel", func(t *testing.T) {
		logger := NewLogger(&bytes.Buffer{}, InfoLevel)
		assert.Equal(t, InfoLevel, logger.GetLevel())

		logger.SetLevel(ErrorLevel)
		assert.Equal(t, ErrorLevel, logger.GetLevel())
	})

	t.Run("PrettyPrint", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf, InfoLevel)
		logger.SetPrettyPrint(true)

		logger.Info("test message", String("key", "value"))

		output := buf.String()
		assert.Contains(t, output, "{\n")
		assert.Contains(t, output, "  \"")
		assert.Contains(t, output, "\n}")
	})
}

func TestWispError(t *testing.T) {
	t.Run("BasicError", func(t *testing.T) {
		err := NewWispError(ErrCodePoWTimeout, ErrComponentPoW, "mining did not finish before context cancellation", nil)

		assert.Equal(t, ErrCodePoWTimeout, err.Code)
		assert.Equal(t, ErrComponentPoW, err.Component)
		assert.Equal(t, "mining did not finish before context cancellation", err.Message)
		assert.Equal(t, "pow/POW_TIMEOUT: mining did not finish before context cancellation", err.Error())
		assert.Nil(t, err.Unwrap())
	})

	t.Run("ErrorWithCause", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := NewWispError(ErrCodeRelayUnreachable, ErrComponentRelay, "relay websocket dial failed", cause)

		assert.Equal(t, cause, err.Unwrap())
		assert.Contains(t, err.Error(), "caused by: connection reset")
	})

	t.Run("ErrorWithDetails", func(t *testing.T) {
		err := NewWispError(ErrCodeTagMismatch, ErrComponentGossip, "author_tag does not match first4(author_pubkey)", nil)
		err.WithDetails("author_tag", "ffff").
			WithDetails("author_pubkey", "aaaabbbbcccc")

		assert.Equal(t, "ffff", err.Details["author_tag"])
		assert.Equal(t, "aaaabbbbcccc", err.Details["author_pubkey"])
	})

	t.Run("ErrorWithPeer", func(t *testing.T) {
		err := NewWispError(ErrCodeHandshakeRefused, ErrComponentHandshake, "name already claimed", nil).
			WithPeer("127.0.0.1:54321")

		assert.Equal(t, "127.0.0.1:54321", err.PeerID)
	})

	t.Run("CommonErrorCodes", func(t *testing.T) {
		// Test all error codes are defined and not empty
		assert.NotEmpty(t, ErrCodePoWTimeout)
		assert.NotEmpty(t, ErrCodeBadPoW)
		assert.NotEmpty(t, ErrCodeBadSignature)
		assert.NotEmpty(t, ErrCodeTagMismatch)
		assert.NotEmpty(t, ErrCodeMessageExpired)
		assert.NotEmpty(t, ErrCodeMessageOversized)
		assert.NotEmpty(t, ErrCodeNameClaimed)
		assert.NotEmpty(t, ErrCodeSelfLoopback)
		assert.NotEmpty(t, ErrCodeStoreOverCapacity)
		assert.NotEmpty(t, ErrCodeHandshakeTimeout)
		assert.NotEmpty(t, ErrCodeHandshakeRefused)
		assert.NotEmpty(t, ErrCodeRelayUnreachable)
		assert.NotEmpty(t, ErrCodeFrameMalformed)
		assert.NotEmpty(t, ErrCodeConfigurationError)

		// Test specific values
		assert.Equal(t, "POW_TIMEOUT", ErrCodePoWTimeout)
		assert.Equal(t, "BAD_POW", ErrCodeBadPoW)
		assert.Equal(t, "BAD_SIGNATURE", ErrCodeBadSignature)
		assert.Equal(t, "TAG_MISMATCH", ErrCodeTagMismatch)
		assert.Equal(t, "MESSAGE_EXPIRED", ErrCodeMessageExpired)
		assert.Equal(t, "MESSAGE_OVERSIZED", ErrCodeMessageOversized)
		assert.Equal(t, "NAME_CLAIMED", ErrCodeNameClaimed)
		assert.Equal(t, "SELF_LOOPBACK", ErrCodeSelfLoopback)
		assert.Equal(t, "STORE_OVER_CAPACITY", ErrCodeStoreOverCapacity)
		assert.Equal(t, "HANDSHAKE_TIMEOUT", ErrCodeHandshakeTimeout)
		assert.Equal(t, "HANDSHAKE_REFUSED", ErrCodeHandshakeRefused)
		assert.Equal(t, "RELAY_UNREACHABLE", ErrCodeRelayUnreachable)
		assert.Equal(t, "FRAME_MALFORMED", ErrCodeFrameMalformed)
		assert.Equal(t, "CONFIGURATION_ERROR", ErrCodeConfigurationError)
	})

	t.Run("ComponentNames", func(t *testing.T) {
		assert.Equal(t, "pow", ErrComponentPoW)
		assert.Equal(t, "gossip", ErrComponentGossip)
		assert.Equal(t, "relay", ErrComponentRelay)
		assert.Equal(t, "handshake", ErrComponentHandshake)
		assert.Equal(t, "store", ErrComponentStore)
	})
}

func TestDefaultLogger(t *testing.T) {
	t.Run("DefaultLoggerExists", func(t *testing.T) {
		logger := GetDefaultLogger()
		assert.NotNil(t, logger)
	})

	t.Run("SetDefaultLogger", func(t *testing.T) {
		var buf bytes.Buffer
		newLogger := NewLogger(&buf, DebugLevel)
		SetDefaultLogger(newLogger)

		Debug("test debug")
		assert.NotEmpty(t, buf.String())

		buf.Reset()
		Info("test info")
		assert.NotEmpty(t, buf.String())

		buf.Reset()
		Warn("test warn")
		assert.NotEmpty(t, buf.String())

		buf.Reset()
		ErrorMsg("test error")
		assert.NotEmpty(t, buf.String())
	})
}

func TestFieldConstructors(t *testing.T) {
	t.Run("StringField", func(t *testing.T) {
		field := String("key", "value")
		assert.Equal(t, "key", field.Key)
		assert.Equal(t, "value", field.Value)
	})

	t.Run("IntField", func(t *testing.T) {
		field := Int("count", 42)
		assert.Equal(t, "count", field.Key)
		assert.Equal(t, 42, field.Value)
	})

	t.Run("BoolField", func(t *testing.T) {
		field := Bool("enabled", true)
		assert.Equal(t, "enabled", field.Key)
		assert.Equal(t, true, field.Value)
	})

	t.Run("ErrorField", func(t *testing.T) {
		err := errors.New("test error")
		field := Error(err)
		assert.Equal(t, "error", field.Key)
		assert.Equal(t, "test error", field.Value)

		// Test nil error
		field = Error(nil)
		assert.Equal(t, "error", field.Key)
		assert.Nil(t, field.Value)
	})

	t.Run("AnyField", func(t *testing.T) {
		type testStruct struct {
			Name string
		}
		value := testStruct{Name: "test"}
		field := Any("data", value)
		assert.Equal(t, "data", field.Key)
		assert.Equal(t, value, field.Value)
	})
}

func BenchmarkLogger(b *testing.B) {
	logger := NewLogger(&bytes.Buffer{}, InfoLevel)

	b.Run("SimpleLog", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			logger.Info("benchmark message")
		}
	})

	b.Run("LogWithFields", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			logger.Info("benchmark message",
				String("key1", "value1"),
				Int("key2", 42),
				Bool("key3", true),
			)
		}
	})

	b.Run("FilteredLog", func(b *testing.B) {
		logger.SetLevel(ErrorLevel)
		for i := 0; i < b.N; i++ {
			logger.Debug("filtered message")
		}
	})
}
