package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		level    string
		filename string
		wantErr  bool
	}{
		{"stdout", "stdout", "info", "", false},
		{"default target", "", "debug", "", false},
		{"stderr", "stderr", "warn", "", false},
		{"bad level", "stdout", "loud", "", true},
		{"file without name", "file", "info", "", true},
		{"unknown target", "syslog", "info", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := NewLogger(tt.target, tt.level, tt.filename)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			lvl, _ := logrus.ParseLevel(tt.level)
			assert.Equal(t, lvl, log.Logger.GetLevel())
		})
	}
}

func TestFileLoggerWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replicator.log")
	log, err := NewLogger("file", "info", path)
	require.NoError(t, err)

	log.With(logrus.Fields{"job_id": "J1"}).Info("reconciled")
	log.Debug("dropped")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry), "exactly one JSON line")
	assert.Equal(t, "reconciled", entry["msg"])
	assert.Equal(t, "J1", entry["job_id"])
}
