package recorder

import (
	"bytes"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyops/dronectl/internal/config"
	"github.com/skyops/dronectl/internal/mission"
	"github.com/skyops/dronectl/internal/pattern"
	"github.com/skyops/dronectl/internal/storage"
	"github.com/skyops/dronectl/internal/storage/memory"
	sqlitestorage "github.com/skyops/dronectl/internal/storage/sqlite"
	"github.com/skyops/dronectl/pkg/core"
)

func TestNew_None(t *testing.T) {
	for _, typ := range []string{"", "none", "NONE"} {
		b, err := New(Dependencies{Recorder: config.RecorderConfig{Type: typ}})
		require.NoError(t, err)
		assert.Equal(t, storage.Discard{}, b)
	}
}

func TestNew_Memory(t *testing.T) {
	b, err := New(Dependencies{Recorder: config.RecorderConfig{
		Type:   "memory",
		Memory: config.MemoryConfig{OutputDir: t.TempDir()},
	}})
	require.NoError(t, err)
	_, ok := b.(*memory.Backend)
	assert.True(t, ok)
	_, ok = b.(storage.Exporter)
	assert.True(t, ok)
}

func TestNew_SQLite(t *testing.T) {
	b, err := New(Dependencies{Recorder: config.RecorderConfig{
		Type:   "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "f.db"), DumpInterval: time.Hour},
	}})
	require.NoError(t, err)
	defer b.Close()
	_, ok := b.(*sqlitestorage.Backend)
	assert.True(t, ok)
}

func TestNew_InfluxUnreachableUsesBackup(t *testing.T) {
	b, err := New(Dependencies{Influx: config.InfluxConfig{
		Protocol:  "http",
		Host:      "127.0.0.1",
		Port:      "1",
		Bucket:    "flight_telemetry",
		BackupDir: t.TempDir(),
	}, Recorder: config.RecorderConfig{Type: "influx"}})
	require.NoError(t, err)
	assert.NoError(t, b.Close())
}

func TestNew_WebSocketDialFails(t *testing.T) {
	_, err := New(Dependencies{Recorder: config.RecorderConfig{
		Type:      "websocket",
		WebSocket: config.WebSocketConfig{URL: "ws://127.0.0.1:1/stream"},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init websocket recorder")
}

func TestNew_Unknown(t *testing.T) {
	_, err := New(Dependencies{Recorder: config.RecorderConfig{Type: "tape"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown recorder type "tape"`)
}

func TestModeTransition(t *testing.T) {
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.FixedZone("CET", 3600))
	rec := ModeTransition(mission.Transition{
		From:   mission.IdleMode(),
		To:     mission.MissionMode(pattern.Sine),
		Reason: "operator",
		At:     at,
	})

	assert.Equal(t, "None", rec.From)
	assert.Equal(t, "Sine", rec.To)
	assert.Equal(t, "operator", rec.Reason)
	assert.Equal(t, time.UTC, rec.Time.Location())
	assert.True(t, rec.Time.Equal(at))
}

type failingBackend struct {
	storage.Discard
	got []core.ModeTransition
	err error
}

func (f *failingBackend) RecordTransition(t *core.ModeTransition) error {
	f.got = append(f.got, *t)
	return f.err
}

func TestTransitionObserver(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))
	backend := &failingBackend{err: errors.New("disk full")}

	observe := TransitionObserver(backend, logger)
	observe(mission.Transition{From: mission.IdleMode(), To: mission.MissionMode(pattern.Circle), At: time.Now()})

	require.Len(t, backend.got, 1)
	assert.Equal(t, "Circle", backend.got[0].To)
	assert.Contains(t, logBuf.String(), "Failed to record mode transition")
	assert.Contains(t, logBuf.String(), "disk full")
}
