// Package recorder builds the flight recorder selected by configuration and adapts console
// events into its records.
package recorder

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/rs/zerolog"

	"github.com/skyops/dronectl/internal/config"
	"github.com/skyops/dronectl/internal/influx"
	"github.com/skyops/dronectl/internal/storage"
	influxstorage "github.com/skyops/dronectl/internal/storage/influx"
	"github.com/skyops/dronectl/internal/storage/memory"
	"github.com/skyops/dronectl/internal/storage/postgres"
	sqlitestorage "github.com/skyops/dronectl/internal/storage/sqlite"
	"github.com/skyops/dronectl/internal/storage/websocket"
)

// Recorder types accepted in recorder.type.
const (
	TypeNone      = "none"
	TypeMemory    = "memory"
	TypeSQLite    = "sqlite"
	TypePostgres  = "postgres"
	TypeInflux    = "influx"
	TypeWebSocket = "websocket"
)

// Dependencies holds the settings and loggers the backends need.
type Dependencies struct {
	Recorder config.RecorderConfig
	DB       config.DBConfig
	Influx   config.InfluxConfig
	Logger   *slog.Logger
	// DBLogger is the zerolog logger of the database and InfluxDB managers.
	DBLogger zerolog.Logger
}

// New creates and initializes the backend named by deps.Recorder.Type.
func New(deps Dependencies) (storage.Backend, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	cfg := deps.Recorder

	var backend storage.Backend
	switch strings.ToLower(cfg.Type) {
	case "", TypeNone:
		return storage.Discard{}, nil
	case TypeMemory:
		backend = memory.New(cfg.Memory)
	case TypeSQLite:
		b, err := sqlitestorage.New(sqlitestorage.Config{
			DumpPath:     cfg.SQLite.Path,
			DumpInterval: cfg.SQLite.DumpInterval,
		}, deps.Logger)
		if err != nil {
			return nil, err
		}
		backend = b
	case TypePostgres:
		b, err := postgres.New(postgres.Config{
			DSN:          deps.DB.DSN(),
			FallbackPath: cfg.SQLite.Path,
		}, deps.DBLogger, deps.Logger)
		if err != nil {
			return nil, err
		}
		backend = b
	case TypeInflux:
		backend = influxstorage.New(influx.Config{
			URL:       deps.Influx.URL(),
			Token:     deps.Influx.Token,
			Org:       deps.Influx.Org,
			Bucket:    deps.Influx.Bucket,
			BackupDir: deps.Influx.BackupDir,
		}, deps.DBLogger)
	case TypeWebSocket:
		backend = websocket.New(websocket.Config{
			URL:    cfg.WebSocket.URL,
			Secret: cfg.WebSocket.Secret,
		}, deps.Logger)
	default:
		return nil, fmt.Errorf("unknown recorder type %q", cfg.Type)
	}

	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("init %s recorder: %w", cfg.Type, err)
	}
	deps.Logger.Info("Flight recorder ready", "type", cfg.Type)
	return backend, nil
}
