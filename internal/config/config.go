package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "dronectl.cfg.json"

// EnvPrefix prefixes environment overrides, e.g. DRONECTL_LINK_ENDPOINT.
const EnvPrefix = "DRONECTL"

// LinkConfig holds vehicle connection settings
type LinkConfig struct {
	Type             string        `json:"type" mapstructure:"type"`
	Endpoint         string        `json:"endpoint" mapstructure:"endpoint"`
	SystemID         int           `json:"systemId" mapstructure:"systemId"`
	CommandTimeout   time.Duration `json:"commandTimeout" mapstructure:"commandTimeout"`
	DiscoveryTimeout time.Duration `json:"discoveryTimeout" mapstructure:"discoveryTimeout"`
}

// MissionConfig holds pattern shapes and sequence timeouts
type MissionConfig struct {
	AltitudeM      float64       `json:"altitude" mapstructure:"altitude"`
	RadiusM        float64       `json:"radius" mapstructure:"radius"`
	EdgeM          float64       `json:"edge" mapstructure:"edge"`
	AmplitudeM     float64       `json:"amplitude" mapstructure:"amplitude"`
	WavelengthM    float64       `json:"wavelength" mapstructure:"wavelength"`
	CircleSpeed    float64       `json:"circleSpeed" mapstructure:"circleSpeed"`
	SineSpeed      float64       `json:"sineSpeed" mapstructure:"sineSpeed"`
	ManualStepM    float64       `json:"manualStep" mapstructure:"manualStep"`
	FixTimeout     time.Duration `json:"fixTimeout" mapstructure:"fixTimeout"`
	TakeoffTimeout time.Duration `json:"takeoffTimeout" mapstructure:"takeoffTimeout"`
	LandTimeout    time.Duration `json:"landTimeout" mapstructure:"landTimeout"`
}

// MonitorConfig holds status line settings
type MonitorConfig struct {
	Hz float64 `json:"hz" mapstructure:"hz"`
}

// MemoryConfig holds in-memory/JSON flight recorder settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite flight recorder settings
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// WebSocketConfig holds ground-station streaming settings
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// UploadConfig points at the archive exported flight files are sent to
type UploadConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	APIKey string `json:"apiKey" mapstructure:"apiKey"`
	Tag    string `json:"tag" mapstructure:"tag"`
}

// RecorderConfig selects and configures the flight recorder backend
type RecorderConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite    SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
	Upload    UploadConfig    `json:"upload" mapstructure:"upload"`
}

// DBConfig holds Postgres connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// DSN renders the Postgres connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// InfluxConfig holds InfluxDB connection settings
type InfluxConfig struct {
	Host      string `json:"host" mapstructure:"host"`
	Port      string `json:"port" mapstructure:"port"`
	Protocol  string `json:"protocol" mapstructure:"protocol"`
	Token     string `json:"token" mapstructure:"token"`
	Org       string `json:"org" mapstructure:"org"`
	Bucket    string `json:"bucket" mapstructure:"bucket"`
	BackupDir string `json:"backupDir" mapstructure:"backupDir"`
}

// URL renders the InfluxDB server address.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout   time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	Level          string `json:"logLevel" mapstructure:"logLevel"`
	Dir            string `json:"logsDir" mapstructure:"logsDir"`
	MaxSizeMB      int    `json:"maxSizeMB" mapstructure:"maxSizeMB"`
	MaxBackups     int    `json:"maxBackups" mapstructure:"maxBackups"`
	GraylogEnabled bool   `json:"graylogEnabled" mapstructure:"graylogEnabled"`
	GraylogAddress string `json:"graylogAddress" mapstructure:"graylogAddress"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. Environment variables override both.
// A missing file is returned as an error, but the defaults stay in effect.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")
	viper.SetDefault("logs.maxSizeMB", 20)
	viper.SetDefault("logs.maxBackups", 5)

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("link.type", "mavlink")
	viper.SetDefault("link.endpoint", "udp://:14540")
	viper.SetDefault("link.systemId", 245)
	viper.SetDefault("link.commandTimeout", "3s")
	viper.SetDefault("link.discoveryTimeout", "30s")

	viper.SetDefault("mission.altitude", 10.0)
	viper.SetDefault("mission.radius", 10.0)
	viper.SetDefault("mission.edge", 10.0)
	viper.SetDefault("mission.amplitude", 5.0)
	viper.SetDefault("mission.wavelength", 10.0)
	viper.SetDefault("mission.circleSpeed", 1.0)
	viper.SetDefault("mission.sineSpeed", 1.0)
	viper.SetDefault("mission.manualStep", 2.0)
	viper.SetDefault("mission.fixTimeout", "10s")
	viper.SetDefault("mission.takeoffTimeout", "10s")
	viper.SetDefault("mission.landTimeout", "60s")

	viper.SetDefault("monitor.hz", 5.0)

	viper.SetDefault("recorder.type", "none")
	viper.SetDefault("recorder.memory.outputDir", "./flights")
	viper.SetDefault("recorder.memory.compressOutput", true)
	viper.SetDefault("recorder.sqlite.path", "./flights.db")
	viper.SetDefault("recorder.sqlite.dumpInterval", "3m")
	viper.SetDefault("recorder.websocket.url", "ws://localhost:5000/api/v1/stream")
	viper.SetDefault("recorder.websocket.secret", "")
	viper.SetDefault("recorder.upload.url", "")
	viper.SetDefault("recorder.upload.apiKey", "")
	viper.SetDefault("recorder.upload.tag", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "dronectl")

	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "dronectl")
	viper.SetDefault("influx.bucket", "flight_telemetry")
	viper.SetDefault("influx.backupDir", "./influx-backup")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "dronectl")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "1m")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// Set overrides a config value, e.g. from a command-line flag.
func Set(key string, value any) {
	viper.Set(key, value)
}

// GetLinkConfig returns the vehicle link configuration.
func GetLinkConfig() LinkConfig {
	return LinkConfig{
		Type:             viper.GetString("link.type"),
		Endpoint:         viper.GetString("link.endpoint"),
		SystemID:         viper.GetInt("link.systemId"),
		CommandTimeout:   viper.GetDuration("link.commandTimeout"),
		DiscoveryTimeout: viper.GetDuration("link.discoveryTimeout"),
	}
}

// GetMissionConfig returns pattern and sequence settings.
func GetMissionConfig() MissionConfig {
	return MissionConfig{
		AltitudeM:      viper.GetFloat64("mission.altitude"),
		RadiusM:        viper.GetFloat64("mission.radius"),
		EdgeM:          viper.GetFloat64("mission.edge"),
		AmplitudeM:     viper.GetFloat64("mission.amplitude"),
		WavelengthM:    viper.GetFloat64("mission.wavelength"),
		CircleSpeed:    viper.GetFloat64("mission.circleSpeed"),
		SineSpeed:      viper.GetFloat64("mission.sineSpeed"),
		ManualStepM:    viper.GetFloat64("mission.manualStep"),
		FixTimeout:     viper.GetDuration("mission.fixTimeout"),
		TakeoffTimeout: viper.GetDuration("mission.takeoffTimeout"),
		LandTimeout:    viper.GetDuration("mission.landTimeout"),
	}
}

// GetMonitorConfig returns the status line settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{Hz: viper.GetFloat64("monitor.hz")}
}

// GetRecorderConfig returns the flight recorder configuration.
func GetRecorderConfig() RecorderConfig {
	return RecorderConfig{
		Type: viper.GetString("recorder.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("recorder.memory.outputDir"),
			CompressOutput: viper.GetBool("recorder.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("recorder.sqlite.path"),
			DumpInterval: viper.GetDuration("recorder.sqlite.dumpInterval"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("recorder.websocket.url"),
			Secret: viper.GetString("recorder.websocket.secret"),
		},
		Upload: UploadConfig{
			URL:    viper.GetString("recorder.upload.url"),
			APIKey: viper.GetString("recorder.upload.apiKey"),
			Tag:    viper.GetString("recorder.upload.tag"),
		},
	}
}

// GetDBConfig returns the Postgres configuration.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetInfluxConfig returns the InfluxDB configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Host:      viper.GetString("influx.host"),
		Port:      viper.GetString("influx.port"),
		Protocol:  viper.GetString("influx.protocol"),
		Token:     viper.GetString("influx.token"),
		Org:       viper.GetString("influx.org"),
		Bucket:    viper.GetString("influx.bucket"),
		BackupDir: viper.GetString("influx.backupDir"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetLoggingConfig returns the log output configuration.
func GetLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:          viper.GetString("logLevel"),
		Dir:            viper.GetString("logsDir"),
		MaxSizeMB:      viper.GetInt("logs.maxSizeMB"),
		MaxBackups:     viper.GetInt("logs.maxBackups"),
		GraylogEnabled: viper.GetBool("graylog.enabled"),
		GraylogAddress: viper.GetString("graylog.address"),
	}
}
