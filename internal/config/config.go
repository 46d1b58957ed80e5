package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"truckslot/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
	yamlv3 "gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	Storage       StorageConfig       `yaml:"storage"`
	Backup        BackupConfig        `yaml:"backup"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
	API           APIConfig           `yaml:"api"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Logging       LoggingConfig       `yaml:"logging"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type StorageConfig struct {
	Driver    string         `yaml:"driver"`
	OpTimeout time.Duration  `yaml:"op_timeout"`
	SQLite    SQLiteConfig   `yaml:"sqlite"`
	Postgres  PostgresConfig `yaml:"postgres"`
	Redis     RedisConfig    `yaml:"redis"`
	Mongo     MongoConfig    `yaml:"mongo"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DBName         string `yaml:"dbname"`
	SSLMode        string `yaml:"sslmode"`
	MaxConnections int    `yaml:"max_connections"`
}

// DSN builds a lib/pq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type RedisConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"pool_size"`
	KeyPrefix string `yaml:"key_prefix"`
}

type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

// ScheduleConfig holds the externally defined per-day timeslot enumeration.
// It is read-only input used to derive available slots for callers.
type ScheduleConfig struct {
	Timeslots     []string `yaml:"timeslots"`
	TimeslotsFile string   `yaml:"timeslots_file"`
}

type APIConfig struct {
	HTTP           APIHTTPConfig      `yaml:"http"`
	GRPC           APIGRPCConfig      `yaml:"grpc"`
	RateLimit      APIRateLimitConfig `yaml:"rate_limit"`
	CORSOrigins    []string           `yaml:"cors_origins"`
	RequestTimeout time.Duration      `yaml:"request_timeout"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type NotificationsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Google   GoogleConfig   `yaml:"google"`
	Worker   WorkerConfig   `yaml:"worker"`
	// DeadLetterRedis is used for exhausted deliveries when storage.redis is not set up.
	DeadLetterRedis RedisConfig `yaml:"dead_letter_redis"`
}

type TelegramConfig struct {
	Enabled  bool    `yaml:"enabled"`
	BotToken string  `yaml:"bot_token"`
	ChatIDs  []int64 `yaml:"chat_ids"`
	Debug    bool    `yaml:"debug"`
	// Commands enables the read-only /slots bot for the same chats.
	Commands bool `yaml:"commands"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type GoogleConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	SheetName       string `yaml:"sheet_name"`
}

type WorkerConfig struct {
	QueueSize     int           `yaml:"queue_size"`
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yamlv3.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if config.Schedule.TimeslotsFile != "" {
		slots, err := LoadTimeslots(config.Schedule.TimeslotsFile)
		if err != nil {
			return nil, err
		}
		config.Schedule.Timeslots = slots
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// LoadTimeslots reads a standalone timeslot enumeration file:
//
//	timeslots:
//	  - "08:00"
//	  - "10:00"
func LoadTimeslots(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read timeslots file: %w", err)
	}

	var file struct {
		Timeslots []string `yaml:"timeslots"`
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &file); err != nil {
		return nil, fmt.Errorf("parse timeslots file: %w", err)
	}

	out := make([]string, 0, len(file.Timeslots))
	for _, s := range file.Timeslots {
		out = append(out, strings.TrimSpace(s))
	}
	return out, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case models.DriverSQLite:
		if c.Storage.SQLite.Path == "" {
			return errors.New("storage.sqlite.path is required")
		}
	case models.DriverPostgres:
		if c.Storage.Postgres.Host == "" || c.Storage.Postgres.DBName == "" {
			return errors.New("storage.postgres host and dbname are required")
		}
	case models.DriverRedis:
		if c.Storage.Redis.Address == "" {
			return errors.New("storage.redis.address is required")
		}
	case models.DriverMongo:
		if c.Storage.Mongo.URI == "" {
			return errors.New("storage.mongo.uri is required")
		}
	case models.DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.API.HTTP.Enabled && c.API.HTTP.Port <= 0 {
		return errors.New("api.http.port must be positive")
	}
	if c.API.GRPC.Enabled && c.API.GRPC.Port <= 0 {
		return errors.New("api.grpc.port must be positive")
	}

	n := c.Notifications
	if n.Telegram.Enabled && (n.Telegram.BotToken == "" || len(n.Telegram.ChatIDs) == 0) {
		return errors.New("notifications.telegram requires bot_token and chat_ids")
	}
	if n.Kafka.Enabled && (len(n.Kafka.Brokers) == 0 || n.Kafka.Topic == "") {
		return errors.New("notifications.kafka requires brokers and topic")
	}
	if n.Google.Enabled && (n.Google.CredentialsFile == "" || n.Google.SpreadsheetID == "") {
		return errors.New("notifications.google requires credentials_file and spreadsheet_id")
	}

	return ValidateTimeslots(c.Schedule.Timeslots)
}

func ValidateTimeslots(slots []string) error {
	seen := make(map[string]bool, len(slots))
	for _, s := range slots {
		if s == "" {
			return errors.New("empty timeslot in schedule")
		}
		if seen[s] {
			return fmt.Errorf("duplicate timeslot found: %s", s)
		}
		seen[s] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "truckslot"
	}
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = models.DriverSQLite
	}
	if c.Storage.OpTimeout == 0 {
		c.Storage.OpTimeout = 5 * time.Second
	}
	if c.Storage.Driver == models.DriverSQLite && c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = "data/bookings.db"
	}
	if c.Storage.Postgres.Port == 0 {
		c.Storage.Postgres.Port = 5432
	}
	if c.Storage.Postgres.SSLMode == "" {
		c.Storage.Postgres.SSLMode = "disable"
	}
	if c.Storage.Redis.KeyPrefix == "" {
		c.Storage.Redis.KeyPrefix = "truckslot"
	}
	if c.Storage.Mongo.Database == "" {
		c.Storage.Mongo.Database = "truckslot"
	}
	if c.Storage.Mongo.Collection == "" {
		c.Storage.Mongo.Collection = "bookings"
	}

	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.RequestTimeout == 0 {
		c.API.RequestTimeout = 10 * time.Second
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}

	if c.Notifications.Google.SheetName == "" {
		c.Notifications.Google.SheetName = "Bookings"
	}
	w := &c.Notifications.Worker
	if w.QueueSize == 0 {
		w.QueueSize = models.DefaultNotificationQueueSize
	}
	if w.MaxRetries == 0 {
		w.MaxRetries = 5
	}
	if w.InitialDelay == 0 {
		w.InitialDelay = 2 * time.Second
	}
	if w.MaxDelay == 0 {
		w.MaxDelay = time.Minute
	}
	if w.BackoffFactor == 0 {
		w.BackoffFactor = 2
	}
}
