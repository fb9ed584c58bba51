package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-fin-ledger/pkg/mysql"
	"github.com/JoeShih716/go-fin-ledger/pkg/postgres"
)

// EnvPath 指定設定檔路徑的環境變數
const EnvPath = "LEDGER_CONFIG"

const DefaultPath = "config/config.yaml"

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	WAL      WALConfig      `yaml:"wal"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig 資料庫設定，依 Driver 使用對應區塊
type DatabaseConfig struct {
	Driver      string          `yaml:"driver"`
	AutoMigrate *bool           `yaml:"auto_migrate"`
	MySQL       mysql.Config    `yaml:"mysql"`
	Postgres    postgres.Config `yaml:"postgres"`
}

// RedisConfig Addr 為空時不啟用摘要快取
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// Enabled 是否啟用快取
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

// WALConfig Path 為空時不寫操作日誌
type WALConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// SlogLevel 轉成 slog.Level，無法辨識時為 Info
func (c LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Load 讀取 LEDGER_CONFIG 指定的設定檔 (預設 config/config.yaml)
func Load() (*Config, error) {
	path := os.Getenv(EnvPath)
	if path == "" {
		path = DefaultPath
	}
	return LoadFile(path)
}

// LoadFile 讀取並解析設定檔，補上預設值
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse 解析 YAML 內容
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = DriverMySQL
	}
	if c.Database.AutoMigrate == nil {
		enabled := true
		c.Database.AutoMigrate = &enabled
	}
	c.Database.MySQL.SetDefaults()
	c.Database.Postgres.SetDefaults()

	if c.Redis.TTL == 0 {
		c.Redis.TTL = 5 * time.Minute
	}
	if c.GRPC.Addr == "" {
		c.GRPC.Addr = ":50051"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverMySQL, DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Redis.TTL < 0 {
		return fmt.Errorf("redis ttl must not be negative")
	}
	return nil
}
