package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gorm.io/gorm/logger"

	_ "time/tzdata" // 容器镜像里可能没有 zoneinfo
)

// Config 全局配置结构体（与 config/config.yaml 一一对应）
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`      // HTTP 服务配置
	Database   DatabaseConfig   `mapstructure:"database"`    // 数据库配置
	Sync       SyncConfig       `mapstructure:"sync"`        // 同步引擎配置
	SnapshotS3 SnapshotS3Config `mapstructure:"snapshot_s3"` // S3/R2 快照源
	HTTP       SnapshotHTTP     `mapstructure:"snapshot_http"`
	Events     EventsConfig     `mapstructure:"events"` // 外发事件（通知机器人）
	Admin      AdminConfig      `mapstructure:"admin"`  // 管理接口鉴权
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode  string `mapstructure:"mode"`  // Gin运行模式：debug/release/test
	Pprof bool   `mapstructure:"pprof"` // 是否注册 pprof
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`            // postgres / sqlite
	DSN             string        `mapstructure:"dsn"`               // 连接DSN（postgres 为 URL 形式，sqlite 为文件路径）
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
	LogLevel        string        `mapstructure:"log_level"`         // GORM 日志级别：silent/error/warn/info
}

// SyncConfig 同步引擎配置
type SyncConfig struct {
	Cron                     string        `mapstructure:"cron"`                        // serve 模式下的调度表达式
	Snapshot                 string        `mapstructure:"snapshot"`                    // 快照位置：文件路径 / s3://bucket/key / https://...
	Timezone                 string        `mapstructure:"timezone"`                    // 赛事时间统一时区
	GracePeriod              time.Duration `mapstructure:"grace_period"`                // 开赛后多久强制归档
	PendingCandidatePoolSize int           `mapstructure:"pending_candidate_pool_size"` // 模糊检索候选池大小
	PendingTopN              int           `mapstructure:"pending_top_n"`               // 展示给管理员的候选数
	MaxCandidateDistance     int           `mapstructure:"max_candidate_distance"`      // 最优候选的绝对距离上限
	FuzzyBackend             string        `mapstructure:"fuzzy_backend"`               // auto/sql/memory
	LockKey                  int64         `mapstructure:"lock_key"`                    // pg advisory lock key
	ReconnectAttempts        int           `mapstructure:"reconnect_attempts"`          // 每个工作单元前的重连次数
	SourceTag                string        `mapstructure:"source_tag"`                  // tournaments.source
}

// SnapshotS3Config S3 兼容存储（Cloudflare R2 等）
type SnapshotS3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// SnapshotHTTP 远程快照下载
type SnapshotHTTP struct {
	Timeout int    `mapstructure:"timeout"` // 请求超时（秒）
	Proxy   string `mapstructure:"proxy"`   // 代理地址
}

// EventsConfig 外发事件配置；NATSURL 为空时使用进程内 gochannel
type EventsConfig struct {
	NATSURL       string  `mapstructure:"nats_url"`
	JetStream     bool    `mapstructure:"jetstream"`
	TopicPrefix   string  `mapstructure:"topic_prefix"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
}

// AdminConfig 管理接口配置
type AdminConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// LoadConfig 加载配置文件（默认 ./config/config.yaml），敏感项从 .env / 环境变量覆盖
func LoadConfig(path string) (*Config, error) {
	// 1. 加载 .env（若存在）
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	// 2. 读取 config.yaml；文件不存在时只用默认值 + 环境变量
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：env 覆盖 yaml
	overrideFromEnv(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.pprof", false)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("sync.cron", "*/15 * * * *")
	v.SetDefault("sync.timezone", "Europe/Moscow")
	v.SetDefault("sync.grace_period", 48*time.Hour)
	v.SetDefault("sync.pending_candidate_pool_size", 30)
	v.SetDefault("sync.pending_top_n", 5)
	v.SetDefault("sync.max_candidate_distance", 3)
	v.SetDefault("sync.fuzzy_backend", "auto")
	v.SetDefault("sync.lock_key", 7410021)
	v.SetDefault("sync.reconnect_attempts", 3)
	v.SetDefault("sync.source_tag", "lunda")
	v.SetDefault("snapshot_s3.region", "auto")
	v.SetDefault("snapshot_http.timeout", 30)
	v.SetDefault("events.topic_prefix", "lunda")
	v.SetDefault("events.rate_per_second", 1.0)
	v.SetDefault("admin.token_ttl", 24*time.Hour)
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("LUNDA_JSON_PATH"); v != "" {
		cfg.Sync.Snapshot = v
	}
	if v := os.Getenv("ADMIN_JWT_SECRET"); v != "" {
		cfg.Admin.JWTSecret = v
	}
	if v := os.Getenv("S3_ACCESS_KEY_ID"); v != "" {
		cfg.SnapshotS3.AccessKeyID = v
	}
	if v := os.Getenv("S3_SECRET_ACCESS_KEY"); v != "" {
		cfg.SnapshotS3.SecretAccessKey = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.Events.NATSURL = v
	}
}

// Location 解析同步时区
func (s *SyncConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("加载时区%s失败: %w", s.Timezone, err)
	}
	return loc, nil
}

// GORMLogLevel 将配置中的日志级别映射到 GORM
func (d *DatabaseConfig) GORMLogLevel() logger.LogLevel {
	switch strings.ToLower(d.LogLevel) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
