package main

import (
	"fmt"
	"os"

	"LundaSync/internal/adapter"
	"LundaSync/internal/config"
	"LundaSync/internal/database"
	"LundaSync/internal/interfaces"
	"LundaSync/internal/metrics"
	"LundaSync/internal/notify"
	"LundaSync/internal/service"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// rootOptions 全局参数
type rootOptions struct {
	ConfigPath string
	Verbose    bool
	JSONLog    bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "lundasync",
		Short:         "LundaSync - 赛事快照对账引擎",
		Long:          "把爬虫生成的赛事快照同步进数据库：赛事、选手、报名与待确认姓名。",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "配置文件路径（默认 ./config/config.yaml）")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "输出 debug 日志")
	cmd.PersistentFlags().BoolVar(&opts.JSONLog, "json-log", false, "日志使用 JSON 格式")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newPendingCommand(opts))
	cmd.AddCommand(newSnapshotCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))
	return cmd
}

// app 各子命令共用的运行时依赖
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	engine  service.EngineConfig
	metrics *metrics.Metrics
	db      *gorm.DB
}

func newLogger(opts *rootOptions) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	if opts.Verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	if opts.JSONLog {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return l
}

// loadApp 加载配置并初始化日志；withDB 为 true 时连接数据库并迁移表结构
func loadApp(opts *rootOptions, withDB bool) (*app, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(opts)
	logger.Debug("配置文件加载成功")

	engine, err := service.NewEngineConfig(&cfg.Sync)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, engine: engine, metrics: metrics.New()}
	if !withDB {
		return a, nil
	}

	db, err := database.Open(&cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db, logger); err != nil {
		closeDB(db)
		return nil, err
	}
	a.db = db
	return a, nil
}

func (a *app) close() {
	if a.db != nil {
		closeDB(a.db)
	}
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// notifier 按 events 配置创建外发通道，调用方负责 Close（会投递完队列）
func (a *app) notifier() (interfaces.Notifier, error) {
	bus, err := notify.NewBus(a.cfg.Events, a.logger)
	if err != nil {
		return nil, err
	}
	return notify.NewPublisher(bus, a.cfg.Events, a.logger, a.metrics), nil
}

// syncService snapshot 非空时覆盖配置里的快照位置
func (a *app) syncService(snapshot string, notifier interfaces.Notifier) (*service.SyncService, error) {
	location := a.cfg.Sync.Snapshot
	if snapshot != "" {
		location = snapshot
	}
	if location == "" {
		return nil, fmt.Errorf("未配置快照位置（sync.snapshot 或 LUNDA_JSON_PATH）")
	}
	src, err := adapter.Open(location, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	return service.NewSyncService(a.engine, a.db, src, notifier, a.metrics, a.logger), nil
}

// pendingService 人工处理不需要快照源
func (a *app) pendingService(notifier interfaces.Notifier) *service.PendingService {
	return service.NewSyncService(a.engine, a.db, nil, notifier, a.metrics, a.logger).Pending()
}
