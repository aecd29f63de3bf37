package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"LundaSync/internal/api"
	"LundaSync/internal/service"

	"github.com/spf13/cobra"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var (
		snapshot string
		noCron   bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务与定时同步",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root, true)
			if err != nil {
				return err
			}
			defer a.close()

			notifier, err := a.notifier()
			if err != nil {
				return err
			}
			defer notifier.Close()

			syncService, err := a.syncService(snapshot, notifier)
			if err != nil {
				return err
			}

			router := api.NewRouter(api.RouterDeps{
				DB:       a.db,
				Sync:     syncService,
				Metrics:  a.metrics,
				Tokens:   api.NewTokenIssuer(a.cfg.Admin),
				Location: a.engine.Location,
				Logger:   a.logger,
				Mode:     a.cfg.Server.Mode,
				Pprof:    a.cfg.Server.Pprof,
			})
			if a.cfg.Admin.JWTSecret == "" {
				a.logger.Warn("未配置 admin.jwt_secret，管理接口全部拒绝")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if !noCron && a.cfg.Sync.Cron != "" {
				sched, err := service.NewScheduler(syncService, a.cfg.Sync.Cron, a.logger)
				if err != nil {
					return err
				}
				sched.Start()
				defer func() {
					if err := sched.Shutdown(); err != nil {
						a.logger.WithError(err).Warn("关闭调度器失败")
					}
				}()
			}

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				a.logger.Infof("服务启动成功，端口：%d", a.cfg.Server.Port)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("启动服务失败: %w", err)
				}
			case <-ctx.Done():
				a.logger.Info("收到退出信号，正在关闭服务")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "覆盖配置中的快照位置")
	cmd.Flags().BoolVar(&noCron, "no-cron", false, "不启动定时同步，只提供 HTTP 接口")
	return cmd
}
