package api

import (
	"net/http"
	"time"

	"LundaSync/internal/database"
	"LundaSync/internal/metrics"
	"LundaSync/internal/service"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RouterDeps 组装路由所需的依赖
type RouterDeps struct {
	DB       *gorm.DB
	Sync     *service.SyncService
	Metrics  *metrics.Metrics
	Tokens   *TokenIssuer
	Location *time.Location
	Logger   *logrus.Logger
	Mode     string // gin 运行模式
	Pprof    bool
}

// NewRouter 注册全部路由。读接口公开，人工处理与手动同步需要管理令牌
func NewRouter(d RouterDeps) *gin.Engine {
	if d.Mode != "" {
		gin.SetMode(d.Mode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Logger))

	if d.Pprof {
		// 注册ppof 方便调试和监测性能问题
		pprof.Register(r)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/db-check", func(c *gin.Context) {
		if err := database.Ping(c.Request.Context(), d.DB); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	tournamentHandler := NewTournamentHandler(service.NewRosterService(d.Sync.Store()), d.Location, d.Logger)
	r.GET("/api/tournaments/:id", tournamentHandler.GetRoster)
	r.GET("/api/tournaments/:id/roster.xlsx", tournamentHandler.ExportRoster)

	syncHandler := NewSyncHandler(d.Sync, d.Logger)
	r.GET("/api/sync/runs", syncHandler.ListRuns)

	admin := r.Group("/", AdminAuth(d.Tokens))
	admin.POST("/sync/run", syncHandler.RunSync)

	pendingHandler := NewPendingHandler(d.Sync.Pending(), d.Logger)
	admin.GET("/api/pending", pendingHandler.List)
	admin.GET("/api/pending/:id", pendingHandler.Get)
	admin.POST("/api/pending/:id/approve", pendingHandler.Approve)
	admin.POST("/api/pending/:id/approve-new", pendingHandler.ApproveNew)
	admin.POST("/api/pending/:id/reject", pendingHandler.Reject)
	admin.POST("/api/pending/:id/snooze", pendingHandler.Snooze)

	return r
}

// requestLogger 用 logrus 记录访问日志
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}).Debug("HTTP请求")
	}
}
