package api

import (
	"errors"
	"net/http"

	"LundaSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// statusOf 业务错误映射到 HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrPendingNotFound),
		errors.Is(err, service.ErrPlayerNotFound),
		errors.Is(err, service.ErrTournamentNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAlreadyResolved),
		errors.Is(err, service.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, logger *logrus.Logger, op string, err error) {
	status := statusOf(err)
	entry := logger.WithError(err).WithField("op", op)
	if status >= http.StatusInternalServerError {
		entry.Error("请求处理失败")
	} else {
		entry.Info("请求被拒绝")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
