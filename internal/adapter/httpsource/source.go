// Package httpsource 通过 HTTP(S) 下载快照
package httpsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"LundaSync/internal/config"
	"LundaSync/internal/interfaces"
	"LundaSync/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
)

// 快照正常在几 MB 以内
const maxBodySize = 64 << 20

type Source struct {
	url        string
	httpClient *http.Client
	logger     *logrus.Logger
}

func New(location string, cfg *config.Config, logger *logrus.Logger) (interfaces.SnapshotSource, error) {
	u, err := url.Parse(location)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("快照地址不合法: %s", location)
	}
	var httpCfg config.SnapshotHTTP
	if cfg != nil {
		httpCfg = cfg.HTTP
	}
	return &Source{
		url:        location,
		httpClient: httpclient.NewHTTPClient(httpCfg, logger),
		logger:     logger,
	}, nil
}

func (s *Source) Scheme() string   { return "http" }
func (s *Source) Location() string { return s.url }

// Fetch GET 快照，mtime 取 Last-Modified，缺失时为 nil
func (s *Source) Fetch(ctx context.Context) (*interfaces.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("下载快照失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("下载快照失败: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("读取快照响应失败: %w", err)
	}
	if len(data) > maxBodySize {
		return nil, fmt.Errorf("快照超过 %d 字节", maxBodySize)
	}

	snap := &interfaces.Snapshot{Location: s.url, Data: data}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			snap.ModTime = &t
		} else {
			s.logger.WithError(err).WithField("last_modified", lm).Debug("Last-Modified 无法解析")
		}
	}
	return snap, nil
}
