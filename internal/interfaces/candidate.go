package interfaces

import (
	"context"

	"LundaSync/internal/model"
)

// CandidateMatch 按规范化全名编辑距离找到的已有选手
type CandidateMatch struct {
	Player   model.Player
	Distance int
}

// CandidateSearcher 模糊检索。实现返回按距离升序、最多 limit 条的候选池；
// 检索函数不存在时返回的错误由调用方降级为“无候选”，其余错误视为存储故障
type CandidateSearcher interface {
	Nearest(ctx context.Context, normalized string, limit int) ([]CandidateMatch, error)
}
