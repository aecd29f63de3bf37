package service

import (
	"sort"

	"LundaSync/internal/interfaces"
	"LundaSync/internal/model"
	"LundaSync/internal/utils/names"
)

// RankCandidates 对候选池做逐词过滤、打分、取前 topN。
// 最优候选的全名距离仍超过 maxDistance 时全部丢弃，不把牵强的匹配推给管理员
func RankCandidates(input string, pool []interfaces.CandidateMatch, topN, maxDistance int) []model.Candidate {
	threshold := names.Threshold(input)
	out := make([]model.Candidate, 0, len(pool))
	for _, m := range pool {
		c := names.Compare(input, m.Player.NormalizedName)
		if !c.Plausible(threshold) {
			continue
		}
		out = append(out, model.Candidate{
			PlayerID:            m.Player.ID,
			FullName:            m.Player.FullName,
			NormalizedName:      m.Player.NormalizedName,
			Distance:            c.Distance,
			FirstTokenDistance:  c.FirstTokenDistance,
			SecondTokenDistance: c.SecondTokenDistance,
			Score:               c.Score(),
			Reason:              model.ReasonFuzzy,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	if len(out) > 0 && out[0].Distance > maxDistance {
		return nil
	}
	return out
}
