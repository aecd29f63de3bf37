package snapshot

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"LundaSync/internal/model"
)

// RecordError 单条赛事记录的输入缺陷，整条跳过，运行继续
type RecordError struct {
	Key string
	Err error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("快照记录 %q 无效: %v", e.Key, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

type infoJSON struct {
	Title        string          `json:"title"`
	Location     string          `json:"location"`
	Organizer    string          `json:"organizer"`
	Price        json.RawMessage `json:"price"`
	Category     string          `json:"category"`
	Participants json.RawMessage `json:"participants"` // 人数文本，仅展示用，不解析
}

type recordJSON struct {
	Tournament    infoJSON        `json:"tournament"`
	StartDatetime string          `json:"start_datetime"`
	EndDatetime   string          `json:"end_datetime"`
	Participants  []*string       `json:"participants"`
	LastUpdated   json.RawMessage `json:"last_updated"`
}

// Tournament 解析后的一条赛事记录，时间已换算到配置时区
type Tournament struct {
	Key               string
	Title             string
	Location          string
	Organizer         string
	StartsAt          time.Time
	EndsAt            *time.Time
	PriceRub          int64
	Category          model.TournamentCategory
	SourceLastUpdated string
	Participants      []string // 去首尾空格、去空、去重，保持出现顺序
}

// NaturalKey 日志和错误里标识赛事
func (t *Tournament) NaturalKey() string {
	return t.Location + " @ " + t.StartsAt.Format("2006-01-02 15:04")
}

// ParseRecord 解析单条记录。fallbackUpdated 为文档顶层 last_updated
func ParseRecord(rec RawRecord, fallbackUpdated string, loc *time.Location) (*Tournament, error) {
	var r recordJSON
	if err := json.Unmarshal(rec.Raw, &r); err != nil {
		return nil, &RecordError{Key: rec.Key, Err: err}
	}

	location := strings.TrimSpace(r.Tournament.Location)
	if location == "" {
		return nil, &RecordError{Key: rec.Key, Err: fmt.Errorf("缺少 location")}
	}
	if strings.TrimSpace(r.StartDatetime) == "" {
		return nil, &RecordError{Key: rec.Key, Err: fmt.Errorf("缺少 start_datetime")}
	}
	startsAt, err := ParseTime(r.StartDatetime, loc)
	if err != nil {
		return nil, &RecordError{Key: rec.Key, Err: err}
	}

	t := &Tournament{
		Key:       rec.Key,
		Title:     strings.TrimSpace(r.Tournament.Title),
		Location:  location,
		Organizer: strings.TrimSpace(r.Tournament.Organizer),
		StartsAt:  startsAt,
		PriceRub:  ParsePrice(scalarString(r.Tournament.Price)),
	}
	t.Category = ParseCategory(r.Tournament.Category, scalarString(r.Tournament.Price))

	if strings.TrimSpace(r.EndDatetime) != "" {
		endsAt, err := ParseTime(r.EndDatetime, loc)
		if err != nil {
			return nil, &RecordError{Key: rec.Key, Err: fmt.Errorf("end_datetime: %w", err)}
		}
		t.EndsAt = &endsAt
	}

	t.SourceLastUpdated = scalarString(r.LastUpdated)
	if t.SourceLastUpdated == "" {
		t.SourceLastUpdated = fallbackUpdated
	}

	seen := make(map[string]struct{}, len(r.Participants))
	for _, p := range r.Participants {
		if p == nil {
			continue
		}
		name := strings.TrimSpace(*p)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		t.Participants = append(t.Participants, name)
	}
	return t, nil
}

var (
	naiveLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
	}
	awareLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05Z0700",
		"2006-01-02 15:04:05Z07:00",
	}
)

// ParseTime 解析快照时间。无时区的值按 loc 解释（约定，不做探测），带时区的换算到 loc，截断到微秒
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range awareLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc).Truncate(time.Microsecond), nil
		}
	}
	for _, layout := range naiveLayouts {
		// 秒后面的小数部分 time 包在解析时会自动接受
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Truncate(time.Microsecond), nil
		}
	}
	return time.Time{}, fmt.Errorf("无法解析时间: %q", s)
}

var digitRun = regexp.MustCompile(`\d+`)

// ParsePrice 去掉空格后取第一段数字，"6 000 Р за пару" -> 6000。解析不到返回 0，不报错
func ParsePrice(text string) int64 {
	m := digitRun.FindString(strings.Join(strings.Fields(text), ""))
	if m == "" {
		return 0
	}
	v, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

var teamMarkers = []string{"team", "команд", "пар"}

// ParseCategory 类别或价格文本里提到队伍/双人即为 team
func ParseCategory(category, price string) model.TournamentCategory {
	text := strings.ToLower(category + " " + price)
	for _, m := range teamMarkers {
		if strings.Contains(text, m) {
			return model.CategoryTeam
		}
	}
	return model.CategoryPersonal
}
