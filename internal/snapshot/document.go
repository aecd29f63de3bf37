// Package snapshot 解析上游爬虫生成的赛事快照 JSON。
// 文档级错误（不是 JSON、没有 tournaments）直接返回；单条赛事的问题包装成 RecordError，由调用方跳过
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrNoTournaments 缺少 tournaments 或为空。空快照按错误处理，否则缺席清扫会归档全部赛事
var ErrNoTournaments = errors.New("快照中没有赛事")

// RawRecord 一条未解析的赛事记录，Key 为对象形式下的键，数组形式下为下标
type RawRecord struct {
	Key string
	Raw json.RawMessage
}

// Document 快照文档
type Document struct {
	LastUpdated string // 顶层 last_updated，单条记录缺省时兜底
	Records     []RawRecord
}

type documentJSON struct {
	Tournaments json.RawMessage `json:"tournaments"`
	LastUpdated json.RawMessage `json:"last_updated"`
}

// Parse 解析文档外层。tournaments 可以是对象（键为自由文本）或数组，对象形式保持原始顺序
func Parse(data []byte) (*Document, error) {
	var top documentJSON
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("快照不是合法 JSON: %w", err)
	}
	raw := bytes.TrimSpace(top.Tournaments)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ErrNoTournaments
	}

	doc := &Document{LastUpdated: scalarString(top.LastUpdated)}
	switch raw[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("解析 tournaments 数组失败: %w", err)
		}
		for i, item := range list {
			doc.Records = append(doc.Records, RawRecord{Key: strconv.Itoa(i), Raw: item})
		}
	case '{':
		records, err := orderedObject(raw)
		if err != nil {
			return nil, fmt.Errorf("解析 tournaments 对象失败: %w", err)
		}
		doc.Records = records
	default:
		return nil, fmt.Errorf("tournaments 类型不支持: %s", string(raw[:1]))
	}
	if len(doc.Records) == 0 {
		return nil, ErrNoTournaments
	}
	return doc, nil
}

// encoding/json 解到 map 会丢掉键顺序，这里按 token 顺序读
func orderedObject(raw []byte) ([]RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var records []RawRecord
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("非字符串键: %v", tok)
		}
		var item json.RawMessage
		if err := dec.Decode(&item); err != nil {
			return nil, fmt.Errorf("键 %q: %w", key, err)
		}
		records = append(records, RawRecord{Key: key, Raw: item})
	}
	return records, nil
}

// scalarString 字符串原样返回，数字等其他标量返回 JSON 文本，null/缺失返回空
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
