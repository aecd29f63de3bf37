package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrTournamentNotFound = errors.New("快照中找不到赛事")

// AddResult 手工加人的结果
type AddResult struct {
	Title      string
	Added      bool // false 表示已存在
	BackupPath string
}

// AddParticipant 在快照里按 (location 或 title, start) 找到赛事并追加参赛者，已存在则不改动。
// 多条记录匹配时取文档顺序中的第一条。只改写命中记录的 participants，
// 其余内容按原始字节保留（键顺序、数字写法不变），整体重新缩进
func AddParticipant(data []byte, location string, startsAt time.Time, fullName string, loc *time.Location) ([]byte, *AddResult, error) {
	top, err := objectFields(data)
	if err != nil {
		return nil, nil, fmt.Errorf("快照不是合法 JSON 对象: %w", err)
	}
	ti := fieldIndex(top, "tournaments")
	if ti < 0 {
		return nil, nil, ErrNoTournaments
	}
	tournaments := bytes.TrimSpace(top[ti].Raw)

	want := strings.TrimSpace(location)
	name := strings.TrimSpace(fullName)
	target := startsAt.In(loc).Truncate(time.Second)

	var (
		records []RawRecord
		isList  bool
	)
	switch {
	case len(tournaments) > 0 && tournaments[0] == '{':
		records, err = orderedObject(tournaments)
	case len(tournaments) > 0 && tournaments[0] == '[':
		isList = true
		var list []json.RawMessage
		err = json.Unmarshal(tournaments, &list)
		for i, item := range list {
			records = append(records, RawRecord{Key: strconv.Itoa(i), Raw: item})
		}
	default:
		return nil, nil, ErrNoTournaments
	}
	if err != nil {
		return nil, nil, fmt.Errorf("解析 tournaments 失败: %w", err)
	}

	for i, rec := range records {
		title, ok := matchRecord(rec.Raw, want, target, loc)
		if !ok {
			continue
		}
		res := &AddResult{Title: title}
		updated, added, err := appendParticipant(rec.Raw, name)
		if err != nil {
			return nil, nil, fmt.Errorf("记录 %q: %w", rec.Key, err)
		}
		if !added {
			return data, res, nil
		}
		res.Added = true
		records[i].Raw = updated

		if isList {
			items := make([]json.RawMessage, len(records))
			for j, r := range records {
				items[j] = r.Raw
			}
			top[ti].Raw = writeArray(items)
		} else {
			top[ti].Raw = writeObject(records)
		}
		var out bytes.Buffer
		if err := json.Indent(&out, writeObject(top), "", "  "); err != nil {
			return nil, nil, fmt.Errorf("序列化快照失败: %w", err)
		}
		out.WriteByte('\n')
		return out.Bytes(), res, nil
	}
	return nil, nil, fmt.Errorf("%w: %s @ %s", ErrTournamentNotFound, want, target.Format("2006-01-02 15:04"))
}

type matchJSON struct {
	Tournament struct {
		Title    json.RawMessage `json:"title"`
		Location json.RawMessage `json:"location"`
	} `json:"tournament"`
	StartDatetime json.RawMessage `json:"start_datetime"`
}

// matchRecord 记录的场地或标题等于 want 且开赛时间相同
func matchRecord(raw json.RawMessage, want string, target time.Time, loc *time.Location) (string, bool) {
	var m matchJSON
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", false
	}
	title := strings.TrimSpace(scalarString(m.Tournament.Title))
	if strings.TrimSpace(scalarString(m.Tournament.Location)) != want && title != want {
		return "", false
	}
	start, err := ParseTime(scalarString(m.StartDatetime), loc)
	if err != nil || !start.Truncate(time.Second).Equal(target) {
		return "", false
	}
	return title, true
}

// appendParticipant 在记录的 participants 末尾追加 name，已存在返回 added=false
func appendParticipant(raw json.RawMessage, name string) (json.RawMessage, bool, error) {
	fields, err := objectFields(raw)
	if err != nil {
		return nil, false, err
	}
	var participants []json.RawMessage
	pi := fieldIndex(fields, "participants")
	if pi >= 0 {
		if p := bytes.TrimSpace(fields[pi].Raw); !bytes.Equal(p, []byte("null")) {
			if err := json.Unmarshal(p, &participants); err != nil {
				return nil, false, fmt.Errorf("participants 不是数组: %w", err)
			}
		}
	}
	for _, p := range participants {
		if strings.TrimSpace(scalarString(p)) == name {
			return raw, false, nil
		}
	}
	encoded, err := marshalString(name)
	if err != nil {
		return nil, false, err
	}
	list := writeArray(append(participants, encoded))
	if pi >= 0 {
		fields[pi].Raw = list
	} else {
		fields = append(fields, RawRecord{Key: "participants", Raw: list})
	}
	return writeObject(fields), true, nil
}

// objectFields 按出现顺序读出对象的键值
func objectFields(raw []byte) ([]RawRecord, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, fmt.Errorf("不是 JSON 对象")
	}
	return orderedObject(raw)
}

func fieldIndex(fields []RawRecord, key string) int {
	for i, f := range fields {
		if f.Key == key {
			return i
		}
	}
	return -1
}

func writeObject(fields []RawRecord) json.RawMessage {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := marshalString(f.Key)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(bytes.TrimSpace(f.Raw))
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func writeArray(items []json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(bytes.TrimSpace(item))
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

// marshalString 不转义 HTML 字符，保持姓名原样可读
func marshalString(s string) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// AddParticipantFile 修改本地快照文件，写入前备份为 <path>.bak，写失败时从备份恢复
func AddParticipantFile(path, location string, startsAt time.Time, fullName string, loc *time.Location) (*AddResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取快照失败: %w", err)
	}
	out, res, err := AddParticipant(data, location, startsAt, fullName, loc)
	if err != nil {
		return nil, err
	}
	if !res.Added {
		return res, nil
	}

	res.BackupPath = path + ".bak"
	if err := copyFile(path, res.BackupPath); err != nil {
		return nil, fmt.Errorf("创建备份失败: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		if rerr := copyFile(res.BackupPath, path); rerr != nil {
			return nil, fmt.Errorf("写入快照失败: %v，且恢复备份失败: %w", err, rerr)
		}
		return nil, fmt.Errorf("写入快照失败，已从备份恢复: %w", err)
	}
	return res, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	st, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, st.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
