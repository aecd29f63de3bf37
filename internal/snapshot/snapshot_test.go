package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"LundaSync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func moscow(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	return loc
}

const dictDoc = `{
  "last_updated": "2025-05-30T10:00:00",
  "tournaments": {
    "Court A evening": {
      "tournament": {"title": "Evening cup", "location": "Court A", "organizer": "Lunda", "price": "6 000 Р за пару", "category": "Турнир"},
      "start_datetime": "2025-06-01T18:00",
      "end_datetime": "2025-06-01T21:00:00",
      "participants": ["Ivan Petrov", "  Anna Smirnova ", "", null, "Ivan Petrov"]
    },
    "broken": {
      "tournament": {"title": "No start", "location": "Court B"},
      "participants": []
    },
    "Court C": {
      "tournament": {"title": "Morning", "location": "Court C", "price": "бесплатно"},
      "start_datetime": "2025-06-02T09:00:00+00:00",
      "last_updated": "2025-06-01T00:00:00"
    }
  }
}`

func TestParseDictPreservesOrder(t *testing.T) {
	doc, err := Parse([]byte(dictDoc))
	require.NoError(t, err)
	require.Len(t, doc.Records, 3)
	assert.Equal(t, "Court A evening", doc.Records[0].Key)
	assert.Equal(t, "broken", doc.Records[1].Key)
	assert.Equal(t, "Court C", doc.Records[2].Key)
	assert.Equal(t, "2025-05-30T10:00:00", doc.LastUpdated)
}

func TestParseList(t *testing.T) {
	doc, err := Parse([]byte(`{"tournaments": [{"tournament": {"location": "X"}, "start_datetime": "2025-01-01 10:00"}]}`))
	require.NoError(t, err)
	require.Len(t, doc.Records, 1)
	assert.Equal(t, "0", doc.Records[0].Key)
}

func TestParseMissingTournaments(t *testing.T) {
	_, err := Parse([]byte(`{"last_updated": "x"}`))
	assert.ErrorIs(t, err, ErrNoTournaments)

	_, err = Parse([]byte(`{"tournaments": {}}`))
	assert.ErrorIs(t, err, ErrNoTournaments)

	_, err = Parse([]byte(`not json`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"tournaments": 5}`))
	assert.Error(t, err)
}

func TestParseRecord(t *testing.T) {
	loc := moscow(t)
	doc, err := Parse([]byte(dictDoc))
	require.NoError(t, err)

	first, err := ParseRecord(doc.Records[0], doc.LastUpdated, loc)
	require.NoError(t, err)
	assert.Equal(t, "Court A", first.Location)
	assert.Equal(t, "Evening cup", first.Title)
	assert.Equal(t, int64(6000), first.PriceRub)
	assert.Equal(t, model.CategoryTeam, first.Category)
	assert.True(t, first.StartsAt.Equal(time.Date(2025, 6, 1, 18, 0, 0, 0, loc)))
	require.NotNil(t, first.EndsAt)
	assert.True(t, first.EndsAt.Equal(time.Date(2025, 6, 1, 21, 0, 0, 0, loc)))
	assert.Equal(t, []string{"Ivan Petrov", "Anna Smirnova"}, first.Participants)
	assert.Equal(t, "2025-05-30T10:00:00", first.SourceLastUpdated)

	_, err = ParseRecord(doc.Records[1], doc.LastUpdated, loc)
	var recErr *RecordError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, "broken", recErr.Key)

	third, err := ParseRecord(doc.Records[2], doc.LastUpdated, loc)
	require.NoError(t, err)
	assert.Equal(t, int64(0), third.PriceRub)
	assert.Equal(t, model.CategoryPersonal, third.Category)
	assert.Equal(t, 12, third.StartsAt.Hour(), "UTC 09:00 换算到莫斯科")
	assert.Equal(t, "2025-06-01T00:00:00", third.SourceLastUpdated)
	assert.Empty(t, third.Participants)
}

func TestParseRecordBadShape(t *testing.T) {
	_, err := ParseRecord(RawRecord{Key: "k", Raw: []byte(`{"participants": "oops"}`)}, "", time.UTC)
	var recErr *RecordError
	assert.True(t, errors.As(err, &recErr))

	_, err = ParseRecord(RawRecord{Key: "k", Raw: []byte(`{"tournament": {"location": "A"}, "start_datetime": "someday"}`)}, "", time.UTC)
	assert.True(t, errors.As(err, &recErr))
}

func TestParseTime(t *testing.T) {
	loc := moscow(t)
	want := time.Date(2025, 6, 1, 18, 0, 0, 0, loc)
	for _, s := range []string{
		"2025-06-01T18:00",
		"2025-06-01 18:00",
		"2025-06-01T18:00:00",
		"2025-06-01 18:00:00",
		"2025-06-01T15:00:00Z",
		"2025-06-01T18:00:00+03:00",
		"2025-06-01T18:00:00+0300",
	} {
		got, err := ParseTime(s, loc)
		require.NoError(t, err, s)
		assert.True(t, got.Equal(want), "%s -> %s", s, got)
		assert.Equal(t, loc, got.Location())
	}

	got, err := ParseTime("2025-06-01T18:00:00.1234567", loc)
	require.NoError(t, err)
	assert.Equal(t, 123456000, got.Nanosecond())

	_, err = ParseTime("01.06.2025", loc)
	assert.Error(t, err)
}

func TestParsePrice(t *testing.T) {
	assert.Equal(t, int64(6000), ParsePrice("6000 Р за пару"))
	assert.Equal(t, int64(6000), ParsePrice("6 000 Р"))
	assert.Equal(t, int64(1500), ParsePrice("от 1500"))
	assert.Equal(t, int64(0), ParsePrice("бесплатно"))
	assert.Equal(t, int64(0), ParsePrice(""))
	assert.Equal(t, int64(0), ParsePrice("99999999999999999999999"))
}

func TestParseCategory(t *testing.T) {
	assert.Equal(t, model.CategoryTeam, ParseCategory("Командный", ""))
	assert.Equal(t, model.CategoryTeam, ParseCategory("", "3000 за пару"))
	assert.Equal(t, model.CategoryTeam, ParseCategory("Team event", ""))
	assert.Equal(t, model.CategoryPersonal, ParseCategory("Американо", "1500"))
}

func TestAddParticipantFile(t *testing.T) {
	loc := moscow(t)
	path := filepath.Join(t.TempDir(), "tournaments.json")
	require.NoError(t, os.WriteFile(path, []byte(dictDoc), 0o644))
	startsAt := time.Date(2025, 6, 1, 18, 0, 0, 0, loc)

	res, err := AddParticipantFile(path, "Court A", startsAt, "Olga Ivanova", loc)
	require.NoError(t, err)
	assert.True(t, res.Added)
	assert.Equal(t, "Evening cup", res.Title)
	assert.FileExists(t, path+".bak")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc, err := Parse(data)
	require.NoError(t, err)
	var found *Tournament
	for _, r := range doc.Records {
		if tr, err := ParseRecord(r, doc.LastUpdated, loc); err == nil && tr.Location == "Court A" {
			found = tr
		}
	}
	require.NotNil(t, found)
	assert.Contains(t, found.Participants, "Olga Ivanova")

	// 按 title 也能找到，重复添加不改动
	res, err = AddParticipantFile(path, "Evening cup", startsAt, " Olga Ivanova ", loc)
	require.NoError(t, err)
	assert.False(t, res.Added)

	_, err = AddParticipantFile(path, "Court Z", startsAt, "X", loc)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestAddParticipantKeepsDocumentShape(t *testing.T) {
	loc := moscow(t)
	data := []byte(`{
  "tournaments": {
    "zeta": {"tournament": {"title": "Z", "location": "Court Z", "price": 1500, "seats": 12345678901234567890}, "start_datetime": "2025-06-03T18:00"},
    "alpha": {"tournament": {"title": "Dup", "location": "Court D"}, "start_datetime": "2025-06-04T18:00", "participants": ["Anna"]},
    "mid": {"tournament": {"title": "Dup", "location": "Court D"}, "start_datetime": "2025-06-04T18:00", "participants": []}
  },
  "last_updated": "2025-06-01T00:00:00"
}`)
	startsAt := time.Date(2025, 6, 4, 18, 0, 0, 0, loc)

	out, res, err := AddParticipant(data, "Court D", startsAt, "Oleg <Sidorov>", loc)
	require.NoError(t, err)
	assert.True(t, res.Added)

	doc, err := Parse(out)
	require.NoError(t, err)
	require.Len(t, doc.Records, 3)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, []string{doc.Records[0].Key, doc.Records[1].Key, doc.Records[2].Key})
	assert.Equal(t, "2025-06-01T00:00:00", doc.LastUpdated)

	// 数字原样保留，不变成浮点
	assert.Contains(t, string(out), "12345678901234567890")
	assert.Contains(t, string(out), `"price": 1500`)
	assert.Contains(t, string(out), `"Oleg <Sidorov>"`)

	// 多条匹配时只改文档顺序中的第一条
	first, err := ParseRecord(doc.Records[1], doc.LastUpdated, loc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Anna", "Oleg <Sidorov>"}, first.Participants)
	second, err := ParseRecord(doc.Records[2], doc.LastUpdated, loc)
	require.NoError(t, err)
	assert.Empty(t, second.Participants)

	// 没有 participants 字段时补上
	out, res, err = AddParticipant(out, "Court Z", time.Date(2025, 6, 3, 18, 0, 0, 0, loc), "Ivan Petrov", loc)
	require.NoError(t, err)
	assert.True(t, res.Added)
	doc, err = Parse(out)
	require.NoError(t, err)
	z, err := ParseRecord(doc.Records[0], doc.LastUpdated, loc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ivan Petrov"}, z.Participants)
}

func TestAddParticipantList(t *testing.T) {
	loc := moscow(t)
	data := []byte(`{"tournaments": [{"tournament": {"location": "X"}, "start_datetime": "2025-01-01 10:00", "participants": ["A"]}]}`)

	out, res, err := AddParticipant(data, "X", time.Date(2025, 1, 1, 10, 0, 0, 0, loc), "B", loc)
	require.NoError(t, err)
	assert.True(t, res.Added)
	doc, err := Parse(out)
	require.NoError(t, err)
	tr, err := ParseRecord(doc.Records[0], doc.LastUpdated, loc)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, tr.Participants)
}
