package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"LundaSync/internal/adapter/file"
	"LundaSync/internal/config"
	"LundaSync/internal/model"
	"LundaSync/internal/repository"
	"LundaSync/internal/service"
	"LundaSync/internal/testutils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const firstSnapshot = `{"tournaments": {
  "a": {"tournament": {"title": "Evening cup", "location": "Court A"}, "start_datetime": "2025-06-12T18:00", "participants": ["Ivan Petrov"]}
}}`

const secondSnapshot = `{"tournaments": {
  "a": {"tournament": {"title": "Evening cup", "location": "Court A"}, "start_datetime": "2025-06-12T18:00", "participants": ["Ivan Petrov"]},
  "b": {"tournament": {"title": "Morning cup", "location": "Court B"}, "start_datetime": "2025-06-13T09:00", "participants": ["Ivan Petroov"]}
}}`

type apiEnv struct {
	router *gin.Engine
	sync   *service.SyncService
	tokens *TokenIssuer
	clock  *testutils.Clock
	path   string
}

func newEnv(t *testing.T) *apiEnv {
	gin.SetMode(gin.TestMode)
	loc := testutils.Moscow(t)
	clock := testutils.NewClock(time.Date(2025, 6, 10, 10, 0, 0, 0, loc))
	db := testutils.NewSQLiteDB(t)

	path := filepath.Join(t.TempDir(), "tournaments.json")
	require.NoError(t, os.WriteFile(path, []byte(firstSnapshot), 0o644))
	src, err := file.New(path, nil, testutils.Logger())
	require.NoError(t, err)

	cfg := service.EngineConfig{Location: loc, FuzzyBackend: repository.FuzzyMemory, ReconnectAttempts: 1, Now: clock.Now}
	syncSvc := service.NewSyncService(cfg, db, src, nil, nil, testutils.Logger())
	tokens := NewTokenIssuer(config.AdminConfig{JWTSecret: "test-secret", TokenTTL: time.Hour})

	router := NewRouter(RouterDeps{
		DB:       db,
		Sync:     syncSvc,
		Tokens:   tokens,
		Location: loc,
		Logger:   testutils.Logger(),
	})
	return &apiEnv{router: router, sync: syncSvc, tokens: tokens, clock: clock, path: path}
}

func (e *apiEnv) runWith(t *testing.T, snapshot string) {
	t.Helper()
	require.NoError(t, os.WriteFile(e.path, []byte(snapshot), 0o644))
	e.clock.Advance(time.Hour)
	_, err := e.sync.Run(context.Background())
	require.NoError(t, err)
}

func (e *apiEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *apiEnv) token(t *testing.T) string {
	t.Helper()
	tok, err := e.tokens.Issue("alice")
	require.NoError(t, err)
	return tok
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/health", nil, "").Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/db-check", nil, "").Code)
}

func TestSyncRequiresToken(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, "/sync/run", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, "/sync/run", nil, "garbage").Code)

	w := e.do(t, http.MethodPost, "/sync/run", nil, e.token(t))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sum service.RunSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	assert.Equal(t, model.RunSuccess, sum.Status)
	assert.Equal(t, 1, sum.TournamentsCreated)

	w = e.do(t, http.MethodGet, "/api/sync/runs?limit=5", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var runs struct {
		Items []map[string]interface{} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	require.Len(t, runs.Items, 1)
	assert.Equal(t, "success", runs.Items[0]["status"])
}

func TestTournamentRoster(t *testing.T) {
	e := newEnv(t)
	e.runWith(t, firstSnapshot)

	w := e.do(t, http.MethodGet, "/api/tournaments/1", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view TournamentView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "Court A", view.Location)
	require.Len(t, view.Entries, 1)
	assert.Equal(t, "Ivan Petrov", view.Entries[0].FullName)
	assert.Empty(t, view.PendingView)

	w = e.do(t, http.MethodGet, "/api/tournaments/1/roster.xlsx", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotZero(t, w.Body.Len())

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/tournaments/999", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/tournaments/abc", nil, "").Code)
}

func TestPendingWorkflow(t *testing.T) {
	e := newEnv(t)
	e.runWith(t, firstSnapshot)
	e.runWith(t, secondSnapshot)
	tok := e.token(t)

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/pending", nil, "").Code)

	w := e.do(t, http.MethodGet, "/api/pending", nil, tok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list PendingListResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, int64(1), list.Total)
	p := list.Items[0]
	assert.Equal(t, "Ivan Petroov", p.RawName)
	require.NotEmpty(t, p.Candidates)
	playerID := p.Candidates[0].PlayerID

	path := "/api/pending/" + jsonID(p.ID)
	w = e.do(t, http.MethodGet, path, nil, tok)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, path+"/approve", map[string]interface{}{}, tok).Code)
	assert.Equal(t, http.StatusNotFound,
		e.do(t, http.MethodPost, path+"/approve", ApproveRequest{PlayerID: 999}, tok).Code)

	w = e.do(t, http.MethodPost, path+"/approve", ApproveRequest{PlayerID: playerID}, tok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out OutcomeView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, model.PendingResolved, out.Pending.Status)
	require.NotNil(t, out.Pending.ResolvedBy)
	assert.Equal(t, "alice", *out.Pending.ResolvedBy)
	assert.NotZero(t, out.EntryID)

	assert.Equal(t, http.StatusConflict, e.do(t, http.MethodPost, path+"/reject", nil, tok).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/api/pending/999/snooze", nil, tok).Code)
}

func TestTokenIssuer(t *testing.T) {
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer(config.AdminConfig{JWTSecret: "s1", TokenTTL: time.Hour})
	issuer.now = func() time.Time { return now }

	tok, err := issuer.Issue("alice")
	require.NoError(t, err)
	actor, err := issuer.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", actor)

	other := NewTokenIssuer(config.AdminConfig{JWTSecret: "s2"})
	_, err = other.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	issuer.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = issuer.Parse(tok)
	assert.ErrorIs(t, err, ErrExpiredToken)

	disabled := NewTokenIssuer(config.AdminConfig{})
	_, err = disabled.Issue("alice")
	assert.ErrorIs(t, err, ErrAuthDisabled)
}

func jsonID(id uint64) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}
