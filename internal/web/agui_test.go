package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/coagents/aguid/internal/config"
	"github.com/coagents/aguid/internal/runtime"
	"github.com/coagents/aguid/internal/storage"
)

func newTestServer(t *testing.T, rt runtime.Runtime) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.EventDelayMs = 0
	cfg.TextDelayMs = 0

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	if rt == nil {
		rt = &runtime.Mock{Text: "hi"}
	}
	return NewServer(&cfg, db, rt)
}

// frames splits an SSE body into its data payloads.
func frames(t *testing.T, body string) []string {
	t.Helper()
	var out []string
	for _, frame := range strings.Split(body, "\n\n") {
		if frame == "" {
			continue
		}
		require.True(t, strings.HasPrefix(frame, "data: "), "malformed frame: %q", frame)
		out = append(out, strings.TrimPrefix(frame, "data: "))
	}
	return out
}

func TestAguiStreamScenario(t *testing.T) {
	s := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/agui",
		strings.NewReader(`{"runId":"r1","threadId":"t1","messages":[]}`))
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")
	require.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	require.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	require.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	payloads := frames(t, rec.Body.String())
	require.NotEmpty(t, payloads)
	require.Equal(t, `{"type":"RUN_STARTED","runId":"r1","threadId":"t1"}`, payloads[0])
	require.Equal(t, `{"type":"RUN_FINISHED","threadId":"t1","runId":"r1","status":"completed"}`,
		payloads[len(payloads)-1])

	// One message (START, CONTENT repeated, END) and one complete tool
	// call with the tool name on START.
	var types []string
	sawToolName := false
	for _, p := range payloads {
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(p), &ev))
		typ, _ := ev["type"].(string)
		types = append(types, typ)
		if typ == "TOOL_CALL_START" {
			name, _ := ev["toolCallName"].(string)
			sawToolName = name != ""
		}
	}
	require.True(t, sawToolName, "TOOL_CALL_START must carry toolCallName")

	joined := strings.Join(types, " ")
	require.Contains(t, joined, "TEXT_MESSAGE_START TEXT_MESSAGE_CONTENT")
	require.Contains(t, joined, "TEXT_MESSAGE_CONTENT TEXT_MESSAGE_END")
	require.Contains(t, joined, "TOOL_CALL_START TOOL_CALL_ARGS TOOL_CALL_END")
}

func TestAguiRecordsRunAccounting(t *testing.T) {
	s := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/agui",
		strings.NewReader(`{"runId":"r1","threadId":"t1"}`))
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	runs, err := s.DB.ListRecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "r1", runs[0].RunID)
	require.Equal(t, "t1", runs[0].ThreadID)
	require.Equal(t, "completed", runs[0].Status)
	require.Equal(t, int64(len(frames(t, rec.Body.String()))), runs[0].EventCount)
	require.Equal(t, int64(rec.Body.Len()), runs[0].ByteCount)
}

func TestAguiMalformedBodyFallsBackToDefaults(t *testing.T) {
	s := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/agui", strings.NewReader("not json at all"))
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	payloads := frames(t, rec.Body.String())
	require.NotEmpty(t, payloads)

	var first map[string]string
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &first))
	require.Equal(t, "RUN_STARTED", first["type"])
	require.True(t, strings.HasPrefix(first["runId"], "run_"), "runId must be generated")
	require.True(t, strings.HasPrefix(first["threadId"], "thread_"), "threadId must be generated")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"status":"healthy","service":"aguid"}`, rec.Body.String())
	// Field order is part of the documented shape.
	require.True(t, strings.HasPrefix(rec.Body.String(), `{"status":"healthy"`))
}

func TestListRuns(t *testing.T) {
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())

	require.NoError(t, s.DB.RecordRun(storage.RunRecord{
		RunID: "r1", ThreadID: "t1", Status: "completed",
		EventCount: 9, ByteCount: 512, DurationMs: 40,
	}))

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []storage.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	require.Equal(t, "r1", runs[0].RunID)
}

func TestBearerAuth(t *testing.T) {
	s := newTestServer(t, nil)
	hash, err := bcrypt.GenerateFromPassword([]byte("sekret"), bcrypt.MinCost)
	require.NoError(t, err)
	hashStr := string(hash)
	s.Config.AuthTokenHash = &hashStr
	router := s.Router()

	post := func(token string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/agui", strings.NewReader(`{}`))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		router.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusUnauthorized, post("").Code)
	require.Equal(t, http.StatusUnauthorized, post("wrong").Code)
	require.Equal(t, http.StatusOK, post("sekret").Code)

	// Health stays open for load balancers.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
