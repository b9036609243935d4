package web

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coagents/aguid/internal/config"
)

// chunkRecorder records every Write as a separate chunk so chunk boundaries
// can be asserted, which httptest.ResponseRecorder's single buffer cannot.
type chunkRecorder struct {
	header  http.Header
	status  int
	chunks  [][]byte
	flushes int
}

func newChunkRecorder() *chunkRecorder {
	return &chunkRecorder{header: make(http.Header), status: http.StatusOK}
}

func (c *chunkRecorder) Header() http.Header { return c.header }

func (c *chunkRecorder) WriteHeader(code int) { c.status = code }

func (c *chunkRecorder) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)
	c.chunks = append(c.chunks, buf)
	return len(p), nil
}

func (c *chunkRecorder) Flush() { c.flushes++ }

func (c *chunkRecorder) body() []byte {
	return bytes.Join(c.chunks, nil)
}

func testLogServer() *Server {
	cfg := config.DefaultConfig()
	return &Server{Config: &cfg}
}

// captureLog redirects the process logger for one test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })
	return &buf
}

func TestStreamingPassthroughPreservesChunks(t *testing.T) {
	logs := captureLog(t)

	chunks := []string{
		"data: {\"type\":\"RUN_STARTED\"}\n\n",
		"data: {\"type\":\"TEXT_MESSAGE_CONTENT\",\"delta\":\"x\"}\n\n",
		"data: {\"type\":\"RUN_FINISHED\"}\n\n",
	}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		f := w.(http.Flusher)
		for _, c := range chunks {
			io.WriteString(w, c)
			f.Flush()
		}
	})

	s := testLogServer()
	rec := newChunkRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	s.httpLog(handler).ServeHTTP(rec, req)

	require.Len(t, rec.chunks, len(chunks), "chunk count must be preserved")
	for i, want := range chunks {
		require.Equal(t, want, string(rec.chunks[i]), "chunk %d altered", i)
	}
	require.Equal(t, len(chunks), rec.flushes, "every flush must propagate")

	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	require.Contains(t, logs.String(), "streaming response: text/event-stream")
	require.Contains(t, logs.String(), "3 chunks")
	require.Contains(t, logs.String(), strconv.Itoa(total)+" bytes")
}

func TestPlainJSONPassthrough(t *testing.T) {
	logs := captureLog(t)

	const body = `{"answer":42}`
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, body)
	})

	s := testLogServer()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/thing", nil)
	s.httpLog(handler).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, body, rec.Body.String(), "plain body must pass through unchanged")
	require.Contains(t, logs.String(), body, "plain JSON body must be logged")
}

func TestRequestBodyReplayedToHandler(t *testing.T) {
	logs := captureLog(t)

	const body = `{"runId":"r1","threadId":"t1"}`
	var seen string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen = string(b)
		w.WriteHeader(http.StatusNoContent)
	})

	s := testLogServer()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/agui", strings.NewReader(body))
	s.httpLog(handler).ServeHTTP(rec, req)

	require.Equal(t, body, seen, "downstream must receive the body unaltered")
	require.Contains(t, logs.String(), body, "request body must be logged")
}

func TestPanicBecomesInternalError(t *testing.T) {
	logs := captureLog(t)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	})

	s := testLogServer()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	s.httpLog(handler).ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "Internal server error")
	require.Contains(t, logs.String(), "handler exploded")
}

func TestMidStreamPanicIsContained(t *testing.T) {
	logs := captureLog(t)

	// Routes can still be added before the first request is served; mount
	// a handler that dies after the stream has started.
	s := newTestServer(t, nil)
	router := s.Router()
	router.Get("/burst", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"type\":\"RUN_STARTED\"}\n\n")
		w.(http.Flusher).Flush()
		panic("stream source died")
	})

	rec := httptest.NewRecorder()
	// Must not escape the middleware chain and kill the process: httpLog
	// logs and re-raises, the router's outer recoverer absorbs it.
	require.NotPanics(t, func() {
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/burst", nil))
	})

	require.Contains(t, rec.Body.String(), `"type":"RUN_STARTED"`,
		"chunks already flushed stay delivered")
	require.Contains(t, logs.String(), "stream source died")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		contentType string
		want        responseKind
	}{
		{"text/event-stream", kindStreaming},
		{"text/event-stream; charset=utf-8", kindStreaming},
		{"application/stream+json", kindStreaming},
		{"text/stream", kindStreaming},
		{"application/json", kindPlain},
		{"text/html", kindPlain},
		{"", kindPlain},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, classify(tc.contentType), "content type %q", tc.contentType)
	}
}
