package web

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/coagents/aguid/internal/storage"
)

// responseKind is decided once, when the response declares its content type.
// Downstream accounting dispatches on this tag instead of re-inspecting
// headers per chunk.
type responseKind int

const (
	kindUnknown responseKind = iota
	kindPlain
	kindStreaming
)

// streamingTypes are the media types treated as incremental responses. Bodies
// with these types are never buffered by the logger.
var streamingTypes = []string{
	"text/event-stream",
	"application/stream+json",
	"text/stream",
}

func classify(contentType string) responseKind {
	ct := strings.ToLower(contentType)
	for _, st := range streamingTypes {
		if strings.Contains(ct, st) {
			return kindStreaming
		}
	}
	return kindPlain
}

// httpLog is the passthrough request/response logger. It observes every
// request and response without altering content, chunk boundaries or
// ordering, and records per-request accounting.
func (s *Server) httpLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		log.Printf("[http] %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		if r.URL.RawQuery != "" {
			log.Printf("[http] query: %s", r.URL.RawQuery)
		}

		// The transport body can only be read once: capture it here, log
		// it, and hand the handler an identical replay.
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			body, err := io.ReadAll(r.Body)
			if err != nil {
				log.Printf("[http] request body read failed: %v", err)
			} else {
				if len(body) > 0 {
					log.Printf("[http] request body: %s", truncate(body, s.Config.LogRequestBodyLimit))
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
			}
		}

		lw := &logWriter{ResponseWriter: w, bodyLimit: s.Config.LogRequestBodyLimit}

		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[http] %s %s panicked after %s: %v", r.Method, r.URL.Path, time.Since(start), rec)
				if !lw.wroteHeader {
					jsonError(w, "Internal server error", http.StatusInternalServerError)
					s.recordRequest(r, http.StatusInternalServerError, lw, start)
					return
				}
				// The response is already in flight; nothing coherent
				// can be written. Re-raise so the connection aborts
				// instead of ending as a seemingly complete stream.
				panic(rec)
			}

			elapsed := time.Since(start)
			switch lw.kind {
			case kindStreaming:
				log.Printf("[http] stream done: %d chunks, %d bytes, %.3fs", lw.chunks, lw.bytes, elapsed.Seconds())
			default:
				log.Printf("[http] response: %d (%.3fs)", lw.status(), elapsed.Seconds())
				if lw.captured.Len() > 0 {
					log.Printf("[http] response body: %s", truncate(lw.captured.Bytes(), s.Config.LogRequestBodyLimit))
				}
			}
			s.recordRequest(r, lw.status(), lw, start)
		}()

		next.ServeHTTP(lw, r)
	})
}

func (s *Server) recordRequest(r *http.Request, status int, lw *logWriter, start time.Time) {
	if s.DB == nil {
		return
	}
	err := s.DB.RecordRequest(storage.RequestRecord{
		Method:     r.Method,
		Path:       r.URL.Path,
		Status:     status,
		Bytes:      lw.bytes,
		DurationMs: time.Since(start).Milliseconds(),
		Streaming:  lw.kind == kindStreaming,
	})
	if err != nil {
		log.Printf("[http] request accounting failed: %v", err)
	}
}

// logWriter forwards every write unchanged to the wrapped ResponseWriter
// while counting chunks and bytes. Streaming bodies are logged per chunk and
// never buffered; plain bodies are captured (capped) for one post-completion
// log line.
type logWriter struct {
	http.ResponseWriter
	kind        responseKind
	statusCode  int
	wroteHeader bool
	chunks      int64
	bytes       int64
	captured    bytes.Buffer
	bodyLimit   int
}

func (lw *logWriter) WriteHeader(code int) {
	if !lw.wroteHeader {
		lw.statusCode = code
		lw.wroteHeader = true
		lw.kind = classify(lw.Header().Get("Content-Type"))
		if lw.kind == kindStreaming {
			log.Printf("[http] streaming response: %s", lw.Header().Get("Content-Type"))
		}
	}
	lw.ResponseWriter.WriteHeader(code)
}

func (lw *logWriter) Write(p []byte) (int, error) {
	if !lw.wroteHeader {
		// Implicit 200: classify before the first byte goes out.
		lw.WriteHeader(http.StatusOK)
	}

	lw.chunks++
	lw.bytes += int64(len(p))

	if lw.kind == kindStreaming {
		log.Printf("[http] chunk[%d] (%d bytes): %s", lw.chunks, len(p), strings.TrimSpace(string(p)))
	} else if lw.captured.Len() < lw.bodyLimit {
		room := lw.bodyLimit - lw.captured.Len()
		if room > len(p) {
			room = len(p)
		}
		lw.captured.Write(p[:room])
	}

	return lw.ResponseWriter.Write(p)
}

// Flush propagates flushes so SSE frames reach the client incrementally.
func (lw *logWriter) Flush() {
	if f, ok := lw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (lw *logWriter) status() int {
	if !lw.wroteHeader {
		return http.StatusOK
	}
	return lw.statusCode
}

func truncate(b []byte, limit int) string {
	if limit > 0 && len(b) > limit {
		return string(b[:limit]) + "…(truncated)"
	}
	return string(b)
}
