package web

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/coagents/aguid/internal/protocol"
	"github.com/coagents/aguid/internal/runtime"
	"github.com/coagents/aguid/internal/storage"
	"github.com/coagents/aguid/internal/stream"
)

// runAgentInput is the POST /agui request body. Every field is optional;
// missing ids are generated so a bare POST still yields a valid run.
type runAgentInput struct {
	RunID    string            `json:"runId"`
	ThreadID string            `json:"threadId"`
	Messages []runtime.Message `json:"messages"`
}

// handleAgui streams one run as SSE. The encoder produces events on its own
// goroutine; this handler drains the channel, writing and flushing one frame
// per event so pacing is visible to the client.
func (s *Server) handleAgui(w http.ResponseWriter, r *http.Request) {
	var input runAgentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		// Malformed bodies are non-fatal: ids get generated, history
		// stays empty.
		log.Printf("[agui] unparsable request body, using defaults: %v", err)
	}

	req := stream.RunRequest{
		RunID:    input.RunID,
		ThreadID: input.ThreadID,
		History:  input.Messages,
	}
	req.Normalize()

	log.Printf("[agui] run=%s thread=%s messages=%d", req.RunID, req.ThreadID, len(req.History))

	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	start := time.Now()
	status := protocol.StatusCompleted
	var eventCount, byteCount int64

	for ev := range s.Encoder.Run(r.Context(), req) {
		frame, err := protocol.Frame(ev)
		if err != nil {
			log.Printf("[agui] run=%s dropping unencodable %s event: %v", req.RunID, ev.EventType(), err)
			continue
		}
		if _, err := w.Write(frame); err != nil {
			// Client side went away mid-write; the encoder stops via
			// r.Context() cancellation.
			log.Printf("[agui] run=%s write failed: %v", req.RunID, err)
			break
		}
		flusher.Flush()
		eventCount++
		byteCount += int64(len(frame))
		if ev.EventType() == protocol.EventRunError {
			status = "error"
		}
	}

	if r.Context().Err() != nil {
		status = "disconnected"
	}

	if s.DB != nil {
		rec := storage.RunRecord{
			RunID:      req.RunID,
			ThreadID:   req.ThreadID,
			Status:     status,
			EventCount: eventCount,
			ByteCount:  byteCount,
			DurationMs: time.Since(start).Milliseconds(),
		}
		if err := s.DB.RecordRun(rec); err != nil {
			log.Printf("[agui] run=%s recording failed: %v", req.RunID, err)
		}
	}
}
