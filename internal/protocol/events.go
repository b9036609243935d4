// Package protocol defines the AG-UI event vocabulary and its SSE wire form.
//
// Each run is transmitted as an ordered sequence of typed events: one
// RUN_STARTED, any number of text-message and tool-call groups, and exactly
// one terminal event (RUN_FINISHED or run_error). Consumers reconstruct
// message text and tool arguments by concatenating deltas in emission order.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType tags an event variant on the wire.
type EventType string

const (
	EventRunStarted         EventType = "RUN_STARTED"
	EventTextMessageStart   EventType = "TEXT_MESSAGE_START"
	EventTextMessageContent EventType = "TEXT_MESSAGE_CONTENT"
	EventTextMessageEnd     EventType = "TEXT_MESSAGE_END"
	EventToolCallStart      EventType = "TOOL_CALL_START"
	EventToolCallArgs       EventType = "TOOL_CALL_ARGS"
	EventToolCallEnd        EventType = "TOOL_CALL_END"
	EventRunFinished        EventType = "RUN_FINISHED"

	// The error variant keeps the original lowercase spelling and nested
	// payload; clients already parse it that way.
	EventRunError EventType = "run_error"
)

// RoleAssistant is the only role this server generates content for.
const RoleAssistant = "assistant"

// StatusCompleted is the status carried by RUN_FINISHED on success.
const StatusCompleted = "completed"

// Event is one wire unit. Terminal reports whether the event closes its run;
// no event may follow a terminal one.
type Event interface {
	EventType() EventType
	Terminal() bool
}

type RunStartedEvent struct {
	Type     EventType `json:"type"`
	RunID    string    `json:"runId"`
	ThreadID string    `json:"threadId"`
}

type TextMessageStartEvent struct {
	Type      EventType `json:"type"`
	MessageID string    `json:"messageId"`
	Role      string    `json:"role"`
}

type TextMessageContentEvent struct {
	Type      EventType `json:"type"`
	MessageID string    `json:"messageId"`
	Delta     string    `json:"delta"`
}

type TextMessageEndEvent struct {
	Type      EventType `json:"type"`
	MessageID string    `json:"messageId"`
}

type ToolCallStartEvent struct {
	Type         EventType `json:"type"`
	ToolCallName string    `json:"toolCallName"`
	ToolCallID   string    `json:"toolCallId"`
}

type ToolCallArgsEvent struct {
	Type       EventType `json:"type"`
	Delta      string    `json:"delta"`
	ToolCallID string    `json:"toolCallId"`
}

type ToolCallEndEvent struct {
	Type       EventType `json:"type"`
	ToolCallID string    `json:"toolCallId"`
}

// RunFinishedEvent declares threadId before runId; the original wire format
// serializes them in that order and tests pin the exact frame bytes.
type RunFinishedEvent struct {
	Type     EventType `json:"type"`
	ThreadID string    `json:"threadId"`
	RunID    string    `json:"runId"`
	Status   string    `json:"status"`
}

// ErrorDetail is the nested payload of a run_error event.
type ErrorDetail struct {
	Code      string  `json:"code"`
	Message   string  `json:"message"`
	Timestamp float64 `json:"timestamp"`
}

type RunErrorEvent struct {
	Type  EventType   `json:"type"`
	RunID string      `json:"run_id"`
	Error ErrorDetail `json:"error"`
}

func (e RunStartedEvent) EventType() EventType         { return e.Type }
func (e TextMessageStartEvent) EventType() EventType   { return e.Type }
func (e TextMessageContentEvent) EventType() EventType { return e.Type }
func (e TextMessageEndEvent) EventType() EventType     { return e.Type }
func (e ToolCallStartEvent) EventType() EventType      { return e.Type }
func (e ToolCallArgsEvent) EventType() EventType       { return e.Type }
func (e ToolCallEndEvent) EventType() EventType        { return e.Type }
func (e RunFinishedEvent) EventType() EventType        { return e.Type }
func (e RunErrorEvent) EventType() EventType           { return e.Type }

func (RunStartedEvent) Terminal() bool         { return false }
func (TextMessageStartEvent) Terminal() bool   { return false }
func (TextMessageContentEvent) Terminal() bool { return false }
func (TextMessageEndEvent) Terminal() bool     { return false }
func (ToolCallStartEvent) Terminal() bool      { return false }
func (ToolCallArgsEvent) Terminal() bool       { return false }
func (ToolCallEndEvent) Terminal() bool        { return false }
func (RunFinishedEvent) Terminal() bool        { return true }
func (RunErrorEvent) Terminal() bool           { return true }

func RunStarted(runID, threadID string) RunStartedEvent {
	return RunStartedEvent{Type: EventRunStarted, RunID: runID, ThreadID: threadID}
}

func TextMessageStart(messageID string) TextMessageStartEvent {
	return TextMessageStartEvent{Type: EventTextMessageStart, MessageID: messageID, Role: RoleAssistant}
}

func TextMessageContent(messageID, delta string) TextMessageContentEvent {
	return TextMessageContentEvent{Type: EventTextMessageContent, MessageID: messageID, Delta: delta}
}

func TextMessageEnd(messageID string) TextMessageEndEvent {
	return TextMessageEndEvent{Type: EventTextMessageEnd, MessageID: messageID}
}

func ToolCallStart(toolCallID, toolCallName string) ToolCallStartEvent {
	return ToolCallStartEvent{Type: EventToolCallStart, ToolCallName: toolCallName, ToolCallID: toolCallID}
}

func ToolCallArgs(toolCallID, delta string) ToolCallArgsEvent {
	return ToolCallArgsEvent{Type: EventToolCallArgs, Delta: delta, ToolCallID: toolCallID}
}

func ToolCallEnd(toolCallID string) ToolCallEndEvent {
	return ToolCallEndEvent{Type: EventToolCallEnd, ToolCallID: toolCallID}
}

func RunFinished(runID, threadID string) RunFinishedEvent {
	return RunFinishedEvent{Type: EventRunFinished, ThreadID: threadID, RunID: runID, Status: StatusCompleted}
}

func RunError(runID, code, message string) RunErrorEvent {
	return RunErrorEvent{
		Type:  EventRunError,
		RunID: runID,
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		},
	}
}

// Frame renders an event as one SSE frame: "data: <json>\n\n".
func Frame(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", e.EventType(), err)
	}
	buf := make([]byte, 0, len(payload)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, payload...)
	buf = append(buf, "\n\n"...)
	return buf, nil
}
