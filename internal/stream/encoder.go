// Package stream turns a runtime's raw activity into the ordered AG-UI event
// sequence for one run. The encoder owns id assignment, pacing, and the
// guarantee that every consumed stream ends in exactly one terminal event.
package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/coagents/aguid/internal/core"
	"github.com/coagents/aguid/internal/protocol"
	"github.com/coagents/aguid/internal/runtime"
)

// Options controls emission pacing and buffering.
type Options struct {
	// EventDelay is the pause after each lifecycle event, emulating
	// real-time generation. Zero disables pacing.
	EventDelay time.Duration
	// TextDelay is the pause after each TEXT_MESSAGE_CONTENT delta.
	TextDelay time.Duration
	// Buffer is the capacity of the returned event channel and of the
	// runtime output channel.
	Buffer int
}

// RunRequest identifies one run and carries its conversation history.
type RunRequest struct {
	RunID    string
	ThreadID string
	History  []runtime.Message
}

// Normalize fills in generated identifiers for any the caller left empty.
func (r *RunRequest) Normalize() {
	if r.RunID == "" {
		r.RunID = protocol.NewRunID()
	}
	if r.ThreadID == "" {
		r.ThreadID = protocol.NewThreadID()
	}
}

// Encoder drives a runtime and emits protocol events.
type Encoder struct {
	rt   runtime.Runtime
	opts Options
}

func New(rt runtime.Runtime, opts Options) *Encoder {
	if opts.Buffer <= 0 {
		opts.Buffer = 100
	}
	return &Encoder{rt: rt, opts: opts}
}

// Run starts a producer goroutine for the request and returns its event
// channel. The channel is closed after the terminal event, or without one if
// ctx is cancelled first (a disconnected client has no use for a terminal
// event). The channel is single-consumption: once drained it is done.
func (e *Encoder) Run(ctx context.Context, req RunRequest) <-chan protocol.Event {
	req.Normalize()
	events := make(chan protocol.Event, e.opts.Buffer)
	go e.produce(ctx, req, events)
	return events
}

func (e *Encoder) produce(parent context.Context, req RunRequest, events chan<- protocol.Event) {
	defer close(events)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	if !e.send(ctx, events, protocol.RunStarted(req.RunID, req.ThreadID), e.opts.EventDelay) {
		return
	}

	out := make(chan runtime.Output, e.opts.Buffer)
	errc := make(chan error, 1)
	go func() {
		errc <- e.rt.Run(ctx, req.History, out)
		close(out)
	}()

	var openMsg, openTool string
	var fault error

	for o := range out {
		ev, delay, err := e.translate(o, &openMsg, &openTool)
		if err != nil {
			fault = err
			break
		}
		if !e.send(ctx, events, ev, delay) {
			return
		}
	}

	// Unblock the producer if we broke out early, then collect its result.
	cancel()
	if fault == nil {
		fault = <-errc
	}

	// Client gone: no consumer to deliver a terminal event to.
	if parent.Err() != nil {
		return
	}

	if fault != nil {
		e.send(parent, events, protocol.RunError(req.RunID, "INTERNAL_ERROR", fault.Error()), 0)
		return
	}

	// A well-behaved runtime closes what it opens; close anything dangling
	// so the stream stays well formed.
	if openTool != "" {
		if !e.send(parent, events, protocol.ToolCallEnd(openTool), e.opts.EventDelay) {
			return
		}
	}
	if openMsg != "" {
		if !e.send(parent, events, protocol.TextMessageEnd(openMsg), e.opts.EventDelay) {
			return
		}
	}
	e.send(parent, events, protocol.RunFinished(req.RunID, req.ThreadID), 0)
}

// translate maps one runtime output to a protocol event, tracking open
// message/tool-call ids and rejecting out-of-order activity.
func (e *Encoder) translate(o runtime.Output, openMsg, openTool *string) (protocol.Event, time.Duration, error) {
	switch o.Kind {
	case runtime.MessageBegin:
		if *openMsg != "" || *openTool != "" {
			return nil, 0, core.NewRuntimeErrorf("runtime opened a message while %s", openSubject(*openMsg, *openTool))
		}
		*openMsg = protocol.NewMessageID()
		return protocol.TextMessageStart(*openMsg), e.opts.EventDelay, nil
	case runtime.MessageDelta:
		if *openMsg == "" {
			return nil, 0, core.NewRuntimeErrorf("runtime emitted a text delta with no open message")
		}
		return protocol.TextMessageContent(*openMsg, o.Text), e.opts.TextDelay, nil
	case runtime.MessageEnd:
		if *openMsg == "" {
			return nil, 0, core.NewRuntimeErrorf("runtime closed a message that was never opened")
		}
		id := *openMsg
		*openMsg = ""
		return protocol.TextMessageEnd(id), e.opts.EventDelay, nil
	case runtime.ToolBegin:
		if *openMsg != "" || *openTool != "" {
			return nil, 0, core.NewRuntimeErrorf("runtime opened a tool call while %s", openSubject(*openMsg, *openTool))
		}
		*openTool = protocol.NewToolCallID()
		return protocol.ToolCallStart(*openTool, o.Name), e.opts.EventDelay, nil
	case runtime.ToolArgs:
		if *openTool == "" {
			return nil, 0, core.NewRuntimeErrorf("runtime emitted tool args with no open tool call")
		}
		return protocol.ToolCallArgs(*openTool, o.Text), e.opts.EventDelay, nil
	case runtime.ToolEnd:
		if *openTool == "" {
			return nil, 0, core.NewRuntimeErrorf("runtime closed a tool call that was never opened")
		}
		id := *openTool
		*openTool = ""
		return protocol.ToolCallEnd(id), e.opts.EventDelay, nil
	default:
		return nil, 0, core.NewRuntimeErrorf("runtime emitted unknown output kind %d", o.Kind)
	}
}

func openSubject(msg, tool string) string {
	if msg != "" {
		return fmt.Sprintf("message %s is open", msg)
	}
	return fmt.Sprintf("tool call %s is open", tool)
}

// send delivers one event and then paces. Returns false when ctx is
// cancelled, which means the consumer is gone and production must stop.
func (e *Encoder) send(ctx context.Context, events chan<- protocol.Event, ev protocol.Event, delay time.Duration) bool {
	select {
	case events <- ev:
	case <-ctx.Done():
		return false
	}
	if delay <= 0 {
		return true
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
