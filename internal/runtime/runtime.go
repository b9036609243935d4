// Package runtime defines the contract between the gateway and whatever
// produces agent output. The gateway only transports that output; reasoning,
// model calls and tool execution live behind the Runtime interface.
package runtime

import "context"

// Message is one turn of conversation history from the inbound request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OutputKind tags a unit of agent activity.
type OutputKind int

const (
	// MessageBegin opens an assistant message. At most one message may be
	// open at a time.
	MessageBegin OutputKind = iota
	// MessageDelta carries a fragment of the open message's text.
	MessageDelta
	// MessageEnd closes the open message.
	MessageEnd
	// ToolBegin opens a tool call; Name carries the tool name.
	ToolBegin
	// ToolArgs carries a fragment of the open tool call's serialized
	// arguments. Fragments concatenate to a valid JSON object.
	ToolArgs
	// ToolEnd closes the open tool call.
	ToolEnd
)

// Output is one unit of agent activity. Identifiers are assigned by the
// encoder, not the runtime, so runtimes stay protocol-agnostic.
type Output struct {
	Kind OutputKind
	Text string // delta text or argument fragment
	Name string // tool name, set on ToolBegin
}

// Runtime produces the content of one run.
//
// Run streams activity into out in emission order and returns nil on success
// or the fault that aborted production. The runtime must not close out; the
// caller owns the channel. Run must stop promptly when ctx is cancelled.
type Runtime interface {
	Run(ctx context.Context, history []Message, out chan<- Output) error
}
