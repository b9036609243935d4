package runtime

import "context"

const mockGreeting = "Hello! I'm your AI assistant, happy to help. I can answer questions, analyze problems, and offer suggestions. What can I do for you?"

// Mock is the scripted runtime shipped with the starter: one assistant
// message streamed character by character, then one tool call asking the
// front end to change its theme color.
type Mock struct {
	// Text overrides the default greeting when non-empty.
	Text string
	// Fault, when set, aborts the run after FaultAfter outputs. Used to
	// exercise the error path end to end.
	Fault      error
	FaultAfter int
}

// NewMock returns the default scripted runtime.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Run(ctx context.Context, history []Message, out chan<- Output) error {
	text := m.Text
	if text == "" {
		text = mockGreeting
	}

	script := make([]Output, 0, len(text)+5)
	script = append(script, Output{Kind: MessageBegin})
	for _, r := range text {
		script = append(script, Output{Kind: MessageDelta, Text: string(r)})
	}
	script = append(script,
		Output{Kind: MessageEnd},
		Output{Kind: ToolBegin, Name: "setThemeColor"},
		Output{Kind: ToolArgs, Text: `{"themeColor":"orange"}`},
		Output{Kind: ToolEnd},
	)

	for i, o := range script {
		if m.Fault != nil && i >= m.FaultAfter {
			return m.Fault
		}
		select {
		case out <- o:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
