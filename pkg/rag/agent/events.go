package agent

// Event is the closed set of things the executor reports while a
// turn runs. Consumers switch over the concrete types; adding a new
// kind is a compile-visible change at every switch.
type Event interface {
	isEvent()
}

// TokenEvent carries one generated text fragment.
type TokenEvent struct {
	Text string
}

// ToolCompletedEvent carries a finished tool call's name and its raw
// output text.
type ToolCompletedEvent struct {
	Name      string
	RawOutput string
}

// StreamEndEvent closes the stream. Err is non-nil when the model
// call failed mid-turn.
type StreamEndEvent struct {
	Err error
}

func (TokenEvent) isEvent()         {}
func (ToolCompletedEvent) isEvent() {}
func (StreamEndEvent) isEvent()     {}
