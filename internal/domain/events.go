package domain

// UIEventType identifies a canonical UI event shape.
type UIEventType string

const (
	UIEventTextDelta      UIEventType = "text-delta"
	UIEventToolInvocation UIEventType = "tool-invocation"
	UIEventToolResult     UIEventType = "tool-result"
	UIEventFinish         UIEventType = "finish"
	UIEventError          UIEventType = "error"
)

// Valid reports whether t is one of the five canonical event types.
func (t UIEventType) Valid() bool {
	switch t {
	case UIEventTextDelta, UIEventToolInvocation, UIEventToolResult, UIEventFinish, UIEventError:
		return true
	}
	return false
}

// UIEvent is the closed union of events the chat front end understands,
// regardless of the upstream provider's format. The unexported marker keeps
// the union closed so switches over it stay exhaustive.
type UIEvent interface {
	Type() UIEventType
	uiEvent()
}

// TextDelta carries an incremental fragment of assistant text.
type TextDelta struct {
	ID    string `json:"id"`
	Delta string `json:"delta"`
}

// ToolInvocation announces a tool call requested by the model.
type ToolInvocation struct {
	ToolCallID string `json:"toolCallId"`
	ToolName   string `json:"toolName"`
	Args       any    `json:"args"`
	State      string `json:"state,omitempty"`
}

// ToolResult carries the outcome of a previously announced tool call.
type ToolResult struct {
	ToolCallID string `json:"toolCallId"`
	Result     any    `json:"result"`
}

// Finish marks normal completion of a streamed answer.
type Finish struct {
	FinishReason string `json:"finishReason,omitempty"`
}

// ErrorEvent terminates a stream with an upstream-reported error payload.
type ErrorEvent struct {
	Err any `json:"error"`
}

func (TextDelta) Type() UIEventType      { return UIEventTextDelta }
func (ToolInvocation) Type() UIEventType { return UIEventToolInvocation }
func (ToolResult) Type() UIEventType     { return UIEventToolResult }
func (Finish) Type() UIEventType         { return UIEventFinish }
func (ErrorEvent) Type() UIEventType     { return UIEventError }

func (TextDelta) uiEvent()      {}
func (ToolInvocation) uiEvent() {}
func (ToolResult) uiEvent()     {}
func (Finish) uiEvent()         {}
func (ErrorEvent) uiEvent()     {}
