package agent

// State is the position of a chat request in its round loop.
//
//	RoundStart -> Streaming -> ContentDone (terminal)
//	                        -> ToolCallsDone -> RoundStart, or terminal when
//	                           the round budget is spent
type State int

const (
	StateRoundStart State = iota
	StateStreaming
	StateContentDone
	StateToolCallsDone
)

func (s State) String() string {
	switch s {
	case StateRoundStart:
		return "round_start"
	case StateStreaming:
		return "streaming"
	case StateContentDone:
		return "content_done"
	case StateToolCallsDone:
		return "toolcalls_done"
	default:
		return "unknown"
	}
}
