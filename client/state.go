package client

// State is the lifecycle stage of a connection. Disconnected and Connecting
// only appear in Dial's logs: a Conn exists from Connected onward, then moves
// through Draining to Closed during Shutdown.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Draining
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Draining:
		return "draining"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
