package ptls

// TunnelState is the tunnel's lifecycle position. Transitions are
// monotonic except that any protocol violation during Handshake jumps
// straight to Terminated.
//
//	Handshake --success--> Application --close--> GracefullyDisconnected
//	    |                       |
//	    +--fatal-----+          +--fatal--> Terminated
//	                 v
//	            Terminated
type TunnelState uint32

const (
	StateHandshake TunnelState = iota
	StateApplication
	StateTerminated
	StateGracefullyDisconnected
)

func (s TunnelState) String() string {
	switch s {
	case StateHandshake:
		return "Handshake"
	case StateApplication:
		return "Application"
	case StateTerminated:
		return "Terminated"
	case StateGracefullyDisconnected:
		return "GracefullyDisconnected"
	default:
		return "TunnelState(unknown)"
	}
}

// dead reports whether the state no longer accepts Send/Receive.
func (s TunnelState) dead() bool {
	return s == StateTerminated || s == StateGracefullyDisconnected
}
