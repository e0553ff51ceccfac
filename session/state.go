package session

// State is a step of the session lifecycle.
type State int

const (
	// StateConnecting is the initial state: the transport exists but the
	// greeting has not been read.
	StateConnecting State = iota

	// StateGreeted means the server sent 220.
	StateGreeted

	// StateAuthenticating means the login handshake is in progress.
	StateAuthenticating

	// StateReady means the controller is accepting operator commands.
	StateReady

	// StateTerminated is absorbing: the transport has been closed.
	StateTerminated
)

var stateNames = [...]string{
	StateConnecting:     "connecting",
	StateGreeted:        "greeted",
	StateAuthenticating: "authenticating",
	StateReady:          "ready",
	StateTerminated:     "terminated",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
