package auth

// State of the credential lifecycle
type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
	Refreshing
	EmailPendingVerification
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	case EmailPendingVerification:
		return "email_pending_verification"
	}
	return "unknown"
}

// StateObserver is notified after every applied transition
type StateObserver func(from, to State)

// Every state may fall back to Anonymous; these are the other legal moves.
var transitions = map[State][]State{
	Anonymous:                {Authenticating, EmailPendingVerification},
	Authenticating:           {Authenticated, EmailPendingVerification},
	Authenticated:            {Refreshing, Authenticating},
	Refreshing:               {Authenticated},
	EmailPendingVerification: {Authenticating},
}

// CanTransition reports whether from -> to is a legal move
func CanTransition(from, to State) bool {
	if to == Anonymous || from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
