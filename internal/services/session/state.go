package session

import "securechat/internal/domain"

// State is the controller's login state.
type State int

const (
	StateLoggedOut State = iota
	StateAuthenticating
	StateLoggedIn
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateAuthenticating:
		return "authenticating"
	case StateLoggedIn:
		return "logged_in"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time view of the controller. Session is only set
// while LoggedIn.
type Snapshot struct {
	State   State
	Session domain.SessionRecord
}

// Level returns the security level, Standard unless logged in at High.
func (s Snapshot) Level() domain.SecurityLevel {
	if s.State == StateLoggedIn && s.Session.Level == domain.LevelHigh {
		return domain.LevelHigh
	}
	return domain.LevelStandard
}

// Observer is notified after every state change. It must not call back into
// the controller.
type Observer func(Snapshot)
