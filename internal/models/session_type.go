package models

// SessionType identifies the pedagogical nature of a session.
type SessionType string

const (
	SessionTypeCM  SessionType = "CM"  // lecture
	SessionTypeTD  SessionType = "TD"  // tutorial
	SessionTypeTP  SessionType = "TP"  // lab
	SessionTypeTPE SessionType = "TPE" // supervised personal work
)

// AllSessionTypes lists the supported types in pedagogical order.
var AllSessionTypes = []SessionType{SessionTypeCM, SessionTypeTD, SessionTypeTP, SessionTypeTPE}

// Valid reports whether the type is one of the supported session types.
func (t SessionType) Valid() bool {
	switch t {
	case SessionTypeCM, SessionTypeTD, SessionTypeTP, SessionTypeTPE:
		return true
	}
	return false
}
