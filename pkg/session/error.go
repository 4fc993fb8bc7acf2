package session

// NotFoundError is returned when a session id does not name an active
// session (unknown, or already closed for operations that require an
// active one).
type NotFoundError struct {
	SessionID string
}

func (e NotFoundError) Error() string {
	if e.SessionID == "" {
		return "session not found"
	}

	return "session not found: " + e.SessionID
}
