package core

// SessionID identifies one live connection. A browser tab that reconnects
// gets a new SessionID.
type SessionID string
