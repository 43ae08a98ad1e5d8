package store

import (
	"context"
	"errors"
	"time"
)

// Store errors surfaced to callers. The attendance service maps these onto its
// result codes; everything else is treated as a transient infrastructure failure.
var (
	ErrSessionNotFound = errors.New("store: session not found")
	ErrSessionExists   = errors.New("store: session already exists")
)

// Metadata carries the immutable descriptive fields supplied when a teacher
// opens an attendance session.
type Metadata struct {
	SubjectName     string `json:"subject_name"`
	SubjectType     string `json:"subject_type"`
	GroupName       string `json:"group_name"`
	Date            string `json:"date"`
	LessonStartTime string `json:"lesson_start_time"`
}

// Session is the full mutable state of one attendance session.
type Session struct {
	ID string `json:"session_id"`
	Metadata
	CurrentToken string    `json:"current_token"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store is the single source of truth for session state. All mutation happens
// through it; implementations must keep every operation atomic under
// concurrent callers (the rotation scheduler and scan requests race on the
// same keys).
type Store interface {
	// Create persists a new session with its first token and active flag set.
	// Returns ErrSessionExists when the id is already taken; given the id
	// entropy a collision is a bug, not a normal error.
	Create(ctx context.Context, id string, meta Metadata, firstToken string) error

	// GetSession loads the whole session record.
	GetSession(ctx context.Context, id string) (*Session, error)

	// CurrentToken reads the session's token in one atomic step, so a scan
	// racing a rotation observes either the old or the new value, never a
	// partial write.
	CurrentToken(ctx context.Context, id string) (string, error)

	// IsActive reports whether the session still accepts scans and rotations.
	IsActive(ctx context.Context, id string) (bool, error)

	// SetToken replaces the session's current token.
	SetToken(ctx context.Context, id, token string) error

	// Close marks the session inactive. The returned flag reports whether the
	// session was still active, letting callers surface "already closed".
	Close(ctx context.Context, id string) (wasActive bool, err error)

	// AddMember records a checked-in student, reporting whether this was the
	// first time the student appeared. Repeat additions are no-ops.
	AddMember(ctx context.Context, id, studentID string) (wasNew bool, err error)

	// ListMembers returns checked-in student ids in check-in order.
	ListMembers(ctx context.Context, id string) ([]string, error)

	// Exists reports whether the session key is present.
	Exists(ctx context.Context, id string) (bool, error)

	// SessionIDs enumerates every known session id, active or not.
	SessionIDs(ctx context.Context) ([]string, error)

	// PublishToken announces a freshly rotated token on the session's
	// broadcast channel. Fire-and-forget: with no subscribers the message is
	// dropped, which display clients compensate for by reading the current
	// token on connect.
	PublishToken(ctx context.Context, id, token string) error

	// SubscribeTokens opens a broadcast subscription for the session's token
	// announcements. Subscribers never receive history, only future publishes.
	SubscribeTokens(ctx context.Context, id string) (*TokenSubscription, error)
}
