package bunx

import "github.com/google/uuid"

// NewUUIDv7 generates a time-ordered UUIDv7 string for primary keys that are
// not database sequences (sessions).
//
// Panics only if the entropy source fails, in which case no id could be issued anyway.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}
