// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package deliberate

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned by operations referencing an unknown
// session id.
var ErrSessionNotFound = errors.New("session not found")

// ValidationError reports a malformed collaboration request. It is raised
// synchronously by StartSession; no session is created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}
