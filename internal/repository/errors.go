package repository

import "errors"

// ErrAttemptNotActive is returned when a write targets an attempt that is no
// longer in_progress.
var ErrAttemptNotActive = errors.New("attempt is not in progress")
