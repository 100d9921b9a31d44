package scheduler

import "github.com/pkg/errors"

// ErrNotEnqueued is returned when a caller references an (username, filename)
// pair that has no corresponding Upload in the registry.
var ErrNotEnqueued = errors.New("scheduler: upload not enqueued")

// ErrMisconfiguration is returned by Configure when the supplied Options are
// invalid. The scheduler retains its last-good state when this occurs.
var ErrMisconfiguration = errors.New("scheduler: invalid group configuration")

// ErrAlreadyAwaited is a caller error: AwaitStart was called a second time
// for the same upload.
var ErrAlreadyAwaited = errors.New("scheduler: AwaitStart called twice for the same upload")
