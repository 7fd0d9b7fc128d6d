package pool

import (
	internalpool "github.com/pgvanniekerk/ezworker/internal/pool"
)

// ErrInvalidArgument is returned by New when a Config value violates one of
// the construction-time constraints documented on Config.
var ErrInvalidArgument = internalpool.ErrInvalidArgument

// ErrClosed is returned by Submit and TrySubmit once the pool has been
// asked to stop. It is also what a Submit blocked on a full bounded queue
// sees if Stop is called while it waits: dispose and explicit closure are
// not distinguished by this implementation, both present as ErrClosed.
var ErrClosed = internalpool.ErrClosed

// ErrCancelled is returned by Submit when the context passed to it is
// cancelled before the item can be enqueued.
var ErrCancelled = internalpool.ErrCancelled

// ErrInterrupted is an alias of ErrClosed kept for callers that want to
// name the "woken by shutdown while waiting" case explicitly; errors.Is
// treats it identically to ErrClosed.
var ErrInterrupted = internalpool.ErrClosed
