package socket

import (
	"context"
	"time"
)

// deadlineFromContext derives a read deadline that is the sooner of the
// context's own deadline and the socket's poll interval, so a canceled
// context unblocks a pending ReadFrom promptly while an un-deadlined
// context still polls periodically (mirroring the teacher's base.go, which
// re-armed a fixed 5s deadline on every read).
func deadlineFromContext(ctx context.Context) time.Time {
	poll := time.Now().Add(readPollInterval)
	if dl, ok := ctx.Deadline(); ok && dl.Before(poll) {
		return dl
	}
	return poll
}
