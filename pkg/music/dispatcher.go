// This file contains the final step of the recommendation pipeline: handing
// the chosen track over to the user's playback queue.
package music

import (
	"context"
	"fmt"
)

// Dispatcher submits a selected track to the playback queue of the catalog.
// It performs no retries; a rejection is surfaced to the caller verbatim so
// the user can act on it (start a playback device, upgrade the account).
type Dispatcher struct {
	Service Service
}

// Enqueue adds the track identified by uri to the user's queue using the
// access token issued for this request. The token must come from the auth
// gateway's refresh check, never from a value cached before it.
func (d Dispatcher) Enqueue(ctx context.Context, accessToken, uri string) error {
	if uri == "" {
		return fmt.Errorf("%w: empty track uri", ErrQueueRejected)
	}
	return d.Service.QueueTrack(ctx, accessToken, uri)
}
