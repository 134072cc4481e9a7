// Package music defines generic interfaces and data structures for
// interacting with streaming catalogs. Implementations can wrap Spotify or
// any other service. By depending on this package the rest of the
// application can remain agnostic about the underlying platform.
//
// Track is currently an alias of spotify.FullTrack so handlers and the
// matcher operate on familiar fields (Name, Album, Artists etc). Other
// services should populate these fields where possible.
package music

import (
	"context"
	"errors"
	"strings"

	libspotify "github.com/zmb3/spotify"
)

// Track represents a track returned by a streaming catalog. For compatibility
// with the matcher and handlers it mirrors spotify.FullTrack.
type Track = libspotify.FullTrack

// NowPlaying describes the track a user is currently listening to.
type NowPlaying struct {
	Track   *Track
	Playing bool
}

// ErrNothingPlaying is returned by CurrentlyPlaying when the user has no
// active playback session.
var ErrNothingPlaying = errors.New("nothing playing")

// ErrQueueRejected indicates the catalog refused a queue submission, for
// example because no playback device is active or the account tier does not
// allow remote control.
var ErrQueueRejected = errors.New("queue submission rejected")

// ErrUpstream wraps any unexpected non-success response from the catalog not
// covered by a more specific error.
var ErrUpstream = errors.New("upstream api error")

// Service exposes the catalog operations used by the application. Every call
// is performed on behalf of a user, so each method takes the caller's access
// token alongside a context for cancellation.
type Service interface {
	// SearchTrack returns tracks matching the query string in catalog
	// order. An error is returned when the catalog fails; an empty result
	// set is a nil slice without error.
	SearchTrack(ctx context.Context, accessToken, query string) ([]Track, error)

	// CurrentlyPlaying reports the user's playback state. ErrNothingPlaying
	// is returned when no playback session exists.
	CurrentlyPlaying(ctx context.Context, accessToken string) (*NowPlaying, error)

	// QueueTrack adds the track identified by uri to the user's playback
	// queue. ErrQueueRejected is returned when the catalog refuses the
	// submission.
	QueueTrack(ctx context.Context, accessToken, uri string) error
}

// PrimaryArtist returns the name of the first credited artist, or an empty
// string for tracks without artist metadata.
func PrimaryArtist(t *Track) string {
	if t == nil || len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].Name
}

// ArtistLine joins all credited artists into a single display string.
func ArtistLine(t *Track) string {
	if t == nil {
		return ""
	}
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}
