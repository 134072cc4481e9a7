// Package spotify wraps the official Spotify client library providing the
// catalog operations used by the web application. All calls are made with a
// user's bearer token issued by the auth gateway; the wrapped client is
// handed a static token and never refreshes on its own, so the gateway
// remains the only component that talks to the token endpoint.
//
// The wrapped library does not accept a context, so cancellation is checked
// explicitly before each call and outbound requests are paced through a rate
// limiter shared by all users of this process.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/zmb3/spotify"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"AutoDJ-Go/pkg/music"
)

// api defines the subset of the spotify.Client used by this package. It
// allows the concrete client to be replaced in tests.
type api interface {
	Search(query string, t spotify.SearchType) (*spotify.SearchResult, error)
	PlayerCurrentlyPlaying() (*spotify.CurrentlyPlaying, error)
	QueueSong(trackID spotify.ID) error
}

// Client implements music.Service against the Spotify Web API.
type Client struct {
	limiter *rate.Limiter

	// newAPI builds a per-token client. Tests substitute a fake.
	newAPI func(accessToken string) api
}

// Compile-time interface check ensuring Client satisfies the generic
// music.Service interface used by the rest of the application.
var _ music.Service = (*Client)(nil)

// NewClient returns a Client pacing outbound calls at requestsPerSecond.
func NewClient(requestsPerSecond float64) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 10
	}
	return &Client{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(requestsPerSecond)+1),
		newAPI: func(accessToken string) api {
			// A token without expiry is static: the underlying oauth2
			// transport has nothing to refresh with.
			c := spotify.Authenticator{}.NewClient(&oauth2.Token{AccessToken: accessToken})
			return &c
		},
	}
}

func (sc *Client) wait(ctx context.Context) error {
	if sc.limiter == nil {
		return ctx.Err()
	}
	return sc.limiter.Wait(ctx)
}

// SearchTrack implements music.Service by querying the Spotify API for the
// supplied track name and returning matching items in catalog order.
func (sc *Client) SearchTrack(ctx context.Context, accessToken, query string) ([]music.Track, error) {
	if err := sc.wait(ctx); err != nil {
		return nil, err
	}
	results, err := sc.newAPI(accessToken).Search(query, spotify.SearchTypeTrack)
	if err != nil {
		return nil, upstream("search", err)
	}
	if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		return nil, nil
	}
	tracks := make([]music.Track, len(results.Tracks.Tracks))
	copy(tracks, results.Tracks.Tracks)
	return tracks, nil
}

// CurrentlyPlaying implements music.Service. The API responds 204 with no
// body when there is no playback session; the wrapped client surfaces that
// as an empty result which is mapped to ErrNothingPlaying here.
func (sc *Client) CurrentlyPlaying(ctx context.Context, accessToken string) (*music.NowPlaying, error) {
	if err := sc.wait(ctx); err != nil {
		return nil, err
	}
	cp, err := sc.newAPI(accessToken).PlayerCurrentlyPlaying()
	if err != nil {
		return nil, upstream("currently-playing", err)
	}
	if cp == nil || cp.Item == nil {
		return nil, music.ErrNothingPlaying
	}
	return &music.NowPlaying{Track: cp.Item, Playing: cp.Playing}, nil
}

// QueueTrack implements music.Service by submitting the track to the user's
// active playback queue. A 403 or 404 from the API means the account cannot
// be queued to right now (no active device, or a free tier) and is mapped to
// ErrQueueRejected with the API's own message preserved.
func (sc *Client) QueueTrack(ctx context.Context, accessToken, uri string) error {
	id, err := TrackIDFromURI(uri)
	if err != nil {
		return fmt.Errorf("%w: %v", music.ErrQueueRejected, err)
	}
	if err := sc.wait(ctx); err != nil {
		return err
	}
	if err := sc.newAPI(accessToken).QueueSong(id); err != nil {
		var apiErr spotify.Error
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusForbidden || apiErr.Status == http.StatusNotFound) {
			return fmt.Errorf("%w: %s", music.ErrQueueRejected, apiErr.Message)
		}
		return upstream("queue", err)
	}
	return nil
}

// TrackIDFromURI extracts the track identifier from a spotify:track:<id> URI.
func TrackIDFromURI(uri string) (spotify.ID, error) {
	const prefix = "spotify:track:"
	if !strings.HasPrefix(uri, prefix) || len(uri) == len(prefix) {
		return "", fmt.Errorf("malformed track uri %q", uri)
	}
	return spotify.ID(uri[len(prefix):]), nil
}

func upstream(stage string, err error) error {
	return fmt.Errorf("%w: %s: %v", music.ErrUpstream, stage, err)
}
