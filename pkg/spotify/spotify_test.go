package spotify

import (
	"context"
	"errors"
	"net/http"
	"testing"

	libspotify "github.com/zmb3/spotify"

	"AutoDJ-Go/pkg/music"
)

type fakeAPI struct {
	lastToken string
	lastQuery string
	lastID    libspotify.ID

	searchResult *libspotify.SearchResult
	nowPlaying   *libspotify.CurrentlyPlaying
	err          error
}

func (f *fakeAPI) Search(query string, t libspotify.SearchType) (*libspotify.SearchResult, error) {
	f.lastQuery = query
	return f.searchResult, f.err
}

func (f *fakeAPI) PlayerCurrentlyPlaying() (*libspotify.CurrentlyPlaying, error) {
	return f.nowPlaying, f.err
}

func (f *fakeAPI) QueueSong(trackID libspotify.ID) error {
	f.lastID = trackID
	return f.err
}

func newTestClient(f *fakeAPI) *Client {
	c := NewClient(1000)
	c.newAPI = func(accessToken string) api {
		f.lastToken = accessToken
		return f
	}
	return c
}

func TestSearchTrackReturnsCatalogOrder(t *testing.T) {
	f := &fakeAPI{searchResult: &libspotify.SearchResult{Tracks: &libspotify.FullTrackPage{Tracks: []libspotify.FullTrack{
		{SimpleTrack: libspotify.SimpleTrack{Name: "First"}},
		{SimpleTrack: libspotify.SimpleTrack{Name: "Second"}},
	}}}}
	sc := newTestClient(f)

	got, err := sc.SearchTrack(context.Background(), "tok", "physical")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "First" || got[1].Name != "Second" {
		t.Errorf("unexpected result %+v", got)
	}
	if f.lastToken != "tok" || f.lastQuery != "physical" {
		t.Errorf("called with token %q query %q", f.lastToken, f.lastQuery)
	}
}

func TestSearchTrackEmptyResult(t *testing.T) {
	f := &fakeAPI{searchResult: &libspotify.SearchResult{Tracks: &libspotify.FullTrackPage{}}}
	got, err := newTestClient(f).SearchTrack(context.Background(), "tok", "nothing")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil slice, got %+v", got)
	}
}

func TestSearchTrackUpstreamError(t *testing.T) {
	f := &fakeAPI{err: errors.New("boom")}
	_, err := newTestClient(f).SearchTrack(context.Background(), "tok", "q")
	if !errors.Is(err, music.ErrUpstream) {
		t.Fatalf("expected ErrUpstream got %v", err)
	}
}

func TestCurrentlyPlaying(t *testing.T) {
	track := &libspotify.FullTrack{SimpleTrack: libspotify.SimpleTrack{Name: "Levitating"}}
	f := &fakeAPI{nowPlaying: &libspotify.CurrentlyPlaying{Item: track, Playing: true}}
	np, err := newTestClient(f).CurrentlyPlaying(context.Background(), "tok")
	if err != nil {
		t.Fatal(err)
	}
	if np.Track.Name != "Levitating" || !np.Playing {
		t.Errorf("unexpected state %+v", np)
	}
}

func TestCurrentlyPlayingNothing(t *testing.T) {
	// A 204 from the API surfaces as an empty struct from the wrapped
	// client.
	f := &fakeAPI{nowPlaying: &libspotify.CurrentlyPlaying{}}
	_, err := newTestClient(f).CurrentlyPlaying(context.Background(), "tok")
	if !errors.Is(err, music.ErrNothingPlaying) {
		t.Fatalf("expected ErrNothingPlaying got %v", err)
	}
}

func TestQueueTrack(t *testing.T) {
	f := &fakeAPI{}
	err := newTestClient(f).QueueTrack(context.Background(), "tok", "spotify:track:abc123")
	if err != nil {
		t.Fatal(err)
	}
	if f.lastID != libspotify.ID("abc123") {
		t.Errorf("queued wrong id %q", f.lastID)
	}
}

func TestQueueTrackRejected(t *testing.T) {
	f := &fakeAPI{err: libspotify.Error{Status: http.StatusNotFound, Message: "Player command failed: No active device found"}}
	err := newTestClient(f).QueueTrack(context.Background(), "tok", "spotify:track:abc123")
	if !errors.Is(err, music.ErrQueueRejected) {
		t.Fatalf("expected ErrQueueRejected got %v", err)
	}
}

func TestQueueTrackMalformedURI(t *testing.T) {
	err := newTestClient(&fakeAPI{}).QueueTrack(context.Background(), "tok", "http://not-a-uri")
	if !errors.Is(err, music.ErrQueueRejected) {
		t.Fatalf("expected ErrQueueRejected got %v", err)
	}
}

func TestTrackIDFromURI(t *testing.T) {
	id, err := TrackIDFromURI("spotify:track:6nO1t")
	if err != nil || id != libspotify.ID("6nO1t") {
		t.Fatalf("got %q %v", id, err)
	}
	if _, err := TrackIDFromURI("spotify:track:"); err == nil {
		t.Error("expected error for empty id")
	}
}
