// This file contains the HTTP handlers driving the recommendation pipeline:
// what is playing now, what the engine suggests next, and queueing the best
// catalog match for it.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"AutoDJ-Go/pkg/auth"
	"AutoDJ-Go/pkg/credentials"
	"AutoDJ-Go/pkg/db"
	"AutoDJ-Go/pkg/engine"
	"AutoDJ-Go/pkg/match"
	"AutoDJ-Go/pkg/music"
)

// Recommender produces a follow-up title for the song playing now. Satisfied
// by engine.Runner; tests substitute a fake.
type Recommender interface {
	Recommend(ctx context.Context, sourceTitle string) (string, error)
}

// TitlePicker supplies a random known title for the party-mode endpoint.
// Satisfied by engine.Dataset.
type TitlePicker interface {
	RandomTitle() (string, error)
}

// Application bundles the dependencies used by the HTTP handlers.
type Application struct {
	Music         music.Service
	Dispatcher    music.Dispatcher
	Gateway       *auth.Gateway
	Engine        Recommender
	Dataset       TitlePicker
	Authenticator Authenticator
	Store         credentials.Store
	Sessions      *credentials.Sessions
	DB            *db.DB
	SignKey       []byte
	Log           *logrus.Entry
}

func (app *Application) logger() *logrus.Entry {
	if app.Log != nil {
		return app.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// trackSummary is the JSON shape used for tracks in responses.
type trackSummary struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
	URI    string `json:"uri"`
}

func summarize(t *music.Track) trackSummary {
	if t == nil {
		return trackSummary{}
	}
	return trackSummary{
		Name:   t.Name,
		Artist: music.ArtistLine(t),
		Album:  t.Album.Name,
		URI:    string(t.URI),
	}
}

// CurrentSong returns the user's currently playing track. When nothing is
// playing a sentinel message is returned with status 200 so the front end can
// render an idle state without treating it as an error.
func (app *Application) CurrentSong(w http.ResponseWriter, r *http.Request) {
	userID, ok := app.requireUser(w, r)
	if !ok {
		return
	}
	token, err := app.Gateway.Authorize(r.Context(), userID)
	if err != nil {
		app.respondAuthError(w, r, userID, err)
		return
	}
	np, err := app.Music.CurrentlyPlaying(r.Context(), token)
	if errors.Is(err, music.ErrNothingPlaying) || (err == nil && (np == nil || np.Track == nil)) {
		respondJSON(w, http.StatusOK, map[string]string{"message": "no song currently playing"})
		return
	}
	if err != nil {
		app.logStage(userID, "currently-playing", err)
		respondJSONError(w, http.StatusInternalServerError, "failed to fetch current song")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"track":   summarize(np.Track),
		"playing": np.Playing,
	})
}

// RecommendAndQueue runs the full pipeline: current song -> engine
// recommendation -> catalog search -> best match -> queue submission. Every
// failure after the engine has produced a title names that title in the
// response so the user still learns what the engine suggested.
func (app *Application) RecommendAndQueue(w http.ResponseWriter, r *http.Request) {
	userID, ok := app.requireUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	token, err := app.Gateway.Authorize(ctx, userID)
	if err != nil {
		app.respondAuthError(w, r, userID, err)
		return
	}
	np, err := app.Music.CurrentlyPlaying(ctx, token)
	if errors.Is(err, music.ErrNothingPlaying) || (err == nil && (np == nil || np.Track == nil)) {
		respondJSONError(w, http.StatusNotFound, "nothing is playing right now")
		return
	}
	if err != nil {
		app.logStage(userID, "currently-playing", err)
		respondJSONError(w, http.StatusInternalServerError, "failed to fetch current song")
		return
	}
	sourceName := np.Track.Name

	recommended, err := app.Engine.Recommend(ctx, sourceName)
	if err != nil {
		app.logStage(userID, "engine", err)
		app.respondEngineError(w, sourceName, err)
		return
	}

	app.queueBestMatch(w, r, userID, sourceName, recommended)
}

// QueueRandomSong picks a random title from the engine's dataset and queues
// its best catalog match. It shares the search/match/queue tail of the
// pipeline with RecommendAndQueue.
func (app *Application) QueueRandomSong(w http.ResponseWriter, r *http.Request) {
	userID, ok := app.requireUser(w, r)
	if !ok {
		return
	}
	title, err := app.Dataset.RandomTitle()
	if err != nil {
		app.logStage(userID, "dataset", err)
		respondJSONError(w, http.StatusInternalServerError, "failed to pick a random song")
		return
	}
	app.queueBestMatch(w, r, userID, "", title)
}

// queueBestMatch resolves recommended against the catalog and queues the
// winner. The access token is obtained here, after the engine has run:
// authorization is re-checked so a token that expired during a long engine
// run is refreshed before the search and queue calls.
func (app *Application) queueBestMatch(w http.ResponseWriter, r *http.Request, userID, sourceName, recommended string) {
	ctx := r.Context()

	token, err := app.Gateway.Authorize(ctx, userID)
	if err != nil {
		app.respondAuthError(w, r, userID, err)
		return
	}

	candidates, err := app.Music.SearchTrack(ctx, token, recommended)
	if err != nil {
		app.logStage(userID, "search", err)
		respondJSONError(w, http.StatusInternalServerError, fmt.Sprintf("search failed for recommended song %q", recommended))
		return
	}
	decision, err := match.Select(recommended, candidates)
	if errors.Is(err, match.ErrNoCandidates) {
		respondJSONError(w, http.StatusNotFound, fmt.Sprintf("no catalog match for recommended song %q", recommended))
		return
	}
	if err != nil {
		app.logStage(userID, "match", err)
		respondJSONError(w, http.StatusInternalServerError, "matching failed")
		return
	}

	uri := string(decision.Track.URI)
	if err := app.Dispatcher.Enqueue(ctx, token, uri); err != nil {
		app.logStage(userID, "queue", err)
		msg := fmt.Sprintf("failed to queue %q by %s: %v", decision.Track.Name, music.PrimaryArtist(&decision.Track), err)
		respondJSONError(w, http.StatusInternalServerError, msg)
		return
	}

	app.recordDecision(r, userID, sourceName, recommended, decision)

	respondJSON(w, http.StatusOK, map[string]any{
		"message":         fmt.Sprintf("queued %q by %s", decision.Track.Name, music.PrimaryArtist(&decision.Track)),
		"uri":             uri,
		"best_match_name": decision.Track.Name,
		"score":           decision.Score,
		"track":           summarize(&decision.Track),
	})
}

// recordDecision persists the decision for the history API. Failures here are
// logged but never fail the request; the song is already queued.
func (app *Application) recordDecision(r *http.Request, userID, sourceName, recommended string, decision match.Decision) {
	if app.DB == nil {
		return
	}
	_, err := app.DB.AddRecommendation(r.Context(), db.Recommendation{
		UserID:        userID,
		SourceTrack:   sourceName,
		EngineTitle:   recommended,
		MatchedName:   decision.Track.Name,
		MatchedArtist: music.PrimaryArtist(&decision.Track),
		MatchedURI:    string(decision.Track.URI),
		Score:         decision.Score,
	})
	if err != nil {
		app.logger().WithError(err).WithField("user_id", userID).Warn("failed to record recommendation")
	}
}

// HistoryJSON returns the caller's recent recommendation decisions.
func (app *Application) HistoryJSON(w http.ResponseWriter, r *http.Request) {
	userID, ok := app.requireUser(w, r)
	if !ok {
		return
	}
	if app.DB == nil {
		http.Error(w, "db not configured", http.StatusInternalServerError)
		return
	}
	recs, err := app.DB.RecentRecommendations(r.Context(), userID, 20)
	if err != nil {
		app.logStage(userID, "history", err)
		respondJSONError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if recs == nil {
		recs = []db.Recommendation{}
	}
	respondJSON(w, http.StatusOK, recs)
}

// respondAuthError maps gateway failures to responses. Both failure modes end
// the session: RefreshFailed has already destroyed the server-side state, so
// only the cookies remain to be cleared.
func (app *Application) respondAuthError(w http.ResponseWriter, r *http.Request, userID string, err error) {
	app.logStage(userID, "authorize", err)
	app.clearSessionCookies(w, r)
	if errors.Is(err, auth.ErrRefreshFailed) {
		respondJSONError(w, http.StatusUnauthorized, "session expired, please log in again")
		return
	}
	respondJSONError(w, http.StatusUnauthorized, "authentication required")
}

// respondEngineError maps orchestrator failures to responses, naming the
// source title so the message stays actionable.
func (app *Application) respondEngineError(w http.ResponseWriter, sourceName string, err error) {
	switch {
	case errors.Is(err, engine.ErrBusy):
		respondJSONError(w, http.StatusServiceUnavailable, "recommendation engine is busy, try again shortly")
	case errors.Is(err, engine.ErrTimeout):
		respondJSONError(w, http.StatusGatewayTimeout, fmt.Sprintf("recommendation for %q timed out", sourceName))
	case errors.Is(err, engine.ErrNotFound):
		respondJSONError(w, http.StatusNotFound, fmt.Sprintf("no recommendation found for %q", sourceName))
	default:
		respondJSONError(w, http.StatusInternalServerError, fmt.Sprintf("recommendation failed for %q", sourceName))
	}
}

// logStage records a pipeline failure with enough context for postmortem.
func (app *Application) logStage(userID, stage string, err error) {
	app.logger().WithFields(logrus.Fields{
		"user_id": userID,
		"stage":   stage,
	}).WithError(err).Error("pipeline stage failed")
}
