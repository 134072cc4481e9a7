// Command web initializes the AutoDJ-Go application and starts the HTTP
// server. Configuration comes from a TOML file (CONFIG_PATH, default
// config.toml when present) layered with environment variables for secrets.
// The server serves the JSON API, the static front end and the Prometheus
// metrics endpoint.
package main

import (
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"AutoDJ-Go/pkg/auth"
	"AutoDJ-Go/pkg/config"
	"AutoDJ-Go/pkg/credentials"
	"AutoDJ-Go/pkg/db"
	"AutoDJ-Go/pkg/engine"
	"AutoDJ-Go/pkg/handlers"
	"AutoDJ-Go/pkg/metrics"
	"AutoDJ-Go/pkg/music"
	"AutoDJ-Go/pkg/spotify"
)

// main configures application dependencies and starts the HTTP server.
func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		if _, err := os.Stat("config.toml"); err == nil {
			cfgPath = "config.toml"
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		log.SetLevel(lvl)
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	// The signing key protects the session and state cookies. Without it
	// any client could forge a session reference.
	signingKey := os.Getenv("SIGNING_KEY")
	if signingKey == "" {
		log.Fatal("SIGNING_KEY must be set")
	}

	reg := metrics.New()

	// Credential and session state is memory-only: one process, one
	// lifetime. Users re-authenticate after a restart.
	store := credentials.NewMemoryStore()
	sessions := credentials.NewSessions()

	spotifyAuth := spotify.NewAuth(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.RedirectURL)
	gateway := auth.NewGateway(store, sessions, auth.OAuthExchanger{Config: spotifyAuth.OAuthConfig()})
	gateway.OnRefresh = reg.ObserveRefresh

	catalog := spotify.NewClient(cfg.Spotify.RequestsPerSecond)

	runner := engine.NewRunner(cfg.Engine.Command, cfg.Engine.Args, cfg.Engine.Dataset, cfg.Engine.MaxConcurrent, log.WithField("component", "engine"))
	if cfg.Engine.TimeoutSeconds > 0 {
		runner.Timeout = time.Duration(cfg.Engine.TimeoutSeconds) * time.Second
	}
	if len(cfg.Engine.NotFoundMarkers) > 0 {
		runner.NotFoundMarkers = cfg.Engine.NotFoundMarkers
	}
	if cfg.Engine.ErrorPrefix != "" {
		runner.ErrorPrefix = cfg.Engine.ErrorPrefix
	}
	if len(cfg.Engine.StripExtensions) > 0 {
		runner.StripExtensions = cfg.Engine.StripExtensions
	}
	runner.OnRun = reg.ObserveEngineRun

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		log.WithError(err).Fatal("db init")
	}
	defer database.Close()

	app := &handlers.Application{
		Music:         catalog,
		Dispatcher:    music.Dispatcher{Service: catalog},
		Gateway:       gateway,
		Engine:        runner,
		Dataset:       engine.Dataset{Path: cfg.Engine.Dataset, StripExtensions: runner.StripExtensions},
		Authenticator: spotifyAuth,
		Store:         store,
		Sessions:      sessions,
		DB:            database,
		SignKey:       []byte(signingKey),
		Log:           log.WithField("component", "http"),
	}

	log.WithField("address", cfg.Server.Address).Info("starting server")
	if err := http.ListenAndServe(cfg.Server.Address, newHandler(app, reg)); err != nil {
		log.WithError(err).Fatal("http server error")
	}
}

// newHandler registers the application routes and wraps them with the
// security-header middleware. Static assets are served from the ui directory
// and all API endpoints are implemented in handlers.
func newHandler(app *handlers.Application, reg *metrics.Registry) http.Handler {
	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, handlers.Instrument(pattern, reg, app.Log, h))
	}
	route("/login", app.Login)
	route("/callback", app.OAuthCallback)
	route("/auth-status", app.AuthStatus)
	route("/logout", app.Logout)
	route("/refresh-token", app.RefreshToken)
	route("/current-song", app.CurrentSong)
	route("/recommend-and-queue", app.RecommendAndQueue)
	route("/queue-random-song", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		app.QueueRandomSong(w, r)
	})
	route("/api/history", app.HistoryJSON)
	mux.Handle("/metrics", reg.Handler())
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("./ui/static"))))
	mux.Handle("/", http.FileServer(http.Dir("./ui")))
	return handlers.SecurityHeaders(mux)
}
