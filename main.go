package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/composer/internal/assist"
	"github.com/debemdeboas/composer/internal/auth"
	"github.com/debemdeboas/composer/internal/autosave"
	"github.com/debemdeboas/composer/internal/config"
	"github.com/debemdeboas/composer/internal/db"
	"github.com/debemdeboas/composer/internal/editor"
	"github.com/debemdeboas/composer/internal/logger"
	"github.com/debemdeboas/composer/internal/media"
	"github.com/debemdeboas/composer/internal/publish"
	"github.com/debemdeboas/composer/internal/render"
	"github.com/debemdeboas/composer/internal/repository/draft"
	"github.com/debemdeboas/composer/internal/routes"
	"github.com/debemdeboas/composer/internal/sse"
	"github.com/debemdeboas/composer/internal/util/compression"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file loaded")
	}

	if err := config.LoadConfig(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(config.AppConfig.Logging.Level)
	setLoggers(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config.AppConfig, log); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func setLoggers(l zerolog.Logger) {
	config.SetLogger(l.With().Str("component", "config").Logger())
	db.SetLogger(l.With().Str("component", "db").Logger())
	draft.SetLogger(l.With().Str("component", "store").Logger())
	render.SetLogger(l.With().Str("component", "render").Logger())
	media.SetLogger(l.With().Str("component", "media").Logger())
	assist.SetLogger(l.With().Str("component", "assist").Logger())
	publish.SetLogger(l.With().Str("component", "publish").Logger())
	editor.SetLogger(l.With().Str("component", "editor").Logger())
	autosave.SetLogger(l.With().Str("component", "autosave").Logger())
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	store, closeStore, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	deps, err := buildDeps(ctx, cfg, store)
	if err != nil {
		return err
	}

	registry := editor.NewRegistry(deps)
	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           newHandler(registry, deps.Events, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.Store.Driver).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		registry.Close()
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)

	// Pending autosaves are written before the store closes.
	registry.Close()
	return err
}

// openStore builds the draft store for the configured driver and returns a function
// releasing whatever it holds open.
func openStore(cfg config.StoreConfig) (draft.Store, func(), error) {
	opts := draft.Options{
		Dir:      cfg.Path,
		RedisURL: cfg.RedisURL,
	}
	closer := func() {}

	if cfg.Driver == "sqlite" {
		compressor, err := compression.New(cfg.Compression)
		if err != nil {
			return nil, nil, err
		}
		database := db.NewSQLite(cfg.Database)
		if err := database.InitDb(); err != nil {
			return nil, nil, fmt.Errorf("failed to open draft database: %w", err)
		}
		opts.DB = database
		opts.Compressor = compressor
		closer = func() { database.Close() }
	}

	store, err := draft.New(cfg.Driver, opts)
	if err != nil {
		closer()
		return nil, nil, err
	}
	if rs, ok := store.(*draft.RedisStore); ok {
		closer = func() { rs.Close() }
	}
	return store, closer, nil
}

func buildDeps(ctx context.Context, cfg *config.Config, store draft.Store) (editor.Deps, error) {
	engine, err := render.ParseEngine(cfg.Markdown.Renderer)
	if err != nil {
		return editor.Deps{}, err
	}

	client, err := assist.New(cfg.Assist.Provider, cfg.Assist.Endpoint, cfg.Assist.Model,
		os.Getenv(cfg.Assist.APIKeyEnv), cfg.Assist.Timeout())
	if err != nil {
		return editor.Deps{}, fmt.Errorf("assist: %w", err)
	}

	var signer *auth.Signer
	if cfg.Publish.SigningKey != "" {
		if signer, err = auth.LoadSigner(cfg.Publish.SigningKey); err != nil {
			return editor.Deps{}, fmt.Errorf("publish signing key: %w", err)
		}
	}

	uploader, err := buildUploader(ctx, cfg.Media)
	if err != nil {
		return editor.Deps{}, err
	}

	return editor.Deps{
		Store:         store,
		Assist:        client,
		Submitter:     publish.NewHTTPSubmitter(cfg.Publish.Endpoint, cfg.Publish.Timeout(), signer),
		Renderer:      render.New(engine),
		Media:         uploader,
		Events:        sse.NewSSEClients(),
		BodyInterval:  cfg.Autosave.BodyInterval(),
		TitleInterval: cfg.Autosave.TitleInterval(),
	}, nil
}

func buildUploader(ctx context.Context, cfg config.MediaConfig) (media.Uploader, error) {
	if !cfg.Enabled {
		return media.Disabled{}, nil
	}
	return media.NewS3Uploader(ctx, media.S3Options{
		Endpoint:        cfg.Endpoint,
		Bucket:          cfg.Bucket,
		PublicURL:       cfg.PublicURL,
		AccessKeyID:     cfg.AccessKeyID,
		AccessKeySecret: cfg.AccessKeySecret,
		Region:          cfg.Region,
	})
}

func newHandler(registry *editor.Registry, events *sse.SSEClients, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	editor.NewHandler(registry, events).Register(mux)

	mux.HandleFunc(routes.Healthz, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCType, "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return logger.Middleware(log)(noCache(secureHeaders(mux.ServeHTTP)))
}

func noCache(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCacheControl, "no-cache")
		w.Header().Set("Vary", "Cookie")

		h(w, r)
	}
}

func secureHeaders(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-XSS-Protection", "1; mode=block")

		h(w, r)
	}
}
