package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/marmos91/photoloader/internal/logger"
	"github.com/marmos91/photoloader/pkg/config"
	"github.com/marmos91/photoloader/pkg/loader"
	"github.com/marmos91/photoloader/pkg/metrics"
	"github.com/marmos91/photoloader/pkg/photo"
	"github.com/marmos91/photoloader/pkg/source"
)

func newStartCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the photoloader daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runDaemon(cfg)
		},
	}
}

func runDaemon(cfg *config.Config) error {
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	if cfg.PhotoDir == "" {
		return fmt.Errorf("photo_dir must be configured")
	}
	src, err := source.NewDirSource(cfg.PhotoDir)
	if err != nil {
		return err
	}

	mgr, err := loader.New(loader.Options{
		Source:          src,
		DefaultProvider: noopProvider{},
		Fingerprint:     targetFingerprint,
		Config:          cfg.LoaderConfig(),
		HolderMetrics:   metrics.NewCacheMetrics("holder"),
		DecodedMetrics:  metrics.NewCacheMetrics("decoded"),
		Metrics:         metrics.NewLoaderMetrics(),
	})
	if err != nil {
		return err
	}
	defer mgr.Close()

	instanceID := uuid.NewString()
	logger.Info("photoloaderd starting",
		"instance_id", instanceID,
		"photo_dir", cfg.PhotoDir,
		"addr", cfg.HTTP.Addr)

	// Warm the cache from the photo directory in the background.
	mgr.PreloadInBackground()

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok", "instance_id": instanceID})
	})
	router.Get("/statz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, mgr.Stats())
	})
	router.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errC := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
	}()

	select {
	case err := <-errC:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("photoloaderd shutting down")
	mgr.Pause()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// targetFingerprint combines the requested key with the target's identity.
// Targets are compared by pointer here; hosts with richer target types
// supply their own fingerprint.
func targetFingerprint(id photo.Identifier, target photo.DisplayTarget) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id.Key()))
	_, _ = fmt.Fprintf(h, "/%p", target)
	return h.Sum64()
}

// noopProvider is the daemon's placeholder policy: the daemon has no UI, so
// defaults are dropped.
type noopProvider struct{}

func (noopProvider) ApplyDefault(photo.Identifier, photo.DisplayTarget, int) {}
