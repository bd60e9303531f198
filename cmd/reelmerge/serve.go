package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"reelmerge/internal/adapters/ffmpeg"
	"reelmerge/internal/adapters/localstorage"
	"reelmerge/internal/adapters/process"
	"reelmerge/internal/adapters/ytdlp"
	"reelmerge/internal/api"
	"reelmerge/internal/config"
	"reelmerge/internal/core/domain"
	"reelmerge/internal/retention"
	"reelmerge/internal/scheduler"
	"reelmerge/internal/service"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP merge service and the retention sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, ctx)
		},
	}
}

func serve(parent context.Context, cfg config.Config, cc *commandContext) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := cc.logger("daemon")

	storage, err := localstorage.NewLocalStorage(cfg.Storage.ProcessingDir, cfg.Storage.OutputDir, cc.logger("storage"))
	if err != nil {
		return err
	}
	storage.Expiry = cfg.Retention.Expiry
	if n, err := storage.PurgeWorkspaces(); err != nil {
		logger.Warn().Err(err).Msg("failed to purge stale workspaces")
	} else if n > 0 {
		logger.Info().Int("removed", n).Msg("purged stale workspaces")
	}

	orch := newOrchestrator(cfg, storage, cc)
	sweeper := retention.New(cfg.Storage.OutputDir, cfg.Retention.Expiry, cfg.Retention.SweepInterval, cc.logger("retention"))

	srv := &http.Server{
		Addr: cfg.Server.ListenAddr,
		Handler: api.New(api.Config{
			DefaultMode:   domain.MergeMode(cfg.Pipeline.DefaultMode),
			MaxClips:      cfg.Pipeline.MaxClips,
			PublicBaseURL: cfg.Server.PublicBaseURL,
			RateLimit:     cfg.Server.RateLimit,
			RateWindow:    cfg.Server.RateWindow,
			Version:       version,

			TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
		}, orch, storage, cc.logger("api")).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newOrchestrator wires the external tool adapters to the shared pool.
func newOrchestrator(cfg config.Config, storage *localstorage.LocalStorage, cc *commandContext) *service.Orchestrator {
	runner := process.NewRunner(cc.logger("process"))
	pool := scheduler.NewPool(cfg.Pipeline.Workers)

	downloader := ytdlp.NewYtDlpDownloader(runner, ytdlp.Options{
		BinaryPath:  cfg.Binaries.YtDlp,
		Retries:     cfg.Download.Retries,
		NoiseParams: cfg.Download.NoiseParams,
	}, cc.logger("ytdlp"))
	prober := ffmpeg.NewProber(runner, cfg.Binaries.FFprobe, cfg.Timeouts.Probe, cc.logger("ffprobe"))
	normalizer := ffmpeg.NewNormalizer(runner, cfg.Binaries.FFmpeg, cfg.Canvas.FrameRate, cfg.Timeouts.Normalize)
	merger := ffmpeg.NewMerger(runner, prober, ffmpeg.MergerOptions{
		Binary:          cfg.Binaries.FFmpeg,
		Timeout:         cfg.Timeouts.Combine,
		Fade:            cfg.Pipeline.CrossfadeSeconds,
		FontFile:        cfg.Overlay.FontFile,
		OverlayFallback: cfg.Overlay.FailurePolicy == config.OverlayFallbackCopy,
	}, cc.logger("merger"))

	return service.NewOrchestrator(downloader, normalizer, merger, storage, pool, service.Options{
		Width:           cfg.Canvas.Width,
		Height:          cfg.Canvas.Height,
		MaxClips:        cfg.Pipeline.MaxClips,
		DownloadTimeout: cfg.Timeouts.Download,
	}, cc.logger("orchestrator"))
}
