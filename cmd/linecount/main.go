// Command linecount reads detection frames as JSON lines from stdin, counts line crossings
// and raises burst and occupancy alerts. Configuration comes from environment and .env.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/LdDl/linecount-go/alerts"
	"github.com/LdDl/linecount-go/api"
	"github.com/LdDl/linecount-go/config"
	"github.com/LdDl/linecount-go/counter"
	"github.com/LdDl/linecount-go/crossing"
	"github.com/LdDl/linecount-go/ingest"
	"github.com/LdDl/linecount-go/logging"
	"github.com/LdDl/linecount-go/mot"
	"github.com/LdDl/linecount-go/notify"
	"github.com/LdDl/linecount-go/storage/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("info", true)
		fallback.Fatal().Err(err).Msg("Invalid configuration")
	}
	session := uuid.New()
	logger := logging.New(cfg.LogLevel, cfg.LogPretty).With().Str("session", session.String()).Logger()

	if err := run(cfg, session, logger); err != nil {
		logger.Fatal().Err(err).Msg("Stopped with error")
	}
	logger.Info().Msg("Stopped")
}

func run(cfg *config.Config, session uuid.UUID, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Durable sinks
	csvLog, err := alerts.NewCSVLog(cfg.EventLogPath)
	if err != nil {
		return err
	}
	sinks := []alerts.Log{csvLog}
	if cfg.SQLitePath != "" {
		store, err := sqlite.Open(cfg.SQLitePath, sqlite.WithLogger(logging.Component(logger, "sqlite")))
		if err != nil {
			return err
		}
		sinks = append(sinks, store)
	}

	// Notifiers
	var notifiers []counter.Notifier
	var natsService *notify.Service
	if cfg.NatsURL != "" {
		natsCfg := notify.DefaultNATSConfig(cfg.NatsURL)
		natsCfg.ConnectTimeout = cfg.NatsConnectTimeout
		natsCfg.ReconnectWait = cfg.NatsReconnectWait
		natsCfg.MaxReconnects = cfg.NatsMaxReconnects
		natsService, err = notify.NewService(natsCfg, logging.Component(logger, "nats"))
		if err != nil {
			return err
		}
		notifiers = append(notifiers, notify.NewEventNotifier(natsService, cfg.NatsSubjectPrefix))
	}
	var hub *api.Hub
	if cfg.HTTPAddr != "" {
		hub = api.NewHub(logging.Component(logger, "websocket"))
		go hub.Run(ctx)
		notifiers = append(notifiers, hub)
	}

	// Core
	engine, err := alerts.NewEngine(cfg.Alerts, alerts.NewMultiLog(sinks...),
		alerts.WithSession(session),
		alerts.WithLogger(logging.Component(logger, "alerts")),
		alerts.WithSnapshotFunc(snapshotRequester(natsService, cfg.NatsSubjectPrefix, logger)),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error().Err(err).Msg("Can't close event log")
		}
	}()
	tracker, err := mot.NewCentroidTracker(cfg.Tracker, mot.WithLogger(logging.Component(logger, "tracker")))
	if err != nil {
		return err
	}
	detector, err := crossing.NewDetector(cfg.Line)
	if err != nil {
		return err
	}
	pipeline, err := counter.New(tracker, detector, engine,
		counter.WithLogger(logging.Component(logger, "counter")),
		counter.WithNotifiers(notifiers...),
		counter.WithRecheckInterval(cfg.RecheckInterval),
	)
	if err != nil {
		return err
	}

	var server *api.Server
	if cfg.HTTPAddr != "" {
		var serverOptions []api.ServerOption
		if natsService != nil {
			serverOptions = append(serverOptions, api.WithConnectionCheck("nats", natsService.IsConnected))
		}
		server = api.NewServer(cfg.HTTPAddr, pipeline, hub, logging.Component(logger, "api"), serverOptions...)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error().Err(err).Msg("HTTP API failed")
				stop()
			}
		}()
	}
	go func() {
		if err := pipeline.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Alert re-check loop failed")
		}
	}()

	logger.Info().
		Str("orientation", cfg.Line.Orientation.String()).
		Int("position", cfg.Line.Position).
		Int("hysteresis", cfg.Line.Hysteresis).
		Str("assignment", cfg.Tracker.Assignment.String()).
		Str("event_log", cfg.EventLogPath).
		Msg("Counting started")

	readErr := consume(ctx, ingest.NewReader(os.Stdin), pipeline, logger)

	counts := pipeline.Counts()
	logger.Info().
		Int("entered", counts.Entered).
		Int("exited", counts.Exited).
		Int("occupancy", counts.Occupancy).
		Int("unmatched_exits", counts.UnmatchedExits).
		Msg("Final counts")

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP API forced to shutdown")
		}
	}
	if natsService != nil {
		if err := natsService.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("NATS forced to shutdown")
		}
	}
	return readErr
}

// consume feeds frames into the pipeline until input ends or ctx is done
func consume(ctx context.Context, reader *ingest.Reader, pipeline *counter.Counter, logger zerolog.Logger) error {
	frames := make(chan ingest.Frame)
	errs := make(chan error, 1)
	go func() {
		defer close(frames)
		for {
			frame, err := reader.Next()
			if err == io.EOF {
				return
			}
			var lineErr *ingest.LineError
			if errors.As(err, &lineErr) {
				logger.Warn().Err(err).Msg("Skipping malformed input line")
				continue
			}
			if err != nil {
				errs <- err
				return
			}
			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			return err
		case frame, ok := <-frames:
			if !ok {
				select {
				case err := <-errs:
					return err
				default:
					return nil
				}
			}
			if frame.Skipped > 0 {
				logger.Warn().Int64("input_frame", frame.Number).Int("skipped", frame.Skipped).Msg("Skipped malformed boxes")
			}
			result, err := pipeline.ProcessFrame(frame.Boxes)
			if err != nil {
				logger.Error().Err(err).Int64("frame", result.Frame).Msg("Event log write failed, counting continues")
			}
			logger.Debug().
				Int64("frame", result.Frame).
				Int64("input_frame", frame.Number).
				Int("tracks", len(result.Tracks)).
				Int("occupancy", result.Counts.Occupancy).
				Msg("Frame processed")
		}
	}
}

// snapshotRequester hands fired alerts to an external snapshot capturer over NATS.
// Without NATS the request is only logged.
func snapshotRequester(service *notify.Service, prefix string, logger zerolog.Logger) alerts.SnapshotFunc {
	subject := prefix + ".snapshots"
	return func(alert alerts.Event) {
		if service == nil {
			logger.Debug().Time("timestamp", alert.Timestamp).Str("kind", alert.Kind.String()).Msg("Snapshot requested")
			return
		}
		if err := service.Publish(subject, alert); err != nil {
			logger.Warn().Err(err).Str("subject", subject).Msg("Can't request snapshot")
		}
	}
}
