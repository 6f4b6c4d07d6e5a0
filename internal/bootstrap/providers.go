package bootstrap

import (
	"log/slog"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/config"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/gateway"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/health"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/orchestrator"
	"go.uber.org/fx"
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

// ProvideSessionConfig maps the process environment onto the per-session
// recognition settings used as the default for every session.
func ProvideSessionConfig(cfg *Config) config.Config {
	return config.Config{
		LanguageCode:               cfg.LanguageCode,
		EnableSpeakerDiarization:   cfg.EnableSpeakerDiarization,
		MinSpeakerCount:            cfg.MinSpeakerCount,
		MaxSpeakerCount:            cfg.MaxSpeakerCount,
		EnableAutomaticPunctuation: cfg.EnableAutomaticPunctuation,
		MaxAlternatives:            cfg.MaxAlternatives,
		SegmentTimeoutMs:           cfg.SegmentTimeoutMs,
		SegmentMaxLengthChars:      cfg.SegmentMaxLengthChars,
		SilenceWindowMs:            cfg.SilenceWindowMs,
		APIKey:                     cfg.RemoteAPIKey,
		APIEndpoint:                cfg.RemoteEndpoint,
	}.Normalized()
}

func ProvideOrchestratorOptions(cfg *Config, logger *slog.Logger) orchestrator.Options {
	return orchestrator.Options{
		LocalAddress:  cfg.LocalSTTAddress,
		FlushInterval: time.Duration(cfg.FlushIntervalSec) * time.Second,
		Log:           logger,
	}
}

func ProvideService(sessionCfg config.Config, opts orchestrator.Options) *orchestrator.Service {
	return orchestrator.NewService(sessionCfg, opts)
}

func ProvideHealthHandler(cfg *Config, sessionCfg config.Config, svc *orchestrator.Service) *health.Handler {
	return health.NewHandler(sessionCfg, cfg.LocalSTTAddress, svc, cfg.Version)
}

type HandlerParams struct {
	fx.In

	LiveServer           *gateway.LiveServer
	TranscriptionHandler *gateway.TranscriptionHandler
	HealthHandler        *health.Handler
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	api := e.Group("/api/v1")

	api.GET("/live", params.LiveServer.HandleConnection)
	params.TranscriptionHandler.RegisterRoutes(api.Group("/transcriptions"))

	params.HealthHandler.RegisterRoutes(e)
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideSessionConfig,
		ProvideOrchestratorOptions,
		ProvideService,
		ProvideHealthHandler,
	),
	fx.Invoke(RegisterRoutes),
)
