package gateway

import (
	"log/slog"

	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/config"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/orchestrator"
	"go.uber.org/fx"
)

func ProvideLiveServer(cfg config.Config, opts orchestrator.Options, logger *slog.Logger) *LiveServer {
	return NewLiveServer(cfg, opts, logger)
}

func ProvideTranscriptionHandler(svc *orchestrator.Service, logger *slog.Logger) *TranscriptionHandler {
	return NewTranscriptionHandler(svc, logger)
}

var Module = fx.Options(
	fx.Provide(
		ProvideLiveServer,
		ProvideTranscriptionHandler,
	),
)
