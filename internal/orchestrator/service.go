package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/batch"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/config"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/shared"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/transcript"
)

const waitPollInterval = 100 * time.Millisecond

// Service is the transcription orchestrator surface: one live session plus
// the batch file pipeline, sharing one remote provider configuration.
type Service struct {
	cfg      config.Config
	live     *Controller
	pipeline *batch.Pipeline
	log      *slog.Logger
}

func NewService(cfg config.Config, opts Options) *Service {
	opts = opts.normalized()
	normalized := cfg.Normalized()
	return &Service{
		cfg:      normalized,
		live:     NewController(opts),
		pipeline: batch.New(opts.NewRemote(normalized), opts.Log),
		log:      opts.Log.With("component", "orchestrator"),
	}
}

// Config returns the service's base session config.
func (s *Service) Config() config.Config {
	return s.cfg
}

func (s *Service) Start(cfg *config.Config, source Source, onSegment func(transcript.Segment)) error {
	return s.live.Start(cfg, source, onSegment)
}

func (s *Service) Stop() {
	s.live.Stop()
}

func (s *Service) TranscribeFile(ctx context.Context, blob []byte, cb batch.Callbacks) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if s.cfg.APIKey == "" {
		return shared.NewConfigurationError("file transcription requires a remote API key")
	}
	return s.pipeline.TranscribeFile(ctx, blob, cb)
}

func (s *Service) IsLiveTranscribing() bool {
	return s.live.IsTranscribing()
}

func (s *Service) IsBatchTranscribing() bool {
	return s.pipeline.IsTranscribing()
}

// WaitForCompletion polls the transcribing flags until they clear or the
// timeout elapses. It never stops the session itself.
func (s *Service) WaitForCompletion(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !s.live.IsTranscribing() && !s.pipeline.IsTranscribing() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(waitPollInterval)
	}
}
