package recognition

import (
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/config"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/shared"
)

// Select picks the backend for a session. Diarization forces the remote
// recognizer unconditionally; otherwise the free local engine wins when
// present, then a credentialed remote, then nothing.
func Select(cfg config.Config, localAvailable bool) (Kind, error) {
	if cfg.EnableSpeakerDiarization {
		if cfg.APIKey == "" {
			return "", shared.NewConfigurationError("speaker diarization requires an API key")
		}
		return KindRemote, nil
	}
	if localAvailable {
		return KindLocal, nil
	}
	if cfg.APIKey != "" {
		return KindRemote, nil
	}
	return "", shared.ErrNoBackendAvailable
}
