package remote

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type diarizationConfig struct {
	EnableSpeakerDiarization bool `json:"enableSpeakerDiarization"`
	MinSpeakerCount          int  `json:"minSpeakerCount"`
	MaxSpeakerCount          int  `json:"maxSpeakerCount"`
}

type recognitionConfig struct {
	Encoding                   string             `json:"encoding"`
	SampleRateHertz            int                `json:"sampleRateHertz"`
	LanguageCode               string             `json:"languageCode"`
	EnableAutomaticPunctuation bool               `json:"enableAutomaticPunctuation"`
	MaxAlternatives            int                `json:"maxAlternatives,omitempty"`
	Model                      string             `json:"model"`
	UseEnhanced                bool               `json:"useEnhanced"`
	DiarizationConfig          *diarizationConfig `json:"diarizationConfig,omitempty"`
}

type audioContent struct {
	Content string `json:"content"`
}

type recognizeRequest struct {
	Config recognitionConfig `json:"config"`
	Audio  audioContent      `json:"audio"`
}

// WordInfo carries per-word speaker and timing tags when diarization ran.
type WordInfo struct {
	Word       string `json:"word,omitempty"`
	SpeakerTag int    `json:"speakerTag,omitempty"`
	StartTime  string `json:"startTime,omitempty"`
}

type Alternative struct {
	Transcript string     `json:"transcript"`
	Confidence float64    `json:"confidence"`
	Words      []WordInfo `json:"words,omitempty"`
}

type Result struct {
	Alternatives []Alternative `json:"alternatives"`
}

type Response struct {
	Results []Result `json:"results"`
}

type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// First returns a result's highest-ranked alternative, if any. Lower-ranked
// alternatives are never consumed.
func (r Result) First() (Alternative, bool) {
	if len(r.Alternatives) == 0 {
		return Alternative{}, false
	}
	return r.Alternatives[0], true
}

// ParseOffset parses a provider duration offset like "1.500s".
func ParseOffset(s string) (time.Duration, error) {
	trimmed := strings.TrimSuffix(s, "s")
	if trimmed == s || trimmed == "" {
		return 0, fmt.Errorf("malformed offset %q", s)
	}
	secs, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed offset %q: %w", s, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
