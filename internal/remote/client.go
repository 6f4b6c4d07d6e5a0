package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/config"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/shared"
)

const requestTimeout = 60 * time.Second

// Client maps audio payloads onto the pay-per-call provider's request shape
// and parses its responses. It holds no session state and never retries.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        log.With("component", "remote_client"),
	}
}

// Recognize submits one bounded-duration audio payload and returns the parsed
// response. Non-2xx statuses surface as *shared.RemoteServiceError.
func (c *Client) Recognize(ctx context.Context, audio []byte, encoding string, sampleRateHertz int) (*Response, error) {
	reqBody := recognizeRequest{
		Config: recognitionConfig{
			Encoding:                   encoding,
			SampleRateHertz:            sampleRateHertz,
			LanguageCode:               c.cfg.LanguageCode,
			EnableAutomaticPunctuation: c.cfg.EnableAutomaticPunctuation,
			MaxAlternatives:            c.cfg.MaxAlternatives,
			Model:                      "default",
			UseEnhanced:                true,
		},
		Audio: audioContent{Content: base64.StdEncoding.EncodeToString(audio)},
	}
	if c.cfg.EnableSpeakerDiarization {
		reqBody.Config.DiarizationConfig = &diarizationConfig{
			EnableSpeakerDiarization: true,
			MinSpeakerCount:          c.cfg.MinSpeakerCount,
			MaxSpeakerCount:          c.cfg.MaxSpeakerCount,
		}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.cfg.APIEndpoint
	if c.cfg.APIKey != "" {
		url += "?key=" + c.cfg.APIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug("submitting recognition request",
		"encoding", encoding,
		"sample_rate", sampleRateHertz,
		"audio_bytes", len(audio))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, serviceError(resp.StatusCode, body)
	}

	var parsed Response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &parsed, nil
}

func serviceError(statusCode int, body []byte) error {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error.Message != "" {
		return &shared.RemoteServiceError{
			StatusCode: statusCode,
			Status:     eb.Error.Status,
			Message:    eb.Error.Message,
		}
	}
	return &shared.RemoteServiceError{
		StatusCode: statusCode,
		Message:    string(body),
	}
}
