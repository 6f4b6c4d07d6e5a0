package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/batch"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/orchestrator"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/shared"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/transcript"
)

const maxUploadBytes = 256 * 1024 * 1024

// TranscriptionHandler serves whole-file transcription jobs. The plain POST
// collects every segment and answers once; the stream variant pushes
// segments and progress over SSE as the job runs.
type TranscriptionHandler struct {
	svc    *orchestrator.Service
	logger *slog.Logger
}

func NewTranscriptionHandler(svc *orchestrator.Service, logger *slog.Logger) *TranscriptionHandler {
	return &TranscriptionHandler{
		svc:    svc,
		logger: logger.With("handler", "transcription"),
	}
}

func (h *TranscriptionHandler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.Transcribe)
	g.POST("/stream", h.TranscribeStream)
}

func (h *TranscriptionHandler) Transcribe(c echo.Context) error {
	blob, err := h.readUpload(c)
	if err != nil {
		return err
	}

	var segments []transcript.Segment
	err = h.svc.TranscribeFile(c.Request().Context(), blob, batch.Callbacks{
		OnSegment: func(seg transcript.Segment) {
			segments = append(segments, seg)
		},
	})
	if err != nil {
		return h.mapError(err)
	}

	return c.JSON(http.StatusOK, transcriptionResponse{
		Segments: segments,
		Count:    len(segments),
	})
}

func (h *TranscriptionHandler) TranscribeStream(c echo.Context) error {
	blob, err := h.readUpload(c)
	if err != nil {
		return err
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	err = h.svc.TranscribeFile(c.Request().Context(), blob, batch.Callbacks{
		OnSegment: func(seg transcript.Segment) {
			h.writeEvent(res, "segment", seg)
		},
		OnProgress: func(percent int) {
			h.writeEvent(res, "progress", progressPayload{Percent: percent})
		},
		OnComplete: func() {
			h.writeEvent(res, "complete", struct{}{})
		},
	})
	if err != nil {
		// Headers are already out, so the failure travels as an event.
		h.writeEvent(res, "error", map[string]string{"message": err.Error()})
	}
	return nil
}

func (h *TranscriptionHandler) writeEvent(res *echo.Response, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal event failed", "event", event, "error", err)
		return
	}

	if _, err := res.Write([]byte("event: " + event + "\ndata: ")); err != nil {
		return
	}
	if _, err := res.Write(data); err != nil {
		return
	}
	if _, err := res.Write([]byte("\n\n")); err != nil {
		return
	}
	res.Flush()
}

func (h *TranscriptionHandler) readUpload(c echo.Context) ([]byte, error) {
	file, err := c.FormFile("audio")
	if err != nil {
		return nil, shared.BadRequest("missing_audio", "multipart field 'audio' is required")
	}
	if file.Size > maxUploadBytes {
		return nil, shared.BadRequest("audio_too_large", "uploaded audio exceeds the size limit")
	}

	src, err := file.Open()
	if err != nil {
		return nil, shared.InternalError("read_upload_failed", "failed to open uploaded audio")
	}
	defer src.Close()

	blob, err := io.ReadAll(src)
	if err != nil {
		return nil, shared.InternalError("read_upload_failed", "failed to read uploaded audio")
	}
	return blob, nil
}

func (h *TranscriptionHandler) mapError(err error) error {
	var cfgErr *shared.ConfigurationError
	if errors.As(err, &cfgErr) {
		return shared.BadRequest("configuration_error", cfgErr.Reason)
	}

	var svcErr *shared.RemoteServiceError
	if errors.As(err, &svcErr) {
		h.logger.Error("remote recognition failed", "status", svcErr.StatusCode, "message", svcErr.Message)
		return shared.BadGateway("remote_service_error", svcErr.Message)
	}

	h.logger.Error("transcription failed", "error", err)
	return shared.BadRequest("invalid_audio", err.Error())
}
