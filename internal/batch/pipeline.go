package batch

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"

	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/audio"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/remote"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/transcript"
)

const (
	// Audio at or under this duration goes out as a single request in its
	// original container; anything longer is chunked.
	singleRequestMaxSeconds = 58

	// Chunk window width. Kept below the single-request limit so each
	// window stays inside the provider's hard duration cap.
	chunkWindowSeconds = 55

	targetSampleRate = 16000

	progressBase = 10
	progressSpan = 80
)

// Recognizer is the one remote operation the pipeline needs.
type Recognizer interface {
	Recognize(ctx context.Context, audioData []byte, encoding string, sampleRateHertz int) (*remote.Response, error)
}

type Callbacks struct {
	OnSegment  func(transcript.Segment)
	OnProgress func(percent int)
	OnComplete func()
}

func (cb Callbacks) normalized() Callbacks {
	if cb.OnSegment == nil {
		cb.OnSegment = func(transcript.Segment) {}
	}
	if cb.OnProgress == nil {
		cb.OnProgress = func(int) {}
	}
	if cb.OnComplete == nil {
		cb.OnComplete = func() {}
	}
	return cb
}

// Pipeline splits long recordings into sequential remote calls and stitches
// the per-chunk offsets back into one consistent timeline. Chunks are
// submitted strictly one at a time; a failed chunk aborts the remainder, and
// segments already emitted are never retracted.
type Pipeline struct {
	rec          Recognizer
	log          *slog.Logger
	transcribing atomic.Bool
}

func New(rec Recognizer, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		rec: rec,
		log: log.With("component", "batch_pipeline"),
	}
}

// IsTranscribing reports whether a batch job is in flight. There is no
// cancellation of a running job beyond its context.
func (p *Pipeline) IsTranscribing() bool {
	return p.transcribing.Load()
}

func (p *Pipeline) TranscribeFile(ctx context.Context, blob []byte, cb Callbacks) error {
	cb = cb.normalized()
	p.transcribing.Store(true)
	defer p.transcribing.Store(false)

	info, err := audio.Probe(blob)
	if err != nil {
		return fmt.Errorf("probe audio: %w", err)
	}
	durSec := info.Duration().Seconds()
	cb.OnProgress(progressBase)

	p.log.Info("batch job started", "duration_sec", durSec, "sample_rate", info.SampleRate)

	if durSec <= singleRequestMaxSeconds {
		if err := p.transcribeWhole(ctx, blob, info, cb); err != nil {
			return err
		}
	} else {
		if err := p.transcribeChunked(ctx, blob, cb); err != nil {
			return err
		}
	}

	cb.OnProgress(100)
	cb.OnComplete()
	return nil
}

// transcribeWhole submits the original container unchanged, no resampling.
func (p *Pipeline) transcribeWhole(ctx context.Context, blob []byte, info audio.Info, cb Callbacks) error {
	resp, err := p.rec.Recognize(ctx, blob, "LINEAR16", info.SampleRate)
	if err != nil {
		return err
	}

	counter := 0
	for _, res := range resp.Results {
		alt, ok := res.First()
		if !ok || strings.TrimSpace(alt.Transcript) == "" {
			continue
		}

		seg := transcript.Segment{
			ID:         fmt.Sprintf("file-%d", counter),
			Text:       strings.TrimSpace(alt.Transcript),
			Confidence: alt.Confidence,
			Speaker:    "Person 1",
			IsFinal:    true,
		}
		if len(alt.Words) > 0 {
			w := alt.Words[0]
			if w.SpeakerTag > 0 {
				seg.Speaker = fmt.Sprintf("Person %d", w.SpeakerTag)
			}
			if off, err := remote.ParseOffset(w.StartTime); err == nil {
				seg.AudioTimeMs = off.Milliseconds()
			}
		}
		counter++
		cb.OnSegment(seg)
	}
	return nil
}

func (p *Pipeline) transcribeChunked(ctx context.Context, blob []byte, cb Callbacks) error {
	info, samples, err := audio.DecodeWAV(blob)
	if err != nil {
		return fmt.Errorf("decode audio: %w", err)
	}
	durSec := info.Duration().Seconds()
	chunkCount := int(math.Ceil(durSec / chunkWindowSeconds))

	p.log.Info("chunking long recording", "chunks", chunkCount, "duration_sec", durSec)

	counter := 0
	for i := 0; i < chunkCount; i++ {
		cb.OnProgress(progressBase + i*progressSpan/chunkCount)

		startSec := float64(i * chunkWindowSeconds)
		endSec := math.Min(startSec+chunkWindowSeconds, durSec)

		startIdx := int(startSec * float64(info.SampleRate))
		endIdx := int(endSec * float64(info.SampleRate))
		if endIdx > len(samples) {
			endIdx = len(samples)
		}

		window := audio.ResampleInt16(samples[startIdx:endIdx], info.SampleRate, targetSampleRate)
		payload := audio.EncodeWAV(window, targetSampleRate)

		resp, err := p.rec.Recognize(ctx, payload, "LINEAR16", targetSampleRate)
		if err != nil {
			return fmt.Errorf("chunk %d/%d: %w", i+1, chunkCount, err)
		}

		startMs := int64(startSec * 1000)
		for _, res := range resp.Results {
			alt, ok := res.First()
			if !ok || strings.TrimSpace(alt.Transcript) == "" {
				continue
			}

			seg := transcript.Segment{
				ID:          fmt.Sprintf("chunk-%d-%d", i, counter),
				Text:        strings.TrimSpace(alt.Transcript),
				AudioTimeMs: startMs,
				Confidence:  alt.Confidence,
				Speaker:     transcript.DefaultSpeaker,
				IsFinal:     true,
			}
			if len(alt.Words) > 0 {
				w := alt.Words[0]
				if w.SpeakerTag > 0 {
					seg.Speaker = fmt.Sprintf("Person%d", w.SpeakerTag)
				}
				if off, err := remote.ParseOffset(w.StartTime); err == nil {
					seg.AudioTimeMs = startMs + off.Milliseconds()
				}
			}
			counter++
			cb.OnSegment(seg)
		}
	}
	return nil
}
