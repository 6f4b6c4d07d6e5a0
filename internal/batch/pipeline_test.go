package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/audio"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/remote"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/shared"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/transcript"
)

type recordedCall struct {
	audio      []byte
	encoding   string
	sampleRate int
}

type fakeRecognizer struct {
	mu        sync.Mutex
	calls     []recordedCall
	responses []*remote.Response
	failAt    int // 1-based call index to fail at, 0 = never
}

func (f *fakeRecognizer) Recognize(ctx context.Context, audioData []byte, encoding string, sampleRateHertz int) (*remote.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{audio: audioData, encoding: encoding, sampleRate: sampleRateHertz})

	n := len(f.calls)
	if f.failAt != 0 && n == f.failAt {
		return nil, &shared.RemoteServiceError{StatusCode: 429, Message: "quota"}
	}
	if n <= len(f.responses) {
		return f.responses[n-1], nil
	}
	return &remote.Response{}, nil
}

func respWith(transcriptText string, confidence float64, words ...remote.WordInfo) *remote.Response {
	return &remote.Response{Results: []remote.Result{{
		Alternatives: []remote.Alternative{{Transcript: transcriptText, Confidence: confidence, Words: words}},
	}}}
}

func silence(seconds float64, rate int) []byte {
	return audio.EncodeWAV(make([]int16, int(seconds*float64(rate))), rate)
}

type batchSink struct {
	mu       sync.Mutex
	segments []transcript.Segment
	progress []int
	complete int
}

func (s *batchSink) callbacks() Callbacks {
	return Callbacks{
		OnSegment: func(seg transcript.Segment) {
			s.mu.Lock()
			s.segments = append(s.segments, seg)
			s.mu.Unlock()
		},
		OnProgress: func(p int) {
			s.mu.Lock()
			s.progress = append(s.progress, p)
			s.mu.Unlock()
		},
		OnComplete: func() {
			s.mu.Lock()
			s.complete++
			s.mu.Unlock()
		},
	}
}

func TestTranscribeFile_ShortPathSingleRequest(t *testing.T) {
	rec := &fakeRecognizer{responses: []*remote.Response{
		respWith("short recording", 0.9, remote.WordInfo{Word: "short", SpeakerTag: 2, StartTime: "1.500s"}),
	}}
	p := New(rec, nil)
	sink := &batchSink{}

	blob := silence(30, 44100)
	if err := p.TranscribeFile(context.Background(), blob, sink.callbacks()); err != nil {
		t.Fatalf("TranscribeFile failed: %v", err)
	}

	if len(rec.calls) != 1 {
		t.Fatalf("expected a single request, got %d", len(rec.calls))
	}
	call := rec.calls[0]
	if call.sampleRate != 44100 {
		t.Errorf("short path must keep the original rate, got %d", call.sampleRate)
	}
	if len(call.audio) != len(blob) {
		t.Error("short path must submit the original container unchanged")
	}

	if len(sink.segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(sink.segments))
	}
	seg := sink.segments[0]
	if seg.ID != "file-0" || !seg.IsFinal {
		t.Errorf("unexpected segment identity: %+v", seg)
	}
	if seg.Speaker != "Person 2" {
		t.Errorf("expected speaker from first word tag, got %q", seg.Speaker)
	}
	if seg.AudioTimeMs != 1500 {
		t.Errorf("expected audioTimeMs from first word offset, got %d", seg.AudioTimeMs)
	}
	if sink.complete != 1 {
		t.Errorf("onComplete should fire exactly once, got %d", sink.complete)
	}
}

func TestTranscribeFile_ShortPathDefaults(t *testing.T) {
	rec := &fakeRecognizer{responses: []*remote.Response{respWith("no words info", 0.8)}}
	p := New(rec, nil)
	sink := &batchSink{}

	if err := p.TranscribeFile(context.Background(), silence(10, 16000), sink.callbacks()); err != nil {
		t.Fatalf("TranscribeFile failed: %v", err)
	}

	seg := sink.segments[0]
	if seg.Speaker != "Person 1" {
		t.Errorf("expected short-path default speaker, got %q", seg.Speaker)
	}
	if seg.AudioTimeMs != 0 {
		t.Errorf("expected audioTimeMs 0 without word info, got %d", seg.AudioTimeMs)
	}
}

func TestTranscribeFile_NinetySecondsMakesTwoWindows(t *testing.T) {
	rec := &fakeRecognizer{responses: []*remote.Response{
		respWith("first window", 0.9, remote.WordInfo{StartTime: "2.000s", SpeakerTag: 1}),
		respWith("second window", 0.9, remote.WordInfo{StartTime: "1.000s", SpeakerTag: 1}),
	}}
	p := New(rec, nil)
	sink := &batchSink{}

	if err := p.TranscribeFile(context.Background(), silence(90, 48000), sink.callbacks()); err != nil {
		t.Fatalf("TranscribeFile failed: %v", err)
	}

	if len(rec.calls) != 2 {
		t.Fatalf("expected exactly 2 windows, got %d", len(rec.calls))
	}
	for i, call := range rec.calls {
		if call.sampleRate != targetSampleRate {
			t.Errorf("chunk %d: expected %d Hz, got %d", i, targetSampleRate, call.sampleRate)
		}
		info, err := audio.Probe(call.audio)
		if err != nil {
			t.Fatalf("chunk %d payload is not a valid container: %v", i, err)
		}
		if info.SampleRate != targetSampleRate {
			t.Errorf("chunk %d container rate: %d", i, info.SampleRate)
		}
	}

	// Window widths: [0,55) and [55,90).
	d0, _ := audio.ProbeDuration(rec.calls[0].audio)
	d1, _ := audio.ProbeDuration(rec.calls[1].audio)
	if got := d0.Seconds(); got < 54.9 || got > 55.1 {
		t.Errorf("first window should be ~55s, got %.2fs", got)
	}
	if got := d1.Seconds(); got < 34.9 || got > 35.1 {
		t.Errorf("second window should be ~35s, got %.2fs", got)
	}

	if len(sink.segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(sink.segments))
	}
	if sink.segments[0].AudioTimeMs != 2000 {
		t.Errorf("first segment: expected 2000, got %d", sink.segments[0].AudioTimeMs)
	}
	if sink.segments[1].AudioTimeMs < 55000 {
		t.Errorf("second window segments must carry audioTimeMs >= 55000, got %d", sink.segments[1].AudioTimeMs)
	}

	// Monotonic emission order across chunks.
	last := int64(-1)
	for _, seg := range sink.segments {
		if seg.AudioTimeMs < last {
			t.Errorf("audioTimeMs decreased: %d after %d", seg.AudioTimeMs, last)
		}
		last = seg.AudioTimeMs
	}

	if sink.segments[0].ID != "chunk-0-0" || sink.segments[1].ID != "chunk-1-1" {
		t.Errorf("unexpected ids: %s, %s", sink.segments[0].ID, sink.segments[1].ID)
	}
	if sink.segments[1].Speaker != "Person1" {
		t.Errorf("unexpected chunked speaker format: %q", sink.segments[1].Speaker)
	}
}

func TestTranscribeFile_ProgressSequence(t *testing.T) {
	rec := &fakeRecognizer{}
	p := New(rec, nil)
	sink := &batchSink{}

	if err := p.TranscribeFile(context.Background(), silence(90, 16000), sink.callbacks()); err != nil {
		t.Fatalf("TranscribeFile failed: %v", err)
	}

	want := []int{10, 10, 50, 100}
	if fmt.Sprint(sink.progress) != fmt.Sprint(want) {
		t.Errorf("expected progress %v, got %v", want, sink.progress)
	}
}

func TestTranscribeFile_ChunkFailureAborts(t *testing.T) {
	rec := &fakeRecognizer{
		responses: []*remote.Response{respWith("kept", 0.9)},
		failAt:    2,
	}
	p := New(rec, nil)
	sink := &batchSink{}

	err := p.TranscribeFile(context.Background(), silence(120, 16000), sink.callbacks())
	if err == nil {
		t.Fatal("expected error from failing chunk")
	}
	var svcErr *shared.RemoteServiceError
	if !errors.As(err, &svcErr) {
		t.Errorf("expected RemoteServiceError, got %v", err)
	}

	// 120s = 3 windows; the failure on the second call must stop the third.
	if len(rec.calls) != 2 {
		t.Errorf("expected abort after failing chunk, got %d calls", len(rec.calls))
	}
	if sink.complete != 0 {
		t.Error("onComplete must not fire for an aborted job")
	}
	// Already-emitted segments are not retracted.
	if len(sink.segments) != 1 || sink.segments[0].Text != "kept" {
		t.Errorf("segments from successful chunks should stand: %+v", sink.segments)
	}
}

func TestTranscribeFile_RejectsInvalidContainer(t *testing.T) {
	p := New(&fakeRecognizer{}, nil)
	if err := p.TranscribeFile(context.Background(), []byte("not audio"), Callbacks{}); err == nil {
		t.Fatal("expected probe error")
	}
}

func TestTranscribeFile_EmptyResultsSkipped(t *testing.T) {
	rec := &fakeRecognizer{responses: []*remote.Response{
		{Results: []remote.Result{{}, {Alternatives: []remote.Alternative{{Transcript: "   "}}}}},
	}}
	p := New(rec, nil)
	sink := &batchSink{}

	if err := p.TranscribeFile(context.Background(), silence(5, 16000), sink.callbacks()); err != nil {
		t.Fatalf("TranscribeFile failed: %v", err)
	}
	if len(sink.segments) != 0 {
		t.Errorf("blank results should not produce segments, got %d", len(sink.segments))
	}
	if sink.complete != 1 {
		t.Error("job without segments still completes")
	}
}
