package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/scorevox/scorevox/internal/observe"
	"github.com/scorevox/scorevox/internal/parse"
	"github.com/scorevox/scorevox/internal/segment"
	"github.com/scorevox/scorevox/internal/session"
	"github.com/scorevox/scorevox/pkg/audio"
	"github.com/scorevox/scorevox/pkg/audio/capture"
	capmock "github.com/scorevox/scorevox/pkg/audio/capture/mock"
	sttmock "github.com/scorevox/scorevox/pkg/provider/stt/mock"
)

const (
	testRate      = 16000
	testFrameSize = 1024
)

var frameDur = time.Duration(testFrameSize) * time.Second / testRate

// fastSegmenter ends an utterance after three silent frames and keeps
// anything at least two frames long.
func fastSegmenter() segment.Config {
	return segment.Config{
		SilenceDuration:   3 * frameDur,
		MinSpeechDuration: 2 * frameDur,
		EnergyThreshold:   0.01,
		SmoothingWindow:   1,
	}
}

// spokenUtterance scripts one utterance: speech frames followed by enough
// silence to trip the segmenter.
func spokenUtterance(speechFrames int) []audio.Frame {
	frames := capmock.SpeechFrames(speechFrames, testFrameSize, testRate, 0.5)
	silence := capmock.SpeechFrames(3, testFrameSize, testRate, 0)
	for i := range silence {
		silence[i].Timestamp += time.Duration(speechFrames) * frameDur
	}
	return append(frames, silence...)
}

func collect(t *testing.T, results <-chan session.Result) session.Result {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a recognition result")
		return session.Result{}
	}
}

func TestSession_EndToEnd(t *testing.T) {
	t.Parallel()
	device := &capmock.Device{Frames: spokenUtterance(5)}
	provider := sttmock.New(sttmock.Result{Segments: []string{"3号95分"}})

	sess, err := session.New(session.Config{
		Device:    device,
		Provider:  provider,
		Segmenter: fastSegmenter(),
	})
	if err != nil {
		t.Fatal(err)
	}

	results := make(chan session.Result, 4)
	if err := sess.Start(context.Background(), func(r session.Result) { results <- r }); err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	r := collect(t, results)
	if r.Text.Text != "3号95分" {
		t.Errorf("text = %q, want %q", r.Text.Text, "3号95分")
	}
	if len(r.Entries) != 1 {
		t.Fatalf("entries = %+v, want one", r.Entries)
	}
	want := parse.Entry{Kind: parse.KindSequence, Identifier: "3", Score: 95}
	if r.Entries[0] != want {
		t.Errorf("entry = %+v, want %+v", r.Entries[0], want)
	}

	if got := provider.Buffers(); len(got) != 1 {
		t.Errorf("provider received %d buffers, want 1", len(got))
	}
}

func TestSession_CallbackFiresWithoutEntries(t *testing.T) {
	t.Parallel()
	device := &capmock.Device{Frames: spokenUtterance(5)}
	provider := sttmock.New(sttmock.Result{Segments: []string{"谢谢大家"}})

	sess, err := session.New(session.Config{
		Device:    device,
		Provider:  provider,
		Segmenter: fastSegmenter(),
	})
	if err != nil {
		t.Fatal(err)
	}

	results := make(chan session.Result, 4)
	if err := sess.Start(context.Background(), func(r session.Result) { results <- r }); err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	r := collect(t, results)
	if len(r.Entries) != 0 {
		t.Errorf("entries = %+v, want none", r.Entries)
	}
	if r.Text.Text != "谢谢大家" {
		t.Errorf("text = %q, want the transcription passed through", r.Text.Text)
	}
}

func TestSession_FlushOnStreamEnd(t *testing.T) {
	t.Parallel()
	device := &capmock.Device{Frames: capmock.SpeechFrames(4, testFrameSize, testRate, 0.5)}
	provider := sttmock.New(sttmock.Result{Segments: []string{"5号88分"}})

	sess, err := session.New(session.Config{
		Device:    device,
		Provider:  provider,
		Segmenter: fastSegmenter(),
	})
	if err != nil {
		t.Fatal(err)
	}

	results := make(chan session.Result, 4)
	if err := sess.Start(context.Background(), func(r session.Result) { results <- r }); err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	// End the stream while speech is mid-capture; the trailing utterance
	// must still come through.
	device.CloseStream()

	r := collect(t, results)
	if len(r.Entries) != 1 || r.Entries[0].Identifier != "5" {
		t.Errorf("entries = %+v, want 5号88分", r.Entries)
	}
}

func TestSession_StartFailsWithoutDevice(t *testing.T) {
	t.Parallel()
	device := &capmock.Device{StartErr: capture.ErrDeviceUnavailable}
	provider := sttmock.New()

	sess, err := session.New(session.Config{Device: device, Provider: provider})
	if err != nil {
		t.Fatal(err)
	}
	err = sess.Start(context.Background(), func(session.Result) {})
	if !errors.Is(err, capture.ErrDeviceUnavailable) {
		t.Errorf("err = %v, want ErrDeviceUnavailable", err)
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	t.Parallel()
	device := &capmock.Device{}
	provider := sttmock.New()

	sess, err := session.New(session.Config{Device: device, Provider: provider})
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Start(context.Background(), func(session.Result) {}); err != nil {
		t.Fatal(err)
	}
	if err := sess.Close(); err != nil {
		t.Fatal(err)
	}
	if err := sess.Close(); err != nil {
		t.Fatal(err)
	}
}

// blockingProvider stalls every transcription until released, the way a
// native model call keeps running mid-inference regardless of context.
// Each call returns a distinct sequence entry so duplicate suppression
// stays out of the way.
type blockingProvider struct {
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func newBlockingProvider() *blockingProvider {
	return &blockingProvider{release: make(chan struct{})}
}

func (p *blockingProvider) Transcribe(context.Context, []float32, int) ([]string, error) {
	p.mu.Lock()
	p.calls++
	n := p.calls
	p.mu.Unlock()
	<-p.release
	return []string{fmt.Sprintf("%d号9%d分", n, n)}, nil
}

func (p *blockingProvider) Close() error { return nil }

func (p *blockingProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSession_CloseDoesNotWaitForTranscription(t *testing.T) {
	t.Parallel()
	device := &capmock.Device{Frames: spokenUtterance(5)}
	provider := newBlockingProvider()

	sess, err := session.New(session.Config{
		Device:    device,
		Provider:  provider,
		Segmenter: fastSegmenter(),
	})
	if err != nil {
		t.Fatal(err)
	}

	results := make(chan session.Result, 4)
	if err := sess.Start(context.Background(), func(r session.Result) { results <- r }); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "the transcription to start", func() bool { return provider.Calls() == 1 })

	closed := make(chan struct{})
	go func() {
		_ = sess.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on the in-flight transcription")
	}

	// Let the stalled call finish; its result must be discarded.
	close(provider.release)
	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not wind down after release")
	}
	select {
	case r := <-results:
		t.Errorf("callback fired after Close: %+v", r)
	default:
	}
}

func TestSession_FatalCaptureErrorStopsPipeline(t *testing.T) {
	t.Parallel()
	device := &capmock.Device{}
	provider := sttmock.New()

	sess, err := session.New(session.Config{Device: device, Provider: provider})
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Start(context.Background(), func(session.Result) {}); err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	device.Fail(fmt.Errorf("backend died: %w", capture.ErrDeviceUnavailable))

	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline kept running after a fatal capture error")
	}
	if err := sess.Err(); !errors.Is(err, capture.ErrDeviceUnavailable) {
		t.Errorf("Err() = %v, want ErrDeviceUnavailable", err)
	}
}

func TestSession_QueueDropsOldestUnderBackpressure(t *testing.T) {
	t.Parallel()
	device := &capmock.Device{Frames: spokenUtterance(5)}
	provider := newBlockingProvider()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}

	sess, err := session.New(session.Config{
		Device:    device,
		Provider:  provider,
		Segmenter: fastSegmenter(),
		QueueSize: 2,
		Metrics:   metrics,
	})
	if err != nil {
		t.Fatal(err)
	}

	results := make(chan session.Result, 8)
	if err := sess.Start(context.Background(), func(r session.Result) { results <- r }); err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	// The first utterance stalls the consumer; four more then hit a queue
	// of two, so the two oldest queued ones must be evicted while capture
	// keeps flowing.
	waitFor(t, "the transcription to start", func() bool { return provider.Calls() == 1 })
	for i := 0; i < 4; i++ {
		for _, f := range spokenUtterance(5) {
			device.Push(f)
		}
	}
	waitFor(t, "two queue drops", func() bool { return queueDrops(t, reader) == 2 })

	device.CloseStream()
	close(provider.release)
	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not drain after release")
	}

	got := 0
	for {
		select {
		case <-results:
			got++
			continue
		default:
		}
		break
	}
	if got != 3 {
		t.Errorf("callbacks = %d, want 3 (in-flight plus the two newest queued)", got)
	}
	if calls := provider.Calls(); calls != 3 {
		t.Errorf("transcriptions = %d, want 3", calls)
	}
	if drops := queueDrops(t, reader); drops != 2 {
		t.Errorf("queue drops = %d, want 2", drops)
	}
}

// queueDrops reads the drop counter off the manual reader.
func queueDrops(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "scorevox.queue.drops" {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("scorevox.queue.drops is %T, want Sum[int64]", met.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}
