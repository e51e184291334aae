package transcribe_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scorevox/scorevox/internal/segment"
	"github.com/scorevox/scorevox/internal/transcribe"
	sttmock "github.com/scorevox/scorevox/pkg/provider/stt/mock"
)

func utterance() *segment.Utterance {
	return &segment.Utterance{
		Samples:    make([]float32, 16000),
		SampleRate: 16000,
		Duration:   time.Second,
	}
}

func TestAdapter_Accepted(t *testing.T) {
	t.Parallel()
	provider := sttmock.New(sttmock.Result{Segments: []string{"3号", "95分"}})
	a := transcribe.New(provider, transcribe.Config{})

	res, outcome := a.Transcribe(context.Background(), utterance())
	if outcome != transcribe.OutcomeAccepted {
		t.Fatalf("outcome = %v, want accepted", outcome)
	}
	if res.Raw != "3号95分" {
		t.Errorf("raw = %q, want segments concatenated", res.Raw)
	}
	if res.Text != "3号95分" {
		t.Errorf("text = %q, want %q", res.Text, "3号95分")
	}
	if res.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestAdapter_EmptyAndFailed(t *testing.T) {
	t.Parallel()
	provider := sttmock.New(
		sttmock.Result{Segments: nil},
		sttmock.Result{Segments: []string{"  "}},
		sttmock.Result{Err: errors.New("decode failed")},
	)
	a := transcribe.New(provider, transcribe.Config{})

	for i, want := range []transcribe.Outcome{
		transcribe.OutcomeEmpty,
		transcribe.OutcomeEmpty,
		transcribe.OutcomeFailed,
	} {
		res, outcome := a.Transcribe(context.Background(), utterance())
		if outcome != want {
			t.Errorf("call %d: outcome = %v, want %v", i, outcome, want)
		}
		if res != nil {
			t.Errorf("call %d: result = %+v, want nil", i, res)
		}
	}
	if provider.Calls() != 3 {
		t.Errorf("provider calls = %d, want 3", provider.Calls())
	}
}

func TestAdapter_DuplicateSuppressed(t *testing.T) {
	t.Parallel()
	provider := sttmock.New(
		sttmock.Result{Segments: []string{"3号95分"}},
		sttmock.Result{Segments: []string{"3号95分"}},
		sttmock.Result{Segments: []string{"4号88分"}},
	)
	a := transcribe.New(provider, transcribe.Config{})

	if _, outcome := a.Transcribe(context.Background(), utterance()); outcome != transcribe.OutcomeAccepted {
		t.Fatalf("first outcome = %v, want accepted", outcome)
	}
	if _, outcome := a.Transcribe(context.Background(), utterance()); outcome != transcribe.OutcomeSuppressed {
		t.Errorf("identical repeat outcome = %v, want suppressed", outcome)
	}
	if _, outcome := a.Transcribe(context.Background(), utterance()); outcome != transcribe.OutcomeAccepted {
		t.Errorf("different text outcome = %v, want accepted", outcome)
	}
}

func TestAdapter_DuplicateWindowExpires(t *testing.T) {
	t.Parallel()
	provider := sttmock.New(
		sttmock.Result{Segments: []string{"3号95分"}},
		sttmock.Result{Segments: []string{"3号95分"}},
	)
	a := transcribe.New(provider, transcribe.Config{DuplicateWindow: time.Millisecond})

	if _, outcome := a.Transcribe(context.Background(), utterance()); outcome != transcribe.OutcomeAccepted {
		t.Fatalf("first outcome = %v, want accepted", outcome)
	}
	time.Sleep(10 * time.Millisecond)
	if _, outcome := a.Transcribe(context.Background(), utterance()); outcome != transcribe.OutcomeAccepted {
		t.Errorf("outcome after window = %v, want accepted", outcome)
	}
}
