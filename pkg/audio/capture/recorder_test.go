package capture

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestRecorder_BackendDeathEmitsFatalError swaps the backend table for a
// binary that exits immediately, simulating a recorder process dying while
// capture is still wanted. The stream must surface a structured error, not
// close silently.
func TestRecorder_BackendDeathEmitsFatalError(t *testing.T) {
	orig := backends
	backends = []backend{{binary: "true", args: func(Config) []string { return nil }}}
	t.Cleanup(func() { backends = orig })

	r := NewRecorder(Config{})
	frames, errs, err := r.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	select {
	case err := <-errs:
		if !errors.Is(err, ErrDeviceUnavailable) {
			t.Errorf("stream error = %v, want ErrDeviceUnavailable", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error emitted after the backend exited mid-stream")
	}

	select {
	case _, open := <-frames:
		if open {
			t.Error("frame received from a dead backend")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frame channel did not close")
	}
	r.Wait()
}

func TestRecorder_StopClosesStreamWithoutError(t *testing.T) {
	orig := backends
	backends = []backend{{binary: "sleep", args: func(Config) []string { return []string{"10"} }}}
	t.Cleanup(func() { backends = orig })

	r := NewRecorder(Config{})
	frames, errs, err := r.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}

	for err := range errs {
		t.Errorf("unexpected stream error on deliberate stop: %v", err)
	}
	for range frames {
	}
	r.Wait()
}
