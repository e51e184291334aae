package openai

import (
	"testing"

	"github.com/scorevox/scorevox/pkg/provider/stt"
)

func TestNew_MissingAPIKey(t *testing.T) {
	if _, err := New("", "", stt.Options{}); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestNew_DefaultModel(t *testing.T) {
	p, err := New("sk-test", "", stt.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.model != DefaultModel {
		t.Errorf("model = %q, want default %q", p.model, DefaultModel)
	}
}

func TestNew_DefaultLanguage(t *testing.T) {
	p, err := New("sk-test", "whisper-1", stt.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.opts.Language != "zh" {
		t.Errorf("language = %q, want zh", p.opts.Language)
	}
}
