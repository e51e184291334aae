package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/scorevox/scorevox/internal/app"
	"github.com/scorevox/scorevox/internal/parse"
	"github.com/scorevox/scorevox/internal/roster"
	"github.com/scorevox/scorevox/internal/session"
	"github.com/scorevox/scorevox/internal/transcribe"
)

func newApp() (*app.App, *roster.Memory) {
	store := roster.NewMemory([]roster.Entry{
		{ID: "20250101", Name: "王小明"},
		{ID: "20250102", Name: "李华"},
	})
	return app.New(store, nil, nil), store
}

func result(text string, entries ...parse.Entry) session.Result {
	return session.Result{
		Text:    transcribe.Result{Raw: text, Text: text},
		Entries: entries,
	}
}

func scoreOf(t *testing.T, store *roster.Memory, seq int) (float64, bool) {
	t.Helper()
	e, ok := store.FindBySequence(seq)
	if !ok {
		t.Fatalf("sequence %d missing from store", seq)
	}
	score, present, err := store.Score(e)
	if err != nil {
		t.Fatal(err)
	}
	return score, present
}

func TestHandleResult_WritesAndSavesOnce(t *testing.T) {
	t.Parallel()
	a, store := newApp()

	a.HandleResult(context.Background(), result("1号95分2号88分",
		parse.Entry{Kind: parse.KindSequence, Identifier: "1", Score: 95},
		parse.Entry{Kind: parse.KindSequence, Identifier: "2", Score: 88},
	))

	if score, ok := scoreOf(t, store, 1); !ok || score != 95 {
		t.Errorf("row 1 score = %v ok=%v, want 95", score, ok)
	}
	if score, ok := scoreOf(t, store, 2); !ok || score != 88 {
		t.Errorf("row 2 score = %v ok=%v, want 88", score, ok)
	}
	if store.Saves() != 1 {
		t.Errorf("saves = %d, want one save per batch", store.Saves())
	}
}

func TestHandleResult_NameEntry(t *testing.T) {
	t.Parallel()
	a, store := newApp()

	a.HandleResult(context.Background(), result("李华90分",
		parse.Entry{Kind: parse.KindName, Identifier: "李华", Score: 90},
	))

	if score, ok := scoreOf(t, store, 2); !ok || score != 90 {
		t.Errorf("李华 score = %v ok=%v, want 90", score, ok)
	}
}

func TestHandleResult_NoMatchWritesNothing(t *testing.T) {
	t.Parallel()
	a, store := newApp()

	a.HandleResult(context.Background(), result("9号70分",
		parse.Entry{Kind: parse.KindSequence, Identifier: "9", Score: 70},
	))

	if store.Saves() != 0 {
		t.Errorf("saves = %d, want 0 when nothing was written", store.Saves())
	}
}

func TestHandleResult_EmptyEntries(t *testing.T) {
	t.Parallel()
	a, store := newApp()

	a.HandleResult(context.Background(), result("没听清的一句话"))

	if store.Saves() != 0 {
		t.Errorf("saves = %d, want 0", store.Saves())
	}
}

func TestUndo_RestoresPreviousScore(t *testing.T) {
	t.Parallel()
	a, store := newApp()
	ctx := context.Background()

	a.HandleResult(ctx, result("1号80分",
		parse.Entry{Kind: parse.KindSequence, Identifier: "1", Score: 80},
	))
	a.HandleResult(ctx, result("1号85分",
		parse.Entry{Kind: parse.KindSequence, Identifier: "1", Score: 85},
	))

	a.Undo(ctx)
	if score, ok := scoreOf(t, store, 1); !ok || score != 80 {
		t.Errorf("score after undo = %v ok=%v, want the prior 80", score, ok)
	}
}

func TestUndo_ClearsWhenCellWasBlank(t *testing.T) {
	t.Parallel()
	a, store := newApp()
	ctx := context.Background()

	a.HandleResult(ctx, result("1号80分",
		parse.Entry{Kind: parse.KindSequence, Identifier: "1", Score: 80},
	))
	a.Undo(ctx)

	if _, ok := scoreOf(t, store, 1); ok {
		t.Error("score still present after undoing the first write")
	}

	// Only one level of history: a second undo changes nothing.
	a.Undo(ctx)
	if _, ok := scoreOf(t, store, 1); ok {
		t.Error("second undo resurrected a score")
	}
}

func TestHandleResult_SpokenUndoCommand(t *testing.T) {
	t.Parallel()
	a, store := newApp()
	ctx := context.Background()

	a.HandleResult(ctx, result("1号80分",
		parse.Entry{Kind: parse.KindSequence, Identifier: "1", Score: 80},
	))
	a.HandleResult(ctx, result("撤销"))

	if _, ok := scoreOf(t, store, 1); ok {
		t.Error("spoken 撤销 did not revert the write")
	}
}

// scoreErrStore wraps a Store and fails every read of an existing score.
type scoreErrStore struct {
	roster.Store
	err error
}

func (s *scoreErrStore) Score(*roster.Entry) (float64, bool, error) {
	return 0, false, s.err
}

func TestUndo_RefusedWhenPreviousScoreUnreadable(t *testing.T) {
	t.Parallel()
	store := roster.NewMemory([]roster.Entry{{ID: "20250101", Name: "王小明"}})
	e, ok := store.FindBySequence(1)
	if !ok {
		t.Fatal("seed row missing")
	}
	if err := store.SetScore(e, 70); err != nil {
		t.Fatal(err)
	}
	a := app.New(&scoreErrStore{Store: store, err: errors.New("cell unreadable")}, nil, nil)

	ctx := context.Background()
	a.HandleResult(ctx, result("1号95分",
		parse.Entry{Kind: parse.KindSequence, Identifier: "1", Score: 95},
	))
	if score, present := scoreOf(t, store, 1); !present || score != 95 {
		t.Fatalf("score after write = %v present=%v, want 95", score, present)
	}

	// The previous value was unknown at write time, so undo must not
	// guess: the written score stays put.
	a.Undo(ctx)
	if score, present := scoreOf(t, store, 1); !present || score != 95 {
		t.Errorf("score after undo = %v present=%v, want 95 untouched", score, present)
	}
}
