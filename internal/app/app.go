// Package app glues the recognition session to the grade sheet: parsed
// entries are resolved to roster rows, scores are written and saved, and a
// confirmation is spoken for each write. It also handles the spoken undo
// command.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/scorevox/scorevox/internal/observe"
	"github.com/scorevox/scorevox/internal/parse"
	"github.com/scorevox/scorevox/internal/roster"
	"github.com/scorevox/scorevox/internal/session"
	"github.com/scorevox/scorevox/pkg/provider/tts"
)

// spoken phrases recognized as the undo command
var undoPhrases = []string{"撤销", "取消上一个", "撤回"}

// fixed prompts spoken when an utterance cannot be applied
const (
	promptUnparsed = "没有听清，请重说一遍"
	promptNothing  = "没有可以撤销的记录"
)

// writeRecord remembers one applied write for undo.
type writeRecord struct {
	entry   roster.Entry
	prev    float64
	hadPrev bool
	score   float64
}

// App applies recognition results to the roster. HandleResult runs on the
// session's consumer goroutine; Undo may be called from anywhere, so the
// write history is mutex-guarded.
type App struct {
	store   roster.Store
	speaker *tts.Speaker // nil disables spoken confirmations
	metrics *observe.Metrics

	mu   sync.Mutex
	last *writeRecord
}

// New creates an App over store. speaker may be nil.
func New(store roster.Store, speaker *tts.Speaker, metrics *observe.Metrics) *App {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &App{store: store, speaker: speaker, metrics: metrics}
}

// Callback adapts HandleResult to the session callback signature.
func (a *App) Callback(ctx context.Context) session.Callback {
	return func(res session.Result) {
		a.HandleResult(ctx, res)
	}
}

// HandleResult applies one recognition result. All entries of the
// utterance are written before a single save, so a multi-entry dictation
// hits the disk once.
func (a *App) HandleResult(ctx context.Context, res session.Result) {
	if len(res.Entries) == 0 {
		if isUndoCommand(res.Text.Text) {
			a.Undo(ctx)
			return
		}
		slog.Info("utterance carried no grade", "text", res.Text.Text)
		a.say(promptUnparsed)
		return
	}

	wrote := false
	for _, entry := range res.Entries {
		if a.apply(ctx, entry) {
			wrote = true
		}
	}
	if !wrote {
		return
	}
	if err := a.store.Save(); err != nil {
		slog.Error("saving roster failed", "err", err)
		a.metrics.RecordRosterWrite(ctx, "error")
	}
}

// apply writes one parsed entry, reports whether a write happened, and
// speaks the confirmation.
func (a *App) apply(ctx context.Context, entry parse.Entry) bool {
	ctx, span := observe.StartSpan(ctx, "roster.write",
		trace.WithAttributes(
			attribute.String("identifier.kind", entry.Kind.String()),
			attribute.Float64("score", entry.Score),
		))
	defer span.End()

	row, ok := roster.Resolve(a.store, entry)
	if !ok {
		slog.Warn("no roster row matches identifier",
			"kind", entry.Kind, "identifier", entry.Identifier)
		a.metrics.RecordRosterWrite(ctx, "no_match")
		a.say(fmt.Sprintf("没有找到%s", entry.Identifier))
		return false
	}

	prev, hadPrev, prevErr := a.store.Score(row)
	if prevErr != nil {
		slog.Warn("reading previous score failed", "err", prevErr, "row", row.Row)
	}
	if err := a.store.SetScore(row, entry.Score); err != nil {
		slog.Error("writing score failed", "err", err, "row", row.Row)
		a.metrics.RecordRosterWrite(ctx, "error")
		return false
	}

	a.mu.Lock()
	if prevErr != nil {
		// With the previous value unknown, an undo could wipe a real
		// pre-existing score. Drop the history instead.
		a.last = nil
	} else {
		a.last = &writeRecord{entry: *row, prev: prev, hadPrev: hadPrev, score: entry.Score}
	}
	a.mu.Unlock()

	a.metrics.RecordRosterWrite(ctx, "ok")
	slog.Info("score written",
		"row", row.Row, "sequence", row.Sequence, "name", row.Name,
		"score", entry.Score, "replaced", hadPrev)
	a.say(confirmation(row, entry.Score))
	return true
}

// Undo reverts the most recent write and saves. A second undo in a row is
// a no-op: only one level of history is kept.
func (a *App) Undo(ctx context.Context) {
	a.mu.Lock()
	rec := a.last
	a.last = nil
	a.mu.Unlock()

	if rec == nil {
		slog.Info("undo requested with no write to revert")
		a.say(promptNothing)
		return
	}

	var err error
	if rec.hadPrev {
		err = a.store.SetScore(&rec.entry, rec.prev)
	} else {
		err = a.store.ClearScore(&rec.entry)
	}
	if err != nil {
		slog.Error("undo failed", "err", err, "row", rec.entry.Row)
		a.metrics.RecordRosterWrite(ctx, "error")
		return
	}
	if err := a.store.Save(); err != nil {
		slog.Error("saving roster after undo failed", "err", err)
	}
	slog.Info("score write reverted",
		"row", rec.entry.Row, "score", rec.score, "restored_previous", rec.hadPrev)
	a.say(fmt.Sprintf("已撤销第%d行的成绩", rec.entry.Sequence))
	a.metrics.RecordRosterWrite(ctx, "undo")
}

func (a *App) say(text string) {
	if a.speaker != nil {
		a.speaker.Say(text)
	}
}

// confirmation builds the spoken acknowledgement for one write, e.g.
// "第3行，王小明，95分".
func confirmation(row *roster.Entry, score float64) string {
	who := row.Name
	if who == "" {
		who = row.ID
	}
	return fmt.Sprintf("第%d行，%s，%s分", row.Sequence, who, formatScore(score))
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

func isUndoCommand(text string) bool {
	for _, p := range undoPhrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
