package roster

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Default score column header when the sheet does not already have one.
const DefaultScoreHeader = "成绩"

// header keywords recognized during sheet layout detection
var (
	idHeaders    = []string{"学号", "序号", "编号"}
	nameHeaders  = []string{"姓名", "名字"}
	scoreHeaders = []string{"成绩", "分数", "得分"}
)

const (
	headerScanRows = 10
	saveAttempts   = 3
	saveRetryDelay = 500 * time.Millisecond
)

// Excel is a Store backed by an .xlsx workbook. The sheet layout is
// detected from headers: the first row within the first ten that carries a
// recognizable ID or name header is the header row, and student rows
// follow it.
type Excel struct {
	path  string
	f     *excelize.File
	sheet string

	headerRow int
	idCol     int // 1-based, 0 when the sheet has no ID column
	nameCol   int
	scoreCol  int

	entries []Entry
	dirty   bool
}

var _ Store = (*Excel)(nil)

// Open loads the workbook at path. sheet selects a worksheet by name, or
// the workbook's first sheet when empty. scoreHeader names the column
// scores are written to; when the sheet lacks it a new column is appended.
func Open(path, sheet, scoreHeader string) (*Excel, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("roster: opening %s: %w", path, err)
	}
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if scoreHeader == "" {
		scoreHeader = DefaultScoreHeader
	}

	e := &Excel{path: path, f: f, sheet: sheet}
	if err := e.detectLayout(scoreHeader); err != nil {
		f.Close()
		return nil, err
	}
	if err := e.loadEntries(); err != nil {
		f.Close()
		return nil, err
	}
	slog.Info("roster loaded",
		"path", path, "sheet", sheet, "students", len(e.entries),
		"header_row", e.headerRow)
	return e, nil
}

func (e *Excel) detectLayout(scoreHeader string) error {
	rows, err := e.f.GetRows(e.sheet)
	if err != nil {
		return fmt.Errorf("roster: reading sheet %s: %w", e.sheet, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("roster: sheet %s is empty", e.sheet)
	}

	limit := len(rows)
	if limit > headerScanRows {
		limit = headerScanRows
	}
	for r := 0; r < limit; r++ {
		idCol, nameCol := 0, 0
		for c, cell := range rows[r] {
			cell = strings.TrimSpace(cell)
			if idCol == 0 && matchesAny(cell, idHeaders) {
				idCol = c + 1
			}
			if nameCol == 0 && matchesAny(cell, nameHeaders) {
				nameCol = c + 1
			}
		}
		if idCol == 0 && nameCol == 0 {
			continue
		}
		e.headerRow = r + 1
		e.idCol = idCol
		e.nameCol = nameCol
		break
	}
	if e.headerRow == 0 {
		return fmt.Errorf("roster: no header row with %v or %v found in first %d rows",
			idHeaders, nameHeaders, headerScanRows)
	}

	header := rows[e.headerRow-1]
	for c, cell := range header {
		cell = strings.TrimSpace(cell)
		if cell == scoreHeader || matchesAny(cell, scoreHeaders) {
			e.scoreCol = c + 1
			break
		}
	}
	if e.scoreCol == 0 {
		e.scoreCol = len(header) + 1
		cell, err := excelize.CoordinatesToCellName(e.scoreCol, e.headerRow)
		if err != nil {
			return fmt.Errorf("roster: score column position: %w", err)
		}
		if err := e.f.SetCellValue(e.sheet, cell, scoreHeader); err != nil {
			return fmt.Errorf("roster: creating score column: %w", err)
		}
		e.dirty = true
		slog.Info("score column added to sheet", "header", scoreHeader, "column", e.scoreCol)
	}
	return nil
}

func matchesAny(cell string, keywords []string) bool {
	if cell == "" {
		return false
	}
	for _, kw := range keywords {
		if strings.Contains(cell, kw) {
			return true
		}
	}
	return false
}

func (e *Excel) loadEntries() error {
	rows, err := e.f.GetRows(e.sheet)
	if err != nil {
		return fmt.Errorf("roster: reading sheet %s: %w", e.sheet, err)
	}
	seq := 0
	for r := e.headerRow; r < len(rows); r++ {
		id := cellAt(rows[r], e.idCol)
		name := cellAt(rows[r], e.nameCol)
		if id == "" && name == "" {
			continue
		}
		seq++
		e.entries = append(e.entries, Entry{
			Row:      r + 1,
			Sequence: seq,
			ID:       id,
			Name:     name,
		})
	}
	return nil
}

func cellAt(row []string, col int) string {
	if col <= 0 || col > len(row) {
		return ""
	}
	return strings.TrimSpace(row[col-1])
}

// Entries returns all student rows in sheet order.
func (e *Excel) Entries() []Entry {
	out := make([]Entry, len(e.entries))
	copy(out, e.entries)
	return out
}

// FindBySequence resolves a spoken sequence number to a row.
func (e *Excel) FindBySequence(seq int) (*Entry, bool) {
	for i := range e.entries {
		if e.entries[i].Sequence == seq {
			ent := e.entries[i]
			return &ent, true
		}
	}
	return nil, false
}

// FindByID resolves a student ID, tolerating partial and digits-only forms.
func (e *Excel) FindByID(id string) (*Entry, bool) {
	if found, ok := findID(e.entries, id); ok {
		ent := *found
		return &ent, true
	}
	return nil, false
}

// FindByName resolves a name, exact first, then fuzzy.
func (e *Excel) FindByName(name string) (*Entry, bool) {
	if found, ok := bestNameMatch(e.entries, name); ok {
		ent := *found
		return &ent, true
	}
	return nil, false
}

// Score reads the student's current score cell.
func (e *Excel) Score(ent *Entry) (float64, bool, error) {
	cell, err := excelize.CoordinatesToCellName(e.scoreCol, ent.Row)
	if err != nil {
		return 0, false, fmt.Errorf("roster: score cell for row %d: %w", ent.Row, err)
	}
	val, err := e.f.GetCellValue(e.sheet, cell)
	if err != nil {
		return 0, false, fmt.Errorf("roster: reading %s: %w", cell, err)
	}
	val = strings.TrimSpace(val)
	if val == "" {
		return 0, false, nil
	}
	score, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("roster: non-numeric score %q in %s: %w", val, cell, err)
	}
	return score, true, nil
}

// SetScore writes the student's score cell in memory.
func (e *Excel) SetScore(ent *Entry, score float64) error {
	cell, err := excelize.CoordinatesToCellName(e.scoreCol, ent.Row)
	if err != nil {
		return fmt.Errorf("roster: score cell for row %d: %w", ent.Row, err)
	}
	if err := e.f.SetCellValue(e.sheet, cell, score); err != nil {
		return fmt.Errorf("roster: writing %s: %w", cell, err)
	}
	e.dirty = true
	return nil
}

// ClearScore blanks the student's score cell.
func (e *Excel) ClearScore(ent *Entry) error {
	cell, err := excelize.CoordinatesToCellName(e.scoreCol, ent.Row)
	if err != nil {
		return fmt.Errorf("roster: score cell for row %d: %w", ent.Row, err)
	}
	if err := e.f.SetCellValue(e.sheet, cell, ""); err != nil {
		return fmt.Errorf("roster: clearing %s: %w", cell, err)
	}
	e.dirty = true
	return nil
}

// Save persists pending changes. Spreadsheet applications hold the file
// locked while it is open, so the save is retried and finally diverted to
// a sibling file rather than losing the scores.
func (e *Excel) Save() error {
	if !e.dirty {
		return nil
	}
	var lastErr error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		if err := e.f.Save(); err != nil {
			lastErr = err
			slog.Warn("saving roster failed, retrying", "err", err, "attempt", attempt)
			time.Sleep(saveRetryDelay)
			continue
		}
		e.dirty = false
		return nil
	}

	fallback := fallbackPath(e.path)
	if err := e.f.SaveAs(fallback); err != nil {
		return fmt.Errorf("roster: saving %s (%v) and fallback %s: %w", e.path, lastErr, fallback, err)
	}
	e.dirty = false
	slog.Warn("roster saved to fallback file, original is locked",
		"original", e.path, "fallback", fallback)
	return nil
}

func fallbackPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_backup" + ext
}

// Close releases the workbook without saving.
func (e *Excel) Close() error {
	return e.f.Close()
}
