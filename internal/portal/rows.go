package portal

import (
	"regexp"
	"strings"
	"time"

	"github.com/silverline-health/ordersync/internal/model"
)

// RawRow is one table row as read off a portal list view.
type RawRow struct {
	DocID        string
	DocType      string
	ReceivedDate string
}

// rowDecision classifies a scanned row.
type rowDecision int

const (
	rowAccept rowDecision = iota
	rowSkip
	rowStop // row is older than the window start; view is newest-first
)

var docIDRe = regexp.MustCompile(`^\d+$`)

// evaluateRow applies the window, filter and dedupe policy to one row.
// newestFirst enables early termination once rows fall below the window.
func evaluateRow(row RawRow, start, end time.Time, filter model.TypeFilter, seen model.SeenSet, newestFirst bool) rowDecision {
	docID := strings.TrimSpace(row.DocID)
	if !docIDRe.MatchString(docID) {
		return rowSkip
	}

	received, ok := model.ParseFlexibleDate(row.ReceivedDate)
	if !ok {
		return rowSkip
	}
	if received.Before(start) {
		if newestFirst {
			return rowStop
		}
		return rowSkip
	}
	if received.After(end) {
		return rowSkip
	}

	if !filter.Accept(row.DocType) {
		return rowSkip
	}
	if seen.Has(docID) {
		return rowSkip
	}
	return rowAccept
}

// pageState captures what PAGINATE compares to detect page movement.
type pageState struct {
	RowCount  int
	TbodyHTML string
	URL       string
}

// changed reports whether next differs from prev in any tracked dimension.
func (prev pageState) changed(next pageState) bool {
	return next.RowCount != prev.RowCount ||
		next.TbodyHTML != prev.TbodyHTML ||
		next.URL != prev.URL
}

// scanTally tracks per-view progress toward termination.
type scanTally struct {
	pages      int
	emptyPages int
	maxPages   int
	maxEmpty   int
}

// recordPage notes one scanned page and reports whether scanning should stop.
func (t *scanTally) recordPage(newDocs int) bool {
	t.pages++
	if newDocs == 0 {
		t.emptyPages++
	} else {
		t.emptyPages = 0
	}
	return t.pages >= t.maxPages || t.emptyPages >= t.maxEmpty
}
