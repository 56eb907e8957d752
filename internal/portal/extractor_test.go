package portal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverline-health/ordersync/internal/model"
)

func window(t *testing.T) (time.Time, time.Time) {
	t.Helper()
	start, ok := model.ParseFlexibleDate("01/01/2026")
	require.True(t, ok)
	end, ok := model.ParseFlexibleDate("01/31/2026")
	require.True(t, ok)
	return start, end
}

func TestEvaluateRow(t *testing.T) {
	start, end := window(t)
	filter := model.TypeFilter{Allowed: []string{"485"}, Excluded: []string{"FACE TO FACE"}}

	tests := []struct {
		name string
		row  RawRow
		want rowDecision
	}{
		{"accepted", RawRow{DocID: "12345", DocType: "485 CERT", ReceivedDate: "01/15/2026"}, rowAccept},
		{"excluded type wins", RawRow{DocID: "12346", DocType: "485 FACE TO FACE", ReceivedDate: "01/15/2026"}, rowSkip},
		{"not allowed", RawRow{DocID: "12347", DocType: "LAB RESULT", ReceivedDate: "01/15/2026"}, rowSkip},
		{"after window", RawRow{DocID: "12348", DocType: "485 CERT", ReceivedDate: "02/10/2026"}, rowSkip},
		{"before window newest-first", RawRow{DocID: "12349", DocType: "485 CERT", ReceivedDate: "12/20/2025"}, rowStop},
		{"bad date", RawRow{DocID: "12350", DocType: "485 CERT", ReceivedDate: "soon"}, rowSkip},
		{"non-numeric id", RawRow{DocID: "abc", DocType: "485 CERT", ReceivedDate: "01/15/2026"}, rowSkip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluateRow(tt.row, start, end, filter, model.SeenSet{}, true)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateRowOldNotNewestFirst(t *testing.T) {
	start, end := window(t)
	row := RawRow{DocID: "12349", DocType: "485 CERT", ReceivedDate: "12/20/2025"}
	got := evaluateRow(row, start, end, model.TypeFilter{}, model.SeenSet{}, false)
	assert.Equal(t, rowSkip, got, "signed view keeps scanning past old rows")
}

func TestEvaluateRowDedupe(t *testing.T) {
	start, end := window(t)
	seen := model.SeenSet{}
	seen.Add("12345")

	row := RawRow{DocID: "12345", DocType: "485 CERT", ReceivedDate: "01/15/2026"}
	assert.Equal(t, rowSkip, evaluateRow(row, start, end, model.TypeFilter{}, seen, true))
}

func TestPageStateChanged(t *testing.T) {
	a := pageState{RowCount: 25, TbodyHTML: "<tr>a</tr>", URL: "https://x/p1"}
	assert.False(t, a.changed(a))
	assert.True(t, a.changed(pageState{RowCount: 25, TbodyHTML: "<tr>b</tr>", URL: "https://x/p1"}))
	assert.True(t, a.changed(pageState{RowCount: 10, TbodyHTML: "<tr>a</tr>", URL: "https://x/p1"}))
	assert.True(t, a.changed(pageState{RowCount: 25, TbodyHTML: "<tr>a</tr>", URL: "https://x/p2"}))
}

func TestScanTally(t *testing.T) {
	tally := scanTally{maxPages: 100, maxEmpty: 3}
	assert.False(t, tally.recordPage(5))
	assert.False(t, tally.recordPage(0))
	assert.False(t, tally.recordPage(0))
	assert.True(t, tally.recordPage(0), "three consecutive empty pages stop the scan")

	tally = scanTally{maxPages: 2, maxEmpty: 3}
	assert.False(t, tally.recordPage(5))
	assert.True(t, tally.recordPage(5), "hard page cap stops the scan")

	tally = scanTally{maxPages: 100, maxEmpty: 3}
	tally.recordPage(0)
	tally.recordPage(0)
	assert.False(t, tally.recordPage(4), "a productive page resets the empty streak")
	assert.False(t, tally.recordPage(0))
}

func TestFindNPI(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"span anchor", `<span id="physician-npi"> 1234567890 </span>`, "1234567890"},
		{"td anchor", `<td class="npi-value">9876543210</td>`, "9876543210"},
		{"data attribute", `<div data-npi="1112223334">Dr. Smith</div>`, "1112223334"},
		{"labelled text", `Physician NPI: 1234567890`, "1234567890"},
		{"loose fallback", `<p>reference 1234567890 in body</p>`, "1234567890"},
		{"nothing", `<p>no identifiers here</p>`, ""},
		{"too short", `NPI: 12345`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, findNPI(tt.html))
		})
	}
}
