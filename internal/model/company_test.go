package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeFilter_ExcludedWins(t *testing.T) {
	f := TypeFilter{Allowed: []string{"485"}, Excluded: []string{"CONVERSION"}}

	assert.True(t, f.Accept("485CERT"))
	assert.True(t, f.Accept("485 RECERT"))
	// Excluded keyword wins even when an allowed keyword also matches.
	assert.False(t, f.Accept("485 CONVERSION"))
	assert.False(t, f.Accept("conversion"))
	// Legacy fallback: no allowed keyword match.
	assert.False(t, f.Accept("RECERT"))
}

func TestTypeFilter_NoFilterPassesAll(t *testing.T) {
	f := TypeFilter{}
	assert.True(t, f.Accept("485CERT"))
	assert.True(t, f.Accept("anything"))
}

func TestTypeFilter_CaseInsensitive(t *testing.T) {
	f := TypeFilter{Allowed: []string{"recert"}}
	assert.True(t, f.Accept("485 RECERT"))
}

func TestCompanyConfig_Window(t *testing.T) {
	c := CompanyConfig{StartDate: "07/01/2025", EndDate: "07/07/2025"}
	start, end, ok := c.Window()
	require.True(t, ok)
	assert.Equal(t, "07/01/2025", FormatDate(start))
	assert.Equal(t, "07/07/2025", FormatDate(end))

	// Inverted window is rejected.
	c = CompanyConfig{StartDate: "07/07/2025", EndDate: "07/01/2025"}
	_, _, ok = c.Window()
	assert.False(t, ok)
}

func TestCompanyConfig_HasSource(t *testing.T) {
	c := CompanyConfig{Sources: []SourceView{SourceSigned}}
	assert.True(t, c.HasSource(SourceSigned))
	assert.False(t, c.HasSource(SourceInbox))
}

func TestSeenSet(t *testing.T) {
	seen := make(SeenSet)
	assert.True(t, seen.Add("12345"))
	assert.False(t, seen.Add("12345"))
	assert.True(t, seen.Has("12345"))
	assert.False(t, seen.Has("99999"))
}
