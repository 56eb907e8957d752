package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"canonical", "07/04/2025", "07/04/2025"},
		{"single digit", "7/4/2025", "07/04/2025"},
		{"iso", "2025-07-04", "07/04/2025"},
		{"day first", "25/07/2025", "07/25/2025"},
		{"dashes", "07-04-2025", "07/04/2025"},
		{"long form", "July 4, 2025", "07/04/2025"},
		{"short month", "Jul 4, 2025", "07/04/2025"},
		{"two digit year low", "07/04/25", "07/04/2025"},
		{"two digit year high", "07/04/85", "07/04/1985"},
		{"empty", "", ""},
		{"garbage", "not a date", ""},
		{"rollover rejected", "02/31/2025", ""},
		{"month thirteen", "13/13/2025", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDate(tt.in))
		})
	}
}

func TestParseFlexibleDate_TwoDigitYearBoundary(t *testing.T) {
	// 49 maps forward, 50 maps back.
	d, ok := ParseFlexibleDate("01/01/49")
	assert.True(t, ok)
	assert.Equal(t, 2049, d.Year())

	d, ok = ParseFlexibleDate("01/01/50")
	assert.True(t, ok)
	assert.Equal(t, 1950, d.Year())
}
