package model

import (
	"strings"
	"time"
)

// SourceView identifies which portal tab a document was harvested from.
type SourceView string

const (
	SourceInbox  SourceView = "Inbox"
	SourceSigned SourceView = "Signed"
)

// CompanyConfig holds the per-company parameters for one pipeline run.
// It is immutable once loaded.
type CompanyConfig struct {
	Key           string       `json:"key" yaml:"key" mapstructure:"key"`
	Name          string       `json:"name" yaml:"name" mapstructure:"name"`
	PGCompanyID   string       `json:"pg_company_id" yaml:"pg_company_id" mapstructure:"pg_company_id"`
	HelperID      string       `json:"helper_id" yaml:"helper_id" mapstructure:"helper_id"`
	Sources       []SourceView `json:"sources" yaml:"sources" mapstructure:"sources"`
	AllowedTypes  []string     `json:"allowed_types" yaml:"allowed_types" mapstructure:"allowed_types"`
	ExcludedTypes []string     `json:"excluded_types" yaml:"excluded_types" mapstructure:"excluded_types"`
	StartDate     string       `json:"start_date" yaml:"start_date" mapstructure:"start_date"`
	EndDate       string       `json:"end_date" yaml:"end_date" mapstructure:"end_date"`
}

// HasSource reports whether the given portal view is enabled for this company.
func (c CompanyConfig) HasSource(v SourceView) bool {
	for _, s := range c.Sources {
		if s == v {
			return true
		}
	}
	return false
}

// Window parses the company's inclusive date window. Both bounds must be
// MM/DD/YYYY; a zero window is returned when either fails to parse.
func (c CompanyConfig) Window() (start, end time.Time, ok bool) {
	start, okStart := ParseFlexibleDate(c.StartDate)
	end, okEnd := ParseFlexibleDate(c.EndDate)
	if !okStart || !okEnd || end.Before(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// TypeFilter applies the company's document-type policy. Comparison is
// case-insensitive substring matching. Excluded keywords always win; when no
// keywords are configured at all, every type passes.
type TypeFilter struct {
	Allowed  []string
	Excluded []string
}

// Filter returns the document-type filter for this company.
func (c CompanyConfig) Filter() TypeFilter {
	return TypeFilter{Allowed: c.AllowedTypes, Excluded: c.ExcludedTypes}
}

// Accept reports whether a document type passes the filter policy.
func (f TypeFilter) Accept(docType string) bool {
	t := strings.ToUpper(strings.TrimSpace(docType))
	for _, ex := range f.Excluded {
		if ex != "" && strings.Contains(t, strings.ToUpper(ex)) {
			return false
		}
	}
	if len(f.Allowed) == 0 {
		return true
	}
	for _, al := range f.Allowed {
		if al != "" && strings.Contains(t, strings.ToUpper(al)) {
			return true
		}
	}
	return false
}
