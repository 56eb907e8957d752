package model

import "regexp"

var npiRe = regexp.MustCompile(`^\d{10}$`)

// DocumentRef points at one portal document harvested during extraction.
type DocumentRef struct {
	DocID   string     `json:"doc_id"`
	DocType string     `json:"doc_type"`
	Source  SourceView `json:"source"`
	NPI     string     `json:"npi,omitempty"`
	// ReceivedDate is carried exactly as the portal reported it (MM/DD/YYYY).
	ReceivedDate string `json:"received_date,omitempty"`
}

// ValidNPI reports whether s is a well-formed 10-digit NPI.
func ValidNPI(s string) bool {
	return npiRe.MatchString(s)
}

// SeenSet tracks document IDs already harvested within a run so Inbox and
// Signed never contribute the same document twice.
type SeenSet map[string]struct{}

// Add records an ID and reports whether it was new.
func (s SeenSet) Add(docID string) bool {
	if _, ok := s[docID]; ok {
		return false
	}
	s[docID] = struct{}{}
	return true
}

// Has reports whether an ID has already been harvested.
func (s SeenSet) Has(docID string) bool {
	_, ok := s[docID]
	return ok
}
