package textextract

import (
	"regexp"
	"strings"
	"unicode"
)

// Metrics carries the individual signals behind a quality score.
type Metrics struct {
	PrintableRatio float64 `json:"printable_ratio"`
	WordCount      int     `json:"word_count"`
	MedicalHits    int     `json:"medical_hits"`
	StructureHits  int     `json:"structure_hits"`
	Completeness   int     `json:"completeness"`
}

var medicalKeywords = []string{
	"patient", "physician", "diagnosis", "medication", "treatment",
	"order", "episode", "certification", "medicare", "medicaid",
	"nurse", "therapy", "discharge", "admission", "referral",
	"dob", "mrn", "npi", "icd", "signature", "home health",
}

var (
	dateTokenRe = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`)
	mrnTokenRe  = regexp.MustCompile(`(?i)\b(?:mrn|medical record)[:#\s]*[A-Za-z0-9-]{4,}`)
	icdTokenRe  = regexp.MustCompile(`\b[A-TV-Z]\d[0-9A-Z](?:\.[0-9A-Z]{1,4})?\b`)
	phoneRe     = regexp.MustCompile(`\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}`)
	headerRe    = regexp.MustCompile(`(?m)^[A-Z][A-Z0-9 /&-]{4,}:?\s*$`)
	zipRe       = regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`)
)

var completenessCues = map[string][]string{
	"patient":  {"patient name", "date of birth", "dob", "sex", "address"},
	"medical":  {"diagnosis", "icd", "medication", "treatment", "plan of care"},
	"provider": {"physician", "npi", "provider", "agency", "nurse"},
	"order":    {"order", "certification", "episode", "start of care", "signature"},
}

// Score computes a composite quality score in [0, 100] with its metrics.
func Score(text string) (float64, Metrics) {
	m := Metrics{}
	if strings.TrimSpace(text) == "" {
		return 0, m
	}

	var printable, total int
	for _, r := range text {
		total++
		if unicode.IsPrint(r) || r == '\n' || r == '\t' {
			printable++
		}
	}
	if total > 0 {
		m.PrintableRatio = float64(printable) / float64(total)
	}

	m.WordCount = len(strings.Fields(text))

	lower := strings.ToLower(text)
	for _, kw := range medicalKeywords {
		if strings.Contains(lower, kw) {
			m.MedicalHits++
		}
	}
	m.MedicalHits += min(len(dateTokenRe.FindAllString(text, 10)), 10)
	m.MedicalHits += min(len(mrnTokenRe.FindAllString(text, 5)), 5)
	m.MedicalHits += min(len(icdTokenRe.FindAllString(text, 10)), 10)

	m.StructureHits = min(len(headerRe.FindAllString(text, 8)), 8)
	if phoneRe.MatchString(text) {
		m.StructureHits++
	}
	if zipRe.MatchString(text) {
		m.StructureHits++
	}
	if strings.Count(text, "\n") >= 10 {
		m.StructureHits++
	}

	for _, cues := range completenessCues {
		for _, cue := range cues {
			if strings.Contains(lower, cue) {
				m.Completeness++
				break
			}
		}
	}

	score := m.PrintableRatio * 30

	switch {
	case m.WordCount >= 100 && m.WordCount <= 2000:
		score += 25
	case m.WordCount >= 50 && m.WordCount < 100:
		score += 15
	case m.WordCount > 2000 && m.WordCount <= 5000:
		score += 18
	case m.WordCount >= 20:
		score += 8
	}

	score += float64(min(m.MedicalHits, 20)) * 1.25 // up to 25
	score += float64(min(m.StructureHits, 10))      // up to 10
	score += float64(m.Completeness) * 2.5          // up to 10

	if score > 100 {
		score = 100
	}
	return score, m
}

// selectionScore adds the tie-breaking bonuses used when competing strategies.
func selectionScore(base float64, m Metrics) float64 {
	s := base
	if m.MedicalHits >= 10 {
		s += 3
	}
	if m.StructureHits >= 5 {
		s += 2
	}
	if m.Completeness == len(completenessCues) {
		s += 3
	}
	if m.WordCount >= 100 && m.WordCount <= 2000 {
		s += 2
	}
	return s
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
