package fieldextract

import (
	"regexp"
	"strings"

	"github.com/silverline-health/ordersync/internal/model"
	"github.com/silverline-health/ordersync/pkg/icd"
)

const datePat = `\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}-\d{2}-\d{2}`

var (
	orderNoPats = []*regexp.Regexp{
		regexp.MustCompile(`(?i)order\s*(?:no\.?|number|#)[:\s]*([A-Za-z0-9-]{3,})`),
		regexp.MustCompile(`(?i)\border[:\s]+#?([A-Za-z0-9-]{3,})\b`),
	}
	orderDatePats = []*regexp.Regexp{
		regexp.MustCompile(`(?i)order\s*date[:\s]*(` + datePat + `)`),
		regexp.MustCompile(`(?i)date\s*of\s*order[:\s]*(` + datePat + `)`),
	}
	mrnPats = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bmrn\s*(?:no\.?|number|#)?[:\s]*([A-Za-z0-9]{4,})`),
		regexp.MustCompile(`(?i)medical\s*record\s*(?:no\.?|number|#)?[:\s]*([A-Za-z0-9]{4,})`),
		regexp.MustCompile(`(?i)\brecord\s*#[:\s]*([A-Za-z0-9]{4,})`),
	}
	socPats = []*regexp.Regexp{
		regexp.MustCompile(`(?i)start\s*of\s*care\s*(?:date)?[:\s]*(` + datePat + `)`),
		regexp.MustCompile(`(?i)\bsoc\s*(?:date)?[:\s]*(` + datePat + `)`),
	}
	certPats = []*regexp.Regexp{
		regexp.MustCompile(`(?i)cert(?:ification)?\s*period[:\s]*(` + datePat + `)\s*(?:-|to|through|thru)\s*(` + datePat + `)`),
		regexp.MustCompile(`(?i)episode[:\s]*(` + datePat + `)\s*(?:-|to|through|thru)\s*(` + datePat + `)`),
		regexp.MustCompile(`(?i)\bfrom[:\s]*(` + datePat + `)\s*(?:-|to|through|thru)\s*(` + datePat + `)`),
	}
	patientNamePats = []*regexp.Regexp{
		regexp.MustCompile(`(?i)patient\s*(?:name)?[:\s]+([A-Z][A-Za-z'.-]+(?:,?\s+[A-Z][A-Za-z'.-]+){1,3})`),
		regexp.MustCompile(`(?i)\bname[:\s]+([A-Z][A-Za-z'.-]+(?:,?\s+[A-Z][A-Za-z'.-]+){1,3})`),
	}
	dobPats = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:date\s*of\s*birth|dob|birth\s*date)[:\s]*(` + datePat + `)`),
	}
	addressPats = []*regexp.Regexp{
		regexp.MustCompile(`(?i)address[:\s]+(\d+[^\n]{5,80}\b[A-Z]{2}\b[,\s]*\d{5}(?:-\d{4})?)`),
		regexp.MustCompile(`(?i)address[:\s]+(\d+[^\n]{5,100})`),
	}
	sexPats = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:sex|gender)[:\s]*(male|female|[MF])\b`),
	}
	icdListRe = regexp.MustCompile(`\b[A-TV-Z]\d[0-9A-Z](?:\.[0-9A-Z]{1,4})?\b`)
)

// patternExtract pulls fields from raw text with anchored regexes. For each
// field the first well-formed match wins.
func patternExtract(text string) model.ExtractedFields {
	var f model.ExtractedFields

	if v := firstMatch(text, orderNoPats); model.ValidOrderNo(v) {
		f.OrderNo = v
	}
	f.OrderDate = model.NormalizeDate(firstMatch(text, orderDatePats))
	if v := firstMatch(text, mrnPats); model.ValidMRN(v) {
		f.MRN = v
	}
	f.SOC = model.NormalizeDate(firstMatch(text, socPats))
	for _, re := range certPats {
		if m := re.FindStringSubmatch(text); m != nil {
			soe := model.NormalizeDate(m[1])
			eoe := model.NormalizeDate(m[2])
			if soe != "" && eoe != "" {
				f.CertPeriod = model.CertPeriod{SOE: soe, EOE: eoe}
				break
			}
		}
	}
	f.PatientName = strings.TrimSpace(firstMatch(text, patientNamePats))
	f.DOB = model.NormalizeDate(firstMatch(text, dobPats))
	f.Address = strings.TrimSpace(firstMatch(text, addressPats))
	f.PatientSex = model.NormalizeSex(firstMatch(text, sexPats))

	seen := map[string]bool{}
	for _, code := range icdListRe.FindAllString(text, 20) {
		code = strings.ToUpper(code)
		if !seen[code] && icd.WellFormed(code) {
			seen[code] = true
			f.ICDCodes = append(f.ICDCodes, code)
		}
	}

	return f
}

func firstMatch(text string, pats []*regexp.Regexp) string {
	for _, re := range pats {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}
