package upload

import (
	"context"
	"encoding/csv"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/silverline-health/ordersync/pkg/platform"
)

// CompanyResolver resolves the agency companyId required on patient and
// order payloads. Three tiers: the entity lookup API by care-provider name,
// a local CSV mapping, then the row's PG company id canonicalized to UUID
// shape as a last resort.
type CompanyResolver struct {
	platform platform.Client
	csvPath  string

	once     sync.Once
	entities map[string]string // lowercased name -> id
	csvMap   map[string]string
}

// NewCompanyResolver creates a resolver. csvPath may be empty.
func NewCompanyResolver(pf platform.Client, csvPath string) *CompanyResolver {
	return &CompanyResolver{platform: pf, csvPath: csvPath}
}

// Resolve returns a non-empty companyId or "".
func (r *CompanyResolver) Resolve(ctx context.Context, careProvider, pgCompanyID string) string {
	r.once.Do(func() { r.load(ctx) })

	name := strings.ToLower(strings.TrimSpace(careProvider))
	if name != "" {
		if id, ok := r.entities[name]; ok {
			return id
		}
		if id, ok := r.csvMap[name]; ok {
			return id
		}
	}

	if canonical := CanonicalUUID(pgCompanyID); canonical != "" {
		return canonical
	}
	return ""
}

func (r *CompanyResolver) load(ctx context.Context) {
	r.entities = map[string]string{}
	r.csvMap = map[string]string{}

	if r.platform != nil {
		entities, err := r.platform.ListEntities(ctx, platform.EntityTypeAncillary)
		if err != nil {
			zap.L().Warn("entity lookup unavailable, falling back to csv mapping", zap.Error(err))
		} else {
			for _, e := range entities {
				r.entities[strings.ToLower(strings.TrimSpace(e.Name))] = e.ID
			}
		}
	}

	if r.csvPath == "" {
		return
	}
	f, err := os.Open(r.csvPath)
	if err != nil {
		zap.L().Warn("company csv mapping unavailable", zap.String("path", r.csvPath), zap.Error(err))
		return
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		zap.L().Warn("company csv mapping unreadable", zap.String("path", r.csvPath), zap.Error(err))
		return
	}
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(row[0]))
		id := strings.TrimSpace(row[1])
		if name != "" && id != "" {
			r.csvMap[name] = id
		}
	}
}

// CanonicalUUID formats a UUID-like string to the hyphenated 8-4-4-4-12
// shape, returning "" when the input is not a UUID.
func CanonicalUUID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return ""
	}
	return id.String()
}
