package rankedin

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// table describes the integrity rules of one ranked table.
type table struct {
	name     string
	model    any
	identity string
	// keep orders a duplicate group so that its first row survives.
	keep       string
	duplicates string
	counts     []string
	required   []string
}

var tables = []table{
	{
		name:       "users",
		model:      &User{},
		identity:   "username",
		keep:       "updated_at DESC, id DESC",
		duplicates: DuplicateUsernamesQuery,
		counts:     []string{"followers", "following", "public_repos", "total_stars"},
		required:   []string{"username"},
	},
	{
		name:       "repositories",
		model:      &Repository{},
		identity:   "full_name",
		keep:       "stars DESC, id ASC",
		duplicates: DuplicateRepositoryNamesQuery,
		counts:     []string{"stars", "forks", "watchers", "open_issues", "size"},
		required:   []string{"full_name", "html_url"},
	},
	{
		name:       "topics",
		model:      &Topic{},
		identity:   "name",
		keep:       "score DESC, id ASC",
		duplicates: DuplicateTopicNamesQuery,
		counts:     []string{"score", "repositories"},
		required:   []string{"name"},
	},
}

// DuplicateGroup is an identity stored more than once.
type DuplicateGroup struct {
	Identity string `json:"identity"`
	Count    int64  `json:"count"`
}

// Maintenance repairs the ranked tables offline. Every operation is idempotent.
type Maintenance struct {
	ds *DataStore
}

func NewMaintenance(ds *DataStore) *Maintenance { return &Maintenance{ds: ds} }

// DedupeReport maps table name to the number of rows deleted.
type DedupeReport map[string]int64

// Dedupe keeps one row per identity: the most recently updated user, the
// most starred repository and the highest scored topic. Remaining ties go
// to the lowest id, or the highest id for users.
func (m *Maintenance) Dedupe(ctx context.Context) (DedupeReport, error) {
	ctx, span := startSpan(ctx, "Maintenance.Dedupe")
	defer span.End()

	report := DedupeReport{}
	for _, t := range tables {
		var removed int64
		err := m.ds.transaction(ctx, func(tx *gorm.DB) error {
			var groups []DuplicateGroup
			if err := tx.Raw(t.duplicates).Scan(&groups).Error; err != nil {
				return err
			}
			for _, g := range groups {
				var ids []uint64
				err := tx.Model(t.model).
					Where(t.identity+" = ?", g.Identity).
					Order(t.keep).
					Pluck("id", &ids).Error
				if err != nil {
					return err
				}
				if len(ids) < 2 {
					continue
				}
				res := tx.Where("id IN ?", ids[1:]).Delete(t.model)
				if res.Error != nil {
					return res.Error
				}
				removed += res.RowsAffected
				slog.DebugContext(ctx, "duplicates removed", "table", t.name, "identity", g.Identity, "kept", ids[0], "removed", len(ids)-1)
			}
			return nil
		})
		if err != nil {
			return nil, fail(span, err, "dedupe "+t.name+" failed")
		}
		report[t.name] = removed
		span.SetAttributes(attribute.Int64(t.name+".removed", removed))
	}
	slog.InfoContext(ctx, "dedupe finished", "users", report["users"], "repositories", report["repositories"], "topics", report["topics"])
	return report, nil
}

// ClampReport maps table name to the number of negative fields reset.
type ClampReport map[string]int64

// Clamp resets every negative count to 0. Timestamps are left untouched so
// that a clamp does not change which user Dedupe would keep.
func (m *Maintenance) Clamp(ctx context.Context) (ClampReport, error) {
	ctx, span := startSpan(ctx, "Maintenance.Clamp")
	defer span.End()

	report := ClampReport{}
	for _, t := range tables {
		var fixed int64
		err := m.ds.transaction(ctx, func(tx *gorm.DB) error {
			for _, col := range t.counts {
				res := tx.Model(t.model).Where(col+" < 0").UpdateColumn(col, 0)
				if res.Error != nil {
					return res.Error
				}
				fixed += res.RowsAffected
			}
			return nil
		})
		if err != nil {
			return nil, fail(span, err, "clamp "+t.name+" failed")
		}
		report[t.name] = fixed
	}
	slog.InfoContext(ctx, "clamp finished", "users", report["users"], "repositories", report["repositories"], "topics", report["topics"])
	return report, nil
}

// TableReport is the health of one table.
type TableReport struct {
	Total      int64            `json:"total"`
	Duplicates []DuplicateGroup `json:"duplicates"`
	Negative   int64            `json:"negative"`
	Incomplete int64            `json:"incomplete"`
}

func (r TableReport) Healthy() bool {
	return len(r.Duplicates) == 0 && r.Negative == 0 && r.Incomplete == 0
}

type ValidationReport struct {
	Tables     map[string]TableReport `json:"tables"`
	TotalStars int64                  `json:"totalStars"`
}

func (r *ValidationReport) Healthy() bool {
	for _, t := range r.Tables {
		if !t.Healthy() {
			return false
		}
	}
	return true
}

// TableNames returns the validated tables in a stable order.
func (r *ValidationReport) TableNames() []string {
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.name)
	}
	return names
}

// Validate reports duplicates, negative counts and rows missing their
// identity without changing anything.
func (m *Maintenance) Validate(ctx context.Context) (*ValidationReport, error) {
	ctx, span := startSpan(ctx, "Maintenance.Validate")
	defer span.End()

	db := m.ds.db.Gorm(ctx)
	report := &ValidationReport{Tables: make(map[string]TableReport, len(tables))}
	for _, t := range tables {
		var tr TableReport
		if err := db.Model(t.model).Count(&tr.Total).Error; err != nil {
			return nil, fail(span, err, "count "+t.name+" failed")
		}
		if err := db.Raw(t.duplicates).Scan(&tr.Duplicates).Error; err != nil {
			return nil, fail(span, err, "find "+t.name+" duplicates failed")
		}
		if err := db.Model(t.model).Where(anyBelowZero(t.counts)).Count(&tr.Negative).Error; err != nil {
			return nil, fail(span, err, "count negative "+t.name+" failed")
		}
		if err := db.Model(t.model).Where(anyBlank(t.required)).Count(&tr.Incomplete).Error; err != nil {
			return nil, fail(span, err, "count incomplete "+t.name+" failed")
		}
		if tr.Duplicates == nil {
			tr.Duplicates = []DuplicateGroup{}
		}
		report.Tables[t.name] = tr
	}
	if err := db.Model(&Repository{}).Select("COALESCE(SUM(stars), 0)").Scan(&report.TotalStars).Error; err != nil {
		return nil, fail(span, err, "sum stars failed")
	}
	return report, nil
}

func anyBelowZero(cols []string) string {
	conds := make([]string, len(cols))
	for i, c := range cols {
		conds[i] = c + " < 0"
	}
	return strings.Join(conds, " OR ")
}

func anyBlank(cols []string) string {
	conds := make([]string, len(cols))
	for i, c := range cols {
		conds[i] = c + " = ''"
	}
	return strings.Join(conds, " OR ")
}
