package rankedin

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"rankedin.shikanime.studio/internal/database"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	defaultMax   = 100
)

// DataStore persists ranked entities.
type DataStore struct {
	db      *database.Database
	maxPage int
}

type DataStoreOption func(*DataStore)

// WithMaxPageSize caps ListArgs.Limit.
func WithMaxPageSize(n int) DataStoreOption {
	return func(ds *DataStore) {
		if n > 0 {
			ds.maxPage = n
		}
	}
}

func NewDataStore(db *database.Database, opts ...DataStoreOption) *DataStore {
	ds := &DataStore{db: db, maxPage: defaultMax}
	for _, opt := range opts {
		opt(ds)
	}
	return ds
}

func (ds *DataStore) Ping(ctx context.Context) error { return ds.db.Ping(ctx) }

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer("rankedin/store").Start(ctx, name)
}

func fail(span trace.Span, err error, msg string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return fmt.Errorf("%s: %w", msg, err)
}

// exists reports whether a row of model has column = value.
func (ds *DataStore) exists(ctx context.Context, model any, column, value string) (bool, error) {
	ctx, span := startSpan(ctx, "DataStore.Exists")
	span.SetAttributes(attribute.String("column", column))
	defer span.End()

	var n int64
	if err := ds.db.Gorm(ctx).Model(model).Where(clause.Eq{Column: clause.Column{Name: column}, Value: value}).Count(&n).Error; err != nil {
		return false, fail(span, err, "exists query failed")
	}
	return n > 0, nil
}

func (ds *DataStore) UserExists(ctx context.Context, username string) (bool, error) {
	return ds.exists(ctx, &User{}, "username", username)
}

func (ds *DataStore) RepositoryExists(ctx context.Context, fullName string) (bool, error) {
	return ds.exists(ctx, &Repository{}, "full_name", fullName)
}

func (ds *DataStore) TopicExists(ctx context.Context, name string) (bool, error) {
	return ds.exists(ctx, &Topic{}, "name", name)
}

// GetUser returns the user with the given lowercase username.
// The error satisfies database.IsNotFound when it is untracked.
func (ds *DataStore) GetUser(ctx context.Context, username string) (*User, error) {
	ctx, span := startSpan(ctx, "DataStore.GetUser")
	defer span.End()

	var u User
	if err := ds.db.Gorm(ctx).Where("username = ?", username).Take(&u).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, err
		}
		return nil, fail(span, err, "get user failed")
	}
	return &u, nil
}

// create inserts row. A unique index violation is returned as is so that
// callers can detect it with database.IsUniqueViolation.
func (ds *DataStore) create(ctx context.Context, name string, row any) error {
	ctx, span := startSpan(ctx, "DataStore.Create"+name)
	defer span.End()
	if err := ds.db.Gorm(ctx).Create(row).Error; err != nil {
		if database.IsUniqueViolation(err) {
			span.SetAttributes(attribute.Bool("unique_violation", true))
			return err
		}
		return fail(span, err, "create "+strings.ToLower(name)+" failed")
	}
	return nil
}

func (ds *DataStore) CreateUser(ctx context.Context, u *User) error { return ds.create(ctx, "User", u) }

func (ds *DataStore) CreateRepository(ctx context.Context, r *Repository) error {
	return ds.create(ctx, "Repository", r)
}

func (ds *DataStore) CreateTopic(ctx context.Context, t *Topic) error { return ds.create(ctx, "Topic", t) }

func (ds *DataStore) CountUsers(ctx context.Context) (int64, error) {
	ctx, span := startSpan(ctx, "DataStore.CountUsers")
	defer span.End()
	var n int64
	if err := ds.db.Gorm(ctx).Model(&User{}).Count(&n).Error; err != nil {
		return 0, fail(span, err, "count users failed")
	}
	return n, nil
}

// IncrementBadgeRequests adds one to the global badge counter with a single
// UPDATE, creating the singleton row first if a fresh schema lacks it.
func (ds *DataStore) IncrementBadgeRequests(ctx context.Context) error {
	ctx, span := startSpan(ctx, "DataStore.IncrementBadgeRequests")
	defer span.End()

	db := ds.db.Gorm(ctx)
	res := db.Exec(IncrementBadgeRequestsQuery, db.NowFunc(), globalStatsID)
	if res.Error != nil {
		return fail(span, res.Error, "increment badge requests failed")
	}
	if res.RowsAffected > 0 {
		return nil
	}
	seed := &GlobalStats{ID: globalStatsID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
		return fail(span, err, "seed global stats failed")
	}
	if err := db.Exec(IncrementBadgeRequestsQuery, db.NowFunc(), globalStatsID).Error; err != nil {
		return fail(span, err, "increment badge requests failed")
	}
	return nil
}

func (ds *DataStore) BadgeRequests(ctx context.Context) (int64, error) {
	var n int64
	err := ds.db.Gorm(ctx).Model(&GlobalStats{}).
		Where("id = ?", globalStatsID).
		Select("total_badge_requests").
		Scan(&n).Error
	if err != nil {
		return 0, fmt.Errorf("read badge requests failed: %w", err)
	}
	return n, nil
}

// transaction runs fn in a database transaction bound to ctx.
func (ds *DataStore) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return ds.db.Gorm(ctx).Transaction(fn)
}
