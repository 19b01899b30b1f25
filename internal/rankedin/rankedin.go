package rankedin

import (
	"context"
	"fmt"

	"rankedin.shikanime.studio/internal/config"
	"rankedin.shikanime.studio/internal/database"
	"rankedin.shikanime.studio/internal/rankedin/github"
)

// GitHub is everything RankedIn asks of GitHub.
type GitHub interface {
	MetricSource
	Searcher
}

// RankedIn aggregates the database and GitHub clients used by the application.
type RankedIn struct {
	db   *database.Database
	gh   GitHub
	opts ClientSetOptions
}

// ClientSetOptions holds configuration for initializing RankedIn.
type ClientSetOptions struct {
	store []DataStoreOption
}

// ClientSetOption applies a configuration to ClientSetOptions.
type ClientSetOption func(*ClientSetOptions)

// WithStoreOptions forwards DataStore options.
func WithStoreOptions(opts ...DataStoreOption) ClientSetOption {
	return func(o *ClientSetOptions) { o.store = append(o.store, opts...) }
}

func NewForConfig(ctx context.Context, cfg *config.Config) (*RankedIn, error) {
	ghOpts := []github.GitHubClientOption{github.WithBaseURL(cfg.GetGitHubBaseURL())}
	if token := cfg.GetGitHubToken(); token != "" {
		ghOpts = append(ghOpts,
			github.WithToken(token),
			github.WithLimiter(github.NewGitHubLimiter(true)),
		)
	}
	gh, err := github.NewClient(ghOpts...)
	if err != nil {
		return nil, err
	}
	db, err := database.NewForConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(db, gh, WithStoreOptions(WithMaxPageSize(cfg.GetMaxPageSize()))), nil
}

// New constructs a RankedIn with the given database, GitHub source and options.
func New(db *database.Database, gh GitHub, opts ...ClientSetOption) *RankedIn {
	var o ClientSetOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &RankedIn{db: db, gh: gh, opts: o}
}

func (r *RankedIn) Database() *database.Database { return r.db }

func (r *RankedIn) Store() *DataStore { return NewDataStore(r.db, r.opts.store...) }

func (r *RankedIn) Contributor() *Contributor { return NewContributor(r.Store(), r.gh) }

func (r *RankedIn) Badges() *Badges { return NewBadges(r.Store()) }

func (r *RankedIn) Maintenance() *Maintenance { return NewMaintenance(r.Store()) }

func (r *RankedIn) Search() *Search { return NewSearch(r.gh) }

func (r *RankedIn) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping verifies that the database is reachable.
func (r *RankedIn) Ping(ctx context.Context) error {
	if r.db == nil {
		return fmt.Errorf("datastore not configured")
	}
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("datastore ping failed: %w", err)
	}
	return nil
}
