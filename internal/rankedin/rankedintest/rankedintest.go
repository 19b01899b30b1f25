// Package rankedintest provides an in-memory database and a fake GitHub for tests.
package rankedintest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	gh "github.com/google/go-github/v75/github"
	"github.com/google/uuid"
	"k8s.io/utils/ptr"
	"rankedin.shikanime.studio/internal/database"
	"rankedin.shikanime.studio/internal/rankedin/github"
)

// NewDatabase opens a private in-memory SQLite database migrated with models.
func NewDatabase(t testing.TB, models ...any) *database.Database {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, "sqlite://file:"+uuid.NewString()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mg, err := database.NewMigrator(db, models...)
	if err != nil {
		t.Fatalf("new migrator: %v", err)
	}
	if err := mg.Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// GitHub is an in-memory stand-in for the GitHub API. Unknown users and
// repositories are reported as github.ErrNotFound.
type GitHub struct {
	mu sync.Mutex

	Users      map[string]*github.UserDetails
	UserStars  map[string]int64
	Repos      map[string]*github.RepositoryDetails
	Topics     map[string]*github.TopicDetails
	TopicErr   error
	UserErr    error
	SearchErr  error
	Calls      int
	BeforeUser func(username string)
}

func NewGitHub() *GitHub {
	return &GitHub{
		Users:     map[string]*github.UserDetails{},
		UserStars: map[string]int64{},
		Repos:     map[string]*github.RepositoryDetails{},
		Topics:    map[string]*github.TopicDetails{},
	}
}

func (f *GitHub) call() {
	f.mu.Lock()
	f.Calls++
	f.mu.Unlock()
}

// CallCount returns how many metric lookups were made.
func (f *GitHub) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls
}

func (f *GitHub) GetUserDetails(_ context.Context, username string) (*github.UserDetails, error) {
	f.call()
	if f.BeforeUser != nil {
		f.BeforeUser(username)
	}
	if f.UserErr != nil {
		return nil, f.UserErr
	}
	u, ok := f.Users[strings.ToLower(username)]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", username, github.ErrNotFound)
	}
	return u, nil
}

func (f *GitHub) GetUserTotalStars(_ context.Context, username string) int64 {
	return f.UserStars[strings.ToLower(username)]
}

func (f *GitHub) GetRepositoryDetails(_ context.Context, owner, repo string) (*github.RepositoryDetails, error) {
	f.call()
	r, ok := f.Repos[owner+"/"+repo]
	if !ok {
		return nil, fmt.Errorf("repository %s/%s: %w", owner, repo, github.ErrNotFound)
	}
	return r, nil
}

func (f *GitHub) GetTopicDetails(_ context.Context, name string) (*github.TopicDetails, error) {
	f.call()
	if f.TopicErr != nil {
		return nil, f.TopicErr
	}
	return f.Topics[name], nil
}

var ErrSearch = errors.New("search unavailable")

func (f *GitHub) SearchUsers(_ context.Context, q string, _, _ int) (*gh.UsersSearchResult, error) {
	if f.SearchErr != nil {
		return nil, f.SearchErr
	}
	return &gh.UsersSearchResult{Total: ptr.To(1), Users: []*gh.User{{Login: ptr.To(q)}}}, nil
}

func (f *GitHub) SearchRepositories(_ context.Context, q string, _, _ int) (*gh.RepositoriesSearchResult, error) {
	if f.SearchErr != nil {
		return nil, f.SearchErr
	}
	return &gh.RepositoriesSearchResult{Total: ptr.To(1), Repositories: []*gh.Repository{{FullName: ptr.To(q + "/" + q)}}}, nil
}

func (f *GitHub) SearchTopics(_ context.Context, q string, _, _ int) (*gh.TopicsSearchResult, error) {
	if f.SearchErr != nil {
		return nil, f.SearchErr
	}
	return &gh.TopicsSearchResult{Total: ptr.To(1), Topics: []*gh.TopicResult{{Name: ptr.To(q)}}}, nil
}
