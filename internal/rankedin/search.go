package rankedin

import (
	"context"
	"log/slog"
	"strings"

	gh "github.com/google/go-github/v75/github"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/ptr"
)

// Searcher proxies the GitHub search API.
type Searcher interface {
	SearchUsers(ctx context.Context, q string, page, size int) (*gh.UsersSearchResult, error)
	SearchRepositories(ctx context.Context, q string, page, size int) (*gh.RepositoriesSearchResult, error)
	SearchTopics(ctx context.Context, q string, page, size int) (*gh.TopicsSearchResult, error)
}

type SearchArgs struct {
	Query   string
	Type    string
	Page    int
	PerPage int
}

// SearchResult holds one result set per searched type; unsearched types are nil.
type SearchResult struct {
	Users        *gh.UsersSearchResult        `json:"users,omitempty"`
	Repositories *gh.RepositoriesSearchResult `json:"repositories,omitempty"`
	Topics       *gh.TopicsSearchResult       `json:"topics,omitempty"`
}

type Search struct {
	s Searcher
}

func NewSearch(s Searcher) *Search { return &Search{s: s} }

// Find runs the requested searches concurrently. A failing search yields an
// empty result set instead of an error.
func (s *Search) Find(ctx context.Context, args SearchArgs) (*SearchResult, error) {
	q := strings.TrimSpace(args.Query)
	if q == "" {
		return nil, badRequest("Search query is required")
	}
	typ := strings.ToLower(args.Type)
	if typ == "" {
		typ = "all"
	}
	switch typ {
	case "all", "users", "repos", "topics":
	default:
		return nil, badRequest("Invalid type. Must be users, repos, topics, or all")
	}
	want := func(t string) bool { return typ == "all" || typ == t }

	res := &SearchResult{}
	var g errgroup.Group
	if want("users") {
		g.Go(func() error {
			r, err := s.s.SearchUsers(ctx, q, args.Page, args.PerPage)
			if err != nil {
				slog.WarnContext(ctx, "user search failed", "q", q, "error", err)
				r = &gh.UsersSearchResult{Total: ptr.To(0), Users: []*gh.User{}}
			}
			res.Users = r
			return nil
		})
	}
	if want("repos") {
		g.Go(func() error {
			r, err := s.s.SearchRepositories(ctx, q, args.Page, args.PerPage)
			if err != nil {
				slog.WarnContext(ctx, "repository search failed", "q", q, "error", err)
				r = &gh.RepositoriesSearchResult{Total: ptr.To(0), Repositories: []*gh.Repository{}}
			}
			res.Repositories = r
			return nil
		})
	}
	if want("topics") {
		g.Go(func() error {
			r, err := s.s.SearchTopics(ctx, q, args.Page, args.PerPage)
			if err != nil {
				slog.WarnContext(ctx, "topic search failed", "q", q, "error", err)
				r = &gh.TopicsSearchResult{Total: ptr.To(0), Topics: []*gh.TopicResult{}}
			}
			res.Topics = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}
