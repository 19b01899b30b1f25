package rankedin

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// ListArgs selects one page of a leaderboard. Zero values take defaults.
type ListArgs struct {
	Page   int
	Limit  int
	Search string
	SortBy string
	Order  string
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type UserPage struct {
	Users      []User     `json:"users"`
	Pagination Pagination `json:"pagination"`
}

type RepositoryPage struct {
	Repositories []Repository `json:"repositories"`
	Pagination   Pagination   `json:"pagination"`
}

type TopicPage struct {
	Topics     []Topic    `json:"topics"`
	Pagination Pagination `json:"pagination"`
}

// listing describes how one table is paged: API sort names to columns,
// and the columns a search term is matched against.
type listing struct {
	name        string
	model       any
	sortColumns map[string]string
	defaultSort string
	search      []string
}

var (
	userListing = listing{
		name:  "users",
		model: &User{},
		sortColumns: map[string]string{
			"totalStars":  "total_stars",
			"followers":   "followers",
			"following":   "following",
			"publicRepos": "public_repos",
			"username":    "username",
			"name":        "name",
			"createdAt":   "created_at",
			"updatedAt":   "updated_at",
		},
		defaultSort: "totalStars",
		search:      []string{"username", "name"},
	}
	repositoryListing = listing{
		name:  "repositories",
		model: &Repository{},
		sortColumns: map[string]string{
			"stars":      "stars",
			"forks":      "forks",
			"watchers":   "watchers",
			"openIssues": "open_issues",
			"name":       "name",
			"fullName":   "full_name",
			"language":   "language",
			"createdAt":  "created_at",
			"updatedAt":  "updated_at",
		},
		defaultSort: "stars",
		search:      []string{"name", "full_name", "owner", "description"},
	}
	topicListing = listing{
		name:  "topics",
		model: &Topic{},
		sortColumns: map[string]string{
			"score":        "score",
			"repositories": "repositories",
			"name":         "name",
			"displayName":  "display_name",
			"createdAt":    "created_at",
			"updatedAt":    "updated_at",
		},
		defaultSort: "score",
		search:      []string{"name", "display_name", "description"},
	}
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// normalize applies defaults and validates sortBy and order.
func (ds *DataStore) normalize(l listing, args ListArgs) (ListArgs, string, error) {
	if args.Page < 1 {
		args.Page = defaultPage
	}
	if args.Limit < 1 {
		args.Limit = defaultLimit
	}
	if args.Limit > ds.maxPage {
		args.Limit = ds.maxPage
	}
	if args.SortBy == "" {
		args.SortBy = l.defaultSort
	}
	col, ok := l.sortColumns[args.SortBy]
	if !ok {
		return args, "", badRequest("Invalid sortBy %q for %s", args.SortBy, l.name)
	}
	args.Order = strings.ToLower(args.Order)
	switch args.Order {
	case "":
		args.Order = "desc"
	case "asc", "desc":
	default:
		return args, "", badRequest("Invalid order %q. Must be asc or desc", args.Order)
	}
	args.Search = strings.TrimSpace(args.Search)
	return args, col, nil
}

func (ds *DataStore) list(ctx context.Context, l listing, args ListArgs, dest any) (*Pagination, error) {
	ctx, span := startSpan(ctx, "DataStore.List")
	span.SetAttributes(attribute.String("table", l.name))
	defer span.End()

	args, col, err := ds.normalize(l, args)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("page", args.Page),
		attribute.Int("limit", args.Limit),
		attribute.String("sort", col+" "+args.Order),
	)

	base := func() *gorm.DB {
		q := ds.db.Gorm(ctx).Model(l.model)
		if args.Search == "" {
			return q
		}
		term := "%" + likeEscaper.Replace(strings.ToLower(args.Search)) + "%"
		conds := make([]string, 0, len(l.search))
		vals := make([]any, 0, len(l.search))
		for _, c := range l.search {
			conds = append(conds, "LOWER("+c+`) LIKE ? ESCAPE '\'`)
			vals = append(vals, term)
		}
		return q.Where(strings.Join(conds, " OR "), vals...)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, fail(span, err, "count "+l.name+" failed")
	}
	err = base().
		Order(fmt.Sprintf("%s %s", col, args.Order)).
		Order("id ASC").
		Offset((args.Page - 1) * args.Limit).
		Limit(args.Limit).
		Find(dest).Error
	if err != nil {
		return nil, fail(span, err, "list "+l.name+" failed")
	}

	pages := int((total + int64(args.Limit) - 1) / int64(args.Limit))
	return &Pagination{Page: args.Page, Limit: args.Limit, Total: total, Pages: pages}, nil
}

func (ds *DataStore) ListUsers(ctx context.Context, args ListArgs) (*UserPage, error) {
	page := &UserPage{Users: []User{}}
	p, err := ds.list(ctx, userListing, args, &page.Users)
	if err != nil {
		return nil, err
	}
	page.Pagination = *p
	return page, nil
}

func (ds *DataStore) ListRepositories(ctx context.Context, args ListArgs) (*RepositoryPage, error) {
	page := &RepositoryPage{Repositories: []Repository{}}
	p, err := ds.list(ctx, repositoryListing, args, &page.Repositories)
	if err != nil {
		return nil, err
	}
	page.Pagination = *p
	return page, nil
}

func (ds *DataStore) ListTopics(ctx context.Context, args ListArgs) (*TopicPage, error) {
	page := &TopicPage{Topics: []Topic{}}
	p, err := ds.list(ctx, topicListing, args, &page.Topics)
	if err != nil {
		return nil, err
	}
	page.Pagination = *p
	return page, nil
}
