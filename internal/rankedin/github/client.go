package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/go-github/v75/github"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
	"k8s.io/utils/ptr"
)

// ErrNotFound is returned when GitHub answers 404 for a user or repository.
var ErrNotFound = errors.New("not found on github")

const perPage = 100

// NewGitHubLimiter returns a rate limiter tuned for authenticated or unauthenticated GitHub API usage.
// The burst holds the hourly budget so a contribution's calls run back to back.
func NewGitHubLimiter(authenticated bool) *rate.Limiter {
	if authenticated {
		slog.Info("Created authenticated GitHub rate limiter", "rate", "5000 requests/hour", "burst", 100)
		return rate.NewLimiter(rate.Every(time.Hour/5000), 100)
	}
	slog.Info("Created unauthenticated GitHub rate limiter", "rate", "60 requests/hour", "burst", 60)
	return rate.NewLimiter(rate.Every(time.Hour/60), 60)
}

type UserDetails struct {
	Login       string
	Name        string
	AvatarURL   string
	Bio         string
	Location    string
	Company     string
	Blog        string
	Followers   int64
	Following   int64
	PublicRepos int64
}

type RepositoryDetails struct {
	Name        string
	FullName    string
	Owner       string
	Description string
	Language    string
	HTMLURL     string
	Stars       int64
	Forks       int64
	Watchers    int64
	OpenIssues  int64
	Size        int64
	Private     bool
}

type TopicDetails struct {
	Name         string
	DisplayName  string
	Description  string
	Score        int64
	Repositories int64
}

// Client wraps the GitHub API client with rate limiting.
type Client struct {
	c *github.Client
	l *rate.Limiter
}

// GitHubClientOptions configures the GitHub client.
type GitHubClientOptions struct {
	token      string
	limiter    *rate.Limiter
	baseURL    string
	httpClient *http.Client
}

// GitHubClientOption applies a configuration to GitHubClientOptions.
type GitHubClientOption func(*GitHubClientOptions)

// WithToken sets the personal access token for authenticated requests.
func WithToken(token string) GitHubClientOption {
	return func(o *GitHubClientOptions) { o.token = token }
}

// WithLimiter sets the rate limiter used for API calls.
func WithLimiter(l *rate.Limiter) GitHubClientOption {
	return func(o *GitHubClientOptions) { o.limiter = l }
}

// WithBaseURL points the client at another API root, such as GitHub Enterprise.
func WithBaseURL(u string) GitHubClientOption {
	return func(o *GitHubClientOptions) { o.baseURL = u }
}

func WithHTTPClient(hc *http.Client) GitHubClientOption {
	return func(o *GitHubClientOptions) { o.httpClient = hc }
}

// NewClient constructs a GitHub Client with the given options.
func NewClient(opts ...GitHubClientOption) (*Client, error) {
	var o GitHubClientOptions
	for _, opt := range opts {
		opt(&o)
	}
	gc := github.NewClient(o.httpClient)
	if o.token != "" {
		slog.Info("Using authenticated GitHub client")
		gc = gc.WithAuthToken(o.token)
	} else {
		slog.Warn("Using unauthenticated GitHub client (rate limited)")
	}
	if o.baseURL != "" {
		u, err := url.Parse(o.baseURL)
		if err != nil || u.Scheme == "" {
			return nil, fmt.Errorf("invalid github base url %q", o.baseURL)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		gc.BaseURL = u
	}
	if o.limiter == nil {
		o.limiter = NewGitHubLimiter(o.token != "")
	}
	return &Client{c: gc, l: o.limiter}, nil
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.l.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

// GetUserDetails fetches a user profile. It returns ErrNotFound when the login does not exist.
func (c *Client) GetUserDetails(ctx context.Context, username string) (*UserDetails, error) {
	tracer := otel.Tracer("rankedin/github")
	ctx, span := tracer.Start(ctx, "GitHub.GetUserDetails")
	span.SetAttributes(attribute.String("username", username))
	defer span.End()

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	u, _, err := c.c.Users.Get(ctx, username)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "get user failed")
		return nil, fmt.Errorf("get user %s failed: %w", username, err)
	}
	return &UserDetails{
		Login:       u.GetLogin(),
		Name:        u.GetName(),
		AvatarURL:   u.GetAvatarURL(),
		Bio:         u.GetBio(),
		Location:    u.GetLocation(),
		Company:     u.GetCompany(),
		Blog:        u.GetBlog(),
		Followers:   int64(ptr.Deref(u.Followers, 0)),
		Following:   int64(ptr.Deref(u.Following, 0)),
		PublicRepos: int64(ptr.Deref(u.PublicRepos, 0)),
	}, nil
}

// GetUserTotalStars sums stargazers over every repository the user owns.
// It never fails: errors are logged and the sum so far is discarded for 0.
func (c *Client) GetUserTotalStars(ctx context.Context, username string) int64 {
	tracer := otel.Tracer("rankedin/github")
	ctx, span := tracer.Start(ctx, "GitHub.GetUserTotalStars")
	span.SetAttributes(attribute.String("username", username))
	defer span.End()

	var total int64
	opts := &github.RepositoryListByUserOptions{
		Type:        "owner",
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	for {
		if err := c.wait(ctx); err != nil {
			slog.WarnContext(ctx, "total stars unavailable", "username", username, "error", err)
			return 0
		}
		repos, resp, err := c.c.Repositories.ListByUser(ctx, username, opts)
		if err != nil {
			span.RecordError(err)
			slog.WarnContext(ctx, "total stars unavailable", "username", username, "error", err)
			return 0
		}
		for _, r := range repos {
			total += int64(ptr.Deref(r.StargazersCount, 0))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	span.SetAttributes(attribute.Int64("total_stars", total))
	return total
}

// GetRepositoryDetails fetches one repository. It returns ErrNotFound when it does not exist.
func (c *Client) GetRepositoryDetails(ctx context.Context, owner, repo string) (*RepositoryDetails, error) {
	tracer := otel.Tracer("rankedin/github")
	ctx, span := tracer.Start(ctx, "GitHub.GetRepositoryDetails")
	span.SetAttributes(attribute.String("owner", owner), attribute.String("repo", repo))
	defer span.End()

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	r, _, err := c.c.Repositories.Get(ctx, owner, repo)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("repository %s/%s: %w", owner, repo, ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "get repository failed")
		return nil, fmt.Errorf("get repository %s/%s failed: %w", owner, repo, err)
	}
	return &RepositoryDetails{
		Name:        r.GetName(),
		FullName:    r.GetFullName(),
		Owner:       r.GetOwner().GetLogin(),
		Description: r.GetDescription(),
		Language:    r.GetLanguage(),
		HTMLURL:     r.GetHTMLURL(),
		Stars:       int64(ptr.Deref(r.StargazersCount, 0)),
		Forks:       int64(ptr.Deref(r.ForksCount, 0)),
		Watchers:    int64(ptr.Deref(r.WatchersCount, 0)),
		OpenIssues:  int64(ptr.Deref(r.OpenIssuesCount, 0)),
		Size:        int64(ptr.Deref(r.Size, 0)),
		Private:     ptr.Deref(r.Private, false),
	}, nil
}

// GetTopicDetails scores a topic from the first page of its most starred
// repositories. It returns nil, nil when no repository carries the topic.
func (c *Client) GetTopicDetails(ctx context.Context, name string) (*TopicDetails, error) {
	tracer := otel.Tracer("rankedin/github")
	ctx, span := tracer.Start(ctx, "GitHub.GetTopicDetails")
	span.SetAttributes(attribute.String("topic", name))
	defer span.End()

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	res, _, err := c.c.Search.Repositories(ctx, "topic:"+name, &github.SearchOptions{
		Sort:        "stars",
		Order:       "desc",
		ListOptions: github.ListOptions{PerPage: perPage},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search topic failed")
		return nil, fmt.Errorf("search topic %s failed: %w", name, err)
	}
	count := int64(ptr.Deref(res.Total, 0))
	if count == 0 {
		return nil, nil
	}
	var score int64
	for _, r := range res.Repositories {
		score += int64(ptr.Deref(r.StargazersCount, 0))
	}
	return &TopicDetails{
		Name:         name,
		DisplayName:  DisplayName(name),
		Description:  "A collection of repositories related to " + name,
		Score:        score,
		Repositories: count,
	}, nil
}

// DisplayName upper-cases the first letter of a topic name.
func DisplayName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if size == 0 || r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}
