package rankedin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"k8s.io/utils/ptr"
	"rankedin.shikanime.studio/internal/database"
	"rankedin.shikanime.studio/internal/rankedin/github"
)

// MetricSource fetches the raw metrics that entities are ranked by.
type MetricSource interface {
	GetUserDetails(ctx context.Context, username string) (*github.UserDetails, error)
	GetUserTotalStars(ctx context.Context, username string) int64
	GetRepositoryDetails(ctx context.Context, owner, repo string) (*github.RepositoryDetails, error)
	GetTopicDetails(ctx context.Context, name string) (*github.TopicDetails, error)
}

// RankInfo describes where a new entity landed. Only the fields of its kind are set.
type RankInfo struct {
	Type         string `json:"type"`
	Position     int64  `json:"position"`
	TotalStars   *int64 `json:"totalStars,omitempty"`
	Followers    *int64 `json:"followers,omitempty"`
	Stars        *int64 `json:"stars,omitempty"`
	Forks        *int64 `json:"forks,omitempty"`
	Score        *int64 `json:"score,omitempty"`
	Repositories *int64 `json:"repositories,omitempty"`
}

// Contribution is the result of adding an entity to the rankings.
type Contribution struct {
	Kind     Kind     `json:"-"`
	Message  string   `json:"message"`
	Data     any      `json:"data"`
	Rank     int64    `json:"rank"`
	RankInfo RankInfo `json:"rankInfo"`
	// Degraded is set when a topic was stored with zeroed metrics because GitHub failed.
	Degraded bool `json:"degraded,omitempty"`
}

// Contributor runs the contribution pipeline: duplicate check, metric
// fetch, insert, then rank report.
type Contributor struct {
	ds  *DataStore
	src MetricSource
}

func NewContributor(ds *DataStore, src MetricSource) *Contributor {
	return &Contributor{ds: ds, src: src}
}

// Contribute adds the entity named by identifier. Errors match ErrBadRequest,
// ErrNotFound or ErrConflict when the client is at fault.
func (c *Contributor) Contribute(ctx context.Context, kind Kind, identifier string) (*Contribution, error) {
	tracer := otel.Tracer("rankedin/contribute")
	ctx, span := tracer.Start(ctx, "Contributor.Contribute")
	span.SetAttributes(attribute.String("kind", string(kind)), attribute.String("identifier", identifier))
	defer span.End()

	identifier = strings.TrimSpace(identifier)
	if kind == "" || identifier == "" {
		return nil, badRequest("Type and identifier are required")
	}
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}

	var (
		res *Contribution
		err error
	)
	switch kind {
	case KindUser:
		res, err = c.contributeUser(ctx, strings.ToLower(identifier))
	case KindRepo:
		res, err = c.contributeRepository(ctx, identifier)
	case KindTopic:
		res, err = c.contributeTopic(ctx, strings.ToLower(identifier))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "contribute failed")
		return nil, err
	}
	slog.InfoContext(ctx, "entity contributed",
		"kind", kind, "identifier", identifier, "rank", res.Rank, "degraded", res.Degraded)
	return res, nil
}

// insertErr maps a failed insert. A unique violation means another request
// stored the same identity after our duplicate check.
func insertErr(err error, kind Kind, id string) error {
	if database.IsUniqueViolation(err) {
		return conflict(err, "%s %s already exists in rankings", kind.Label(), id)
	}
	return err
}

func (c *Contributor) checkDuplicate(ctx context.Context, kind Kind, id string) error {
	var (
		found bool
		err   error
	)
	switch kind {
	case KindUser:
		found, err = c.ds.UserExists(ctx, id)
	case KindRepo:
		found, err = c.ds.RepositoryExists(ctx, id)
	case KindTopic:
		found, err = c.ds.TopicExists(ctx, id)
	}
	if err != nil {
		return err
	}
	if found {
		return conflict(nil, "%s %s already exists in rankings", kind.Label(), id)
	}
	return nil
}

func (c *Contributor) contributeUser(ctx context.Context, username string) (*Contribution, error) {
	if err := c.checkDuplicate(ctx, KindUser, username); err != nil {
		return nil, err
	}

	details, err := c.src.GetUserDetails(ctx, username)
	if err != nil {
		if errors.Is(err, github.ErrNotFound) {
			return nil, notFound("User %s not found on GitHub", username)
		}
		return nil, fmt.Errorf("fetch user %s failed: %w", username, err)
	}
	totalStars := c.src.GetUserTotalStars(ctx, username)

	login := strings.ToLower(details.Login)
	if login == "" {
		login = username
	}
	u := &User{
		Username:    login,
		Name:        details.Name,
		AvatarURL:   details.AvatarURL,
		Bio:         details.Bio,
		Location:    details.Location,
		Company:     details.Company,
		Blog:        details.Blog,
		Followers:   details.Followers,
		Following:   details.Following,
		PublicRepos: details.PublicRepos,
		TotalStars:  totalStars,
	}
	if err := c.ds.CreateUser(ctx, u); err != nil {
		return nil, insertErr(err, KindUser, username)
	}

	rank, err := c.ds.Rank(ctx, RankArgs{Kind: KindUser, Metric: u.TotalStars, TieBreak: ptr.To(u.Followers)})
	if err != nil {
		return nil, err
	}
	return &Contribution{
		Kind:    KindUser,
		Message: fmt.Sprintf("User %s successfully added to rankings", username),
		Data:    u,
		Rank:    rank,
		RankInfo: RankInfo{
			Type:       "user",
			Position:   rank,
			TotalStars: ptr.To(u.TotalStars),
			Followers:  ptr.To(u.Followers),
		},
	}, nil
}

// splitFullName splits owner/repo into exactly two non-empty parts.
func splitFullName(fullName string) (string, string, bool) {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (c *Contributor) contributeRepository(ctx context.Context, fullName string) (*Contribution, error) {
	owner, name, ok := splitFullName(fullName)
	if !ok {
		return nil, badRequest("Valid repository full name (owner/repo) is required")
	}
	if err := c.checkDuplicate(ctx, KindRepo, fullName); err != nil {
		return nil, err
	}

	details, err := c.src.GetRepositoryDetails(ctx, owner, name)
	if err != nil {
		if errors.Is(err, github.ErrNotFound) {
			return nil, notFound("Repository %s not found on GitHub", fullName)
		}
		return nil, fmt.Errorf("fetch repository %s failed: %w", fullName, err)
	}

	r := &Repository{
		Name:        details.Name,
		FullName:    details.FullName,
		Owner:       details.Owner,
		Description: details.Description,
		Language:    details.Language,
		HTMLURL:     details.HTMLURL,
		Stars:       details.Stars,
		Forks:       details.Forks,
		Watchers:    details.Watchers,
		OpenIssues:  details.OpenIssues,
		Size:        details.Size,
		IsPrivate:   details.Private,
	}
	if r.FullName == "" {
		r.FullName, r.Owner, r.Name = fullName, owner, name
	}
	if err := c.ds.CreateRepository(ctx, r); err != nil {
		return nil, insertErr(err, KindRepo, fullName)
	}

	rank, err := c.ds.Rank(ctx, RankArgs{Kind: KindRepo, Metric: r.Stars})
	if err != nil {
		return nil, err
	}
	return &Contribution{
		Kind:    KindRepo,
		Message: fmt.Sprintf("Repository %s successfully added to rankings", fullName),
		Data:    r,
		Rank:    rank,
		RankInfo: RankInfo{
			Type:     "repository",
			Position: rank,
			Stars:    ptr.To(r.Stars),
			Forks:    ptr.To(r.Forks),
		},
	}, nil
}

// contributeTopic never fails on GitHub errors: the topic is stored with a
// zero score and zero repositories instead. Users and repositories do not
// get this treatment.
func (c *Contributor) contributeTopic(ctx context.Context, name string) (*Contribution, error) {
	if err := c.checkDuplicate(ctx, KindTopic, name); err != nil {
		return nil, err
	}

	t := &Topic{
		Name:        name,
		DisplayName: github.DisplayName(name),
		Description: "Topic: " + name,
	}
	degraded := false
	details, err := c.src.GetTopicDetails(ctx, name)
	switch {
	case err != nil:
		degraded = true
		slog.WarnContext(ctx, "topic metrics unavailable, storing defaults", "topic", name, "error", err)
	case details != nil:
		t.DisplayName = details.DisplayName
		t.Description = details.Description
		t.Score = details.Score
		t.Repositories = details.Repositories
	}
	if err := c.ds.CreateTopic(ctx, t); err != nil {
		return nil, insertErr(err, KindTopic, name)
	}

	rank, err := c.ds.Rank(ctx, RankArgs{Kind: KindTopic, Metric: t.Score})
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("Topic %s successfully added to rankings", name)
	if degraded {
		msg = fmt.Sprintf("Topic %s added to rankings with default values", name)
	}
	return &Contribution{
		Kind:     KindTopic,
		Message:  msg,
		Data:     t,
		Rank:     rank,
		Degraded: degraded,
		RankInfo: RankInfo{
			Type:         "topic",
			Position:     rank,
			Score:        ptr.To(t.Score),
			Repositories: ptr.To(t.Repositories),
		},
	}, nil
}
