package github

import (
	"context"
	"fmt"

	"github.com/google/go-github/v75/github"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// SearchUsers proxies the GitHub user search.
func (c *Client) SearchUsers(ctx context.Context, q string, page, size int) (*github.UsersSearchResult, error) {
	ctx, span := otel.Tracer("rankedin/github").Start(ctx, "GitHub.SearchUsers")
	span.SetAttributes(attribute.String("q", q))
	defer span.End()
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	res, _, err := c.c.Search.Users(ctx, q, searchOptions(page, size))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("search users failed: %w", err)
	}
	return res, nil
}

// SearchRepositories proxies the GitHub repository search, most starred first.
func (c *Client) SearchRepositories(ctx context.Context, q string, page, size int) (*github.RepositoriesSearchResult, error) {
	ctx, span := otel.Tracer("rankedin/github").Start(ctx, "GitHub.SearchRepositories")
	span.SetAttributes(attribute.String("q", q))
	defer span.End()
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	opts := searchOptions(page, size)
	opts.Sort, opts.Order = "stars", "desc"
	res, _, err := c.c.Search.Repositories(ctx, q, opts)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("search repositories failed: %w", err)
	}
	return res, nil
}

// SearchTopics proxies the GitHub topic search.
func (c *Client) SearchTopics(ctx context.Context, q string, page, size int) (*github.TopicsSearchResult, error) {
	ctx, span := otel.Tracer("rankedin/github").Start(ctx, "GitHub.SearchTopics")
	span.SetAttributes(attribute.String("q", q))
	defer span.End()
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	res, _, err := c.c.Search.Topics(ctx, q, searchOptions(page, size))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("search topics failed: %w", err)
	}
	return res, nil
}

func searchOptions(page, size int) *github.SearchOptions {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > perPage {
		size = 10
	}
	return &github.SearchOptions{ListOptions: github.ListOptions{Page: page, PerPage: size}}
}
