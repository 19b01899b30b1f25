package rankedin

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// Kind is the type of ranked entity.
type Kind string

const (
	KindUser  Kind = "user"
	KindRepo  Kind = "repo"
	KindTopic Kind = "topic"
)

// ParseKind validates a contribution type.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindUser, KindRepo, KindTopic:
		return k, nil
	}
	return "", badRequest("Invalid type. Must be user, repo, or topic")
}

// Label is the human name used in messages, e.g. "Repository".
func (k Kind) Label() string {
	switch k {
	case KindUser:
		return "User"
	case KindRepo:
		return "Repository"
	case KindTopic:
		return "Topic"
	}
	return string(k)
}

// RankArgs selects a leaderboard and the metric to place on it. TieBreak only
// applies to users, as follower count, and is ignored for other kinds.
type RankArgs struct {
	Kind     Kind
	Metric   int64
	TieBreak *int64
}

// Rank returns 1 + the number of rows that rank strictly better than args.
// Rows with equal metric and tie-break share a rank.
func (ds *DataStore) Rank(ctx context.Context, args RankArgs) (int64, error) {
	ctx, span := startSpan(ctx, "DataStore.Rank")
	span.SetAttributes(
		attribute.String("kind", string(args.Kind)),
		attribute.Int64("metric", args.Metric),
		attribute.Bool("tie_break", args.TieBreak != nil),
	)
	defer span.End()

	q := ds.db.Gorm(ctx)
	switch args.Kind {
	case KindUser:
		q = q.Model(&User{})
		if args.TieBreak != nil {
			q = q.Where("total_stars > ? OR (total_stars = ? AND followers > ?)", args.Metric, args.Metric, *args.TieBreak)
		} else {
			q = q.Where("total_stars > ?", args.Metric)
		}
	case KindRepo:
		q = q.Model(&Repository{}).Where("stars > ?", args.Metric)
	case KindTopic:
		q = q.Model(&Topic{}).Where("score > ?", args.Metric)
	default:
		return 0, fmt.Errorf("rank: unknown kind %q", args.Kind)
	}

	var better int64
	if err := q.Count(&better).Error; err != nil {
		return 0, fail(span, err, "rank query failed")
	}
	span.SetAttributes(attribute.Int64("rank", better+1))
	return better + 1, nil
}
