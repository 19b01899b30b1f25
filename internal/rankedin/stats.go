package rankedin

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Stat is one headline figure of GET /stats.
type Stat struct {
	Value       string `json:"value"`
	Raw         int64  `json:"raw"`
	Description string `json:"description"`
}

type Stats struct {
	UsersRanked           Stat `json:"usersRanked"`
	Repositories          Stat `json:"repositories"`
	TotalStars            Stat `json:"totalStars"`
	ActiveTopics          Stat `json:"activeTopics"`
	BadgeRequests         Stat `json:"badgeRequests"`
	NewsletterSubscribers Stat `json:"newsletterSubscribers"`
}

// Humanize abbreviates n as 1.2M or 4.5K.
func Humanize(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return strconv.FormatInt(n, 10)
	}
}

func newStat(n int64, desc string) Stat {
	return Stat{Value: Humanize(n), Raw: n, Description: desc}
}

// Stats reads the site-wide aggregates concurrently.
func (ds *DataStore) Stats(ctx context.Context) (*Stats, error) {
	ctx, span := startSpan(ctx, "DataStore.Stats")
	defer span.End()

	var users, repos, stars, topics, badges, subscribers int64
	g, gctx := errgroup.WithContext(ctx)
	count := func(model any, dst *int64, scopes ...func(*gorm.DB) *gorm.DB) func() error {
		return func() error {
			return ds.db.Gorm(gctx).Model(model).Scopes(scopes...).Count(dst).Error
		}
	}
	g.Go(count(&User{}, &users))
	g.Go(count(&Repository{}, &repos))
	g.Go(count(&Topic{}, &topics))
	g.Go(count(&NewsletterSubscriber{}, &subscribers, func(db *gorm.DB) *gorm.DB {
		return db.Where("is_active = ?", true)
	}))
	g.Go(func() error {
		return ds.db.Gorm(gctx).Model(&Repository{}).Select("COALESCE(SUM(stars), 0)").Scan(&stars).Error
	})
	g.Go(func() error {
		n, err := ds.BadgeRequests(gctx)
		badges = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fail(span, err, "read stats failed")
	}

	return &Stats{
		UsersRanked:           newStat(users, "GitHub developers in our rankings"),
		Repositories:          newStat(repos, "Open source projects tracked"),
		TotalStars:            newStat(stars, "Combined stars across all repos"),
		ActiveTopics:          newStat(topics, "Trending technologies tracked"),
		BadgeRequests:         newStat(badges, "Total badge requests served"),
		NewsletterSubscribers: newStat(subscribers, "Active newsletter subscribers"),
	}, nil
}
