package rankedin

import (
	"context"
	"regexp"
	"strings"

	"rankedin.shikanime.studio/internal/database"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Subscribe adds an email to the newsletter list. Emails are stored lowercase.
func (ds *DataStore) Subscribe(ctx context.Context, email string) (*NewsletterSubscriber, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, badRequest("Email is required")
	}
	if !emailPattern.MatchString(email) {
		return nil, badRequest("Invalid email format")
	}

	ctx, span := startSpan(ctx, "DataStore.Subscribe")
	defer span.End()

	sub := &NewsletterSubscriber{Email: email, IsActive: true}
	if err := ds.db.Gorm(ctx).Create(sub).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, conflict(err, "Email is already subscribed to the newsletter")
		}
		return nil, fail(span, err, "create subscriber failed")
	}
	return sub, nil
}

func (ds *DataStore) CountSubscribers(ctx context.Context) (int64, error) {
	var n int64
	if err := ds.db.Gorm(ctx).Model(&NewsletterSubscriber{}).Where("is_active = ?", true).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
