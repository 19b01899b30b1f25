package rankedin

import "time"

// User is a ranked GitHub account. Username is stored lowercase.
type User struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"size:255;not null;uniqueIndex:uq_users_username" json:"username"`
	Name        string    `gorm:"not null;default:''" json:"name"`
	AvatarURL   string    `gorm:"column:avatar_url;not null;default:''" json:"avatarUrl"`
	Bio         string    `gorm:"not null;default:''" json:"bio"`
	Location    string    `gorm:"not null;default:''" json:"location"`
	Company     string    `gorm:"not null;default:''" json:"company"`
	Blog        string    `gorm:"not null;default:''" json:"blog"`
	Followers   int64     `gorm:"not null;default:0" json:"followers"`
	Following   int64     `gorm:"not null;default:0" json:"following"`
	PublicRepos int64     `gorm:"not null;default:0" json:"publicRepos"`
	TotalStars  int64     `gorm:"not null;default:0;index:idx_users_total_stars" json:"totalStars"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

type Repository struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	FullName    string    `gorm:"size:255;not null;uniqueIndex:uq_repositories_full_name" json:"fullName"`
	Owner       string    `gorm:"size:255;not null" json:"owner"`
	Description string    `gorm:"not null;default:''" json:"description"`
	Language    string    `gorm:"not null;default:''" json:"language"`
	HTMLURL     string    `gorm:"column:html_url;not null;default:''" json:"htmlUrl"`
	Stars       int64     `gorm:"not null;default:0;index:idx_repositories_stars" json:"stars"`
	Forks       int64     `gorm:"not null;default:0" json:"forks"`
	Watchers    int64     `gorm:"not null;default:0" json:"watchers"`
	OpenIssues  int64     `gorm:"not null;default:0" json:"openIssues"`
	Size        int64     `gorm:"not null;default:0" json:"size"`
	IsPrivate   bool      `gorm:"not null;default:false" json:"isPrivate"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Repository) TableName() string { return "repositories" }

// Topic aggregates the repositories carrying a GitHub topic. Name is stored lowercase.
type Topic struct {
	ID           uint64    `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:255;not null;uniqueIndex:uq_topics_name" json:"name"`
	DisplayName  string    `gorm:"not null;default:''" json:"displayName"`
	Description  string    `gorm:"not null;default:''" json:"description"`
	Featured     bool      `gorm:"not null;default:false" json:"featured"`
	Curated      bool      `gorm:"not null;default:false" json:"curated"`
	Score        int64     `gorm:"not null;default:0;index:idx_topics_score" json:"score"`
	Repositories int64     `gorm:"not null;default:0" json:"repositories"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Topic) TableName() string { return "topics" }

const globalStatsID = "global"

// GlobalStats is a singleton row keyed by "global".
type GlobalStats struct {
	ID                 string    `gorm:"primaryKey;size:32" json:"id"`
	TotalBadgeRequests int64     `gorm:"not null;default:0" json:"totalBadgeRequests"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (GlobalStats) TableName() string { return "global_stats" }

type NewsletterSubscriber struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"size:320;not null;uniqueIndex:uq_newsletter_subscribers_email" json:"email"`
	IsActive  bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"subscribedAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (NewsletterSubscriber) TableName() string { return "newsletter_subscribers" }

// Models lists every table, in creation order.
func Models() []any {
	return []any{&User{}, &Repository{}, &Topic{}, &GlobalStats{}, &NewsletterSubscriber{}}
}
