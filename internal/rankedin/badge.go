package rankedin

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"rankedin.shikanime.studio/internal/database"
)

// BadgeStats is what a user's rank badge shows.
type BadgeStats struct {
	Username    string    `json:"username"`
	Name        string    `json:"name"`
	Rank        int64     `json:"rank"`
	TotalUsers  int64     `json:"totalUsers"`
	Percentile  int64     `json:"percentile"`
	TotalStars  int64     `json:"totalStars"`
	Followers   int64     `json:"followers"`
	PublicRepos int64     `json:"publicRepos"`
	Location    string    `json:"location"`
	Company     string    `json:"company"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Percentile is the share of users ranked at or below rank, rounded to a whole percent.
func Percentile(rank, total int64) int64 {
	if total <= 0 {
		return 0
	}
	return int64(math.Round(float64(total-rank+1) / float64(total) * 100))
}

type Badges struct {
	ds *DataStore
}

func NewBadges(ds *DataStore) *Badges { return &Badges{ds: ds} }

// Stats looks up a tracked user's badge. It does not count the request; call
// Served once the badge has been rendered.
func (b *Badges) Stats(ctx context.Context, username string) (*BadgeStats, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, badRequest("Username parameter is required. Use ?username=yourusername or ?name=yourusername")
	}

	u, err := b.ds.GetUser(ctx, username)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, notFound("User '%s' not found in our rankings. Please visit our website to add this user.", username)
		}
		return nil, err
	}
	// Badges rank on stars alone, without the follower tie-break.
	rank, err := b.ds.Rank(ctx, RankArgs{Kind: KindUser, Metric: u.TotalStars})
	if err != nil {
		return nil, err
	}
	total, err := b.ds.CountUsers(ctx)
	if err != nil {
		return nil, err
	}

	return &BadgeStats{
		Username:    u.Username,
		Name:        u.Name,
		Rank:        rank,
		TotalUsers:  total,
		Percentile:  Percentile(rank, total),
		TotalStars:  u.TotalStars,
		Followers:   u.Followers,
		PublicRepos: u.PublicRepos,
		Location:    u.Location,
		Company:     u.Company,
		LastUpdated: u.UpdatedAt,
	}, nil
}

// Served counts one badge request. A failure to count is only logged.
func (b *Badges) Served(ctx context.Context, s *BadgeStats) {
	if err := b.ds.IncrementBadgeRequests(ctx); err != nil {
		slog.WarnContext(ctx, "badge request not counted", "username", s.Username, "error", err)
	}
}

type BadgeStyle string

const (
	StyleDefault BadgeStyle = "default"
	StyleFlat    BadgeStyle = "flat"
	StylePlastic BadgeStyle = "plastic"
)

// ParseBadgeStyle falls back to StyleDefault for unknown names.
func ParseBadgeStyle(s string) BadgeStyle {
	switch st := BadgeStyle(strings.ToLower(s)); st {
	case StyleFlat, StylePlastic:
		return st
	}
	return StyleDefault
}

type badgePalette struct {
	From, To   string
	Shine      bool
	Pill       string
	Username   string
	Stars      string
	Percentile string
}

var palettes = map[BadgeStyle]badgePalette{
	StyleDefault: {From: "#1e293b", To: "#334155", Pill: "#3b82f6", Username: "#f1f5f9", Stars: "#64748b", Percentile: "#3b82f6"},
	StyleFlat:    {From: "#555", To: "#333", Pill: "#4c1", Username: "white", Stars: "#ccc", Percentile: "#4c1"},
	StylePlastic: {From: "#dfb317", To: "#f59e0b", Shine: true, Pill: "#4c1", Username: "#000", Stars: "#000", Percentile: "#4c1"},
}

var badgeTemplate = template.Must(template.New("badge").Parse(`<svg width="320" height="28" xmlns="http://www.w3.org/2000/svg">
  <defs>
    <linearGradient id="gradient" x1="0%" y1="0%" x2="100%" y2="0%">
      <stop offset="0%" style="stop-color:{{.P.From}};stop-opacity:1"/>
      <stop offset="100%" style="stop-color:{{.P.To}};stop-opacity:1"/>
    </linearGradient>
{{- if .P.Shine}}
    <linearGradient id="shine" x1="0%" y1="0%" x2="0%" y2="100%">
      <stop offset="0%" style="stop-color:#fff;stop-opacity:0.3"/>
      <stop offset="50%" style="stop-color:#fff;stop-opacity:0"/>
      <stop offset="100%" style="stop-color:#000;stop-opacity:0.1"/>
    </linearGradient>
{{- end}}
  </defs>
  <rect width="320" height="28" rx="6" fill="url(#gradient)"/>
{{- if .P.Shine}}
  <rect width="320" height="28" rx="6" fill="url(#shine)"/>
{{- end}}
  <rect x="8" y="6" width="50" height="16" rx="8" fill="{{.P.Pill}}"/>
  <text x="33" y="17" text-anchor="middle" font-family="Arial, sans-serif" font-size="10" font-weight="bold" fill="white">#{{.Rank}}</text>
  <text x="70" y="17" font-family="Arial, sans-serif" font-size="11" font-weight="bold" fill="{{.P.Username}}">{{.Username}}</text>
  <text x="180" y="17" font-family="Arial, sans-serif" font-size="10" fill="{{.P.Stars}}">⭐ {{.Stars}} stars</text>
  <text x="280" y="17" font-family="Arial, sans-serif" font-size="10" fill="{{.P.Percentile}}" text-anchor="end">Top {{.Percentile}}%</text>
</svg>
`))

var svgEscaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	"&", "&amp;",
	"'", "&#39;",
	`"`, "&quot;",
)

// EscapeSVG escapes text for use inside SVG markup.
func EscapeSVG(s string) string { return svgEscaper.Replace(s) }

var numbers = message.NewPrinter(language.English)

// RenderSVG draws a 320x28 badge. Unknown styles render as StyleDefault.
func RenderSVG(s *BadgeStats, style BadgeStyle) ([]byte, error) {
	p, ok := palettes[style]
	if !ok {
		p = palettes[StyleDefault]
	}
	var buf bytes.Buffer
	err := badgeTemplate.Execute(&buf, struct {
		P          badgePalette
		Rank       string
		Username   string
		Stars      string
		Percentile int64
	}{
		P:          p,
		Rank:       numbers.Sprintf("%d", s.Rank),
		Username:   EscapeSVG(s.Username),
		Stars:      numbers.Sprintf("%d", s.TotalStars),
		Percentile: s.Percentile,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
