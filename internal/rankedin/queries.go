package rankedin

import "strings"

var IncrementBadgeRequestsQuery = strings.Join([]string{
	"UPDATE global_stats",
	"SET total_badge_requests = total_badge_requests + 1, updated_at = ?",
	"WHERE id = ?",
}, " ")

// Duplicate identities, one row per identity value appearing more than once.
var (
	DuplicateUsernamesQuery = strings.Join([]string{
		"SELECT username AS identity, COUNT(*) AS count FROM users",
		"GROUP BY username HAVING COUNT(*) > 1",
		"ORDER BY username",
	}, " ")
	DuplicateRepositoryNamesQuery = strings.Join([]string{
		"SELECT full_name AS identity, COUNT(*) AS count FROM repositories",
		"GROUP BY full_name HAVING COUNT(*) > 1",
		"ORDER BY full_name",
	}, " ")
	DuplicateTopicNamesQuery = strings.Join([]string{
		"SELECT name AS identity, COUNT(*) AS count FROM topics",
		"GROUP BY name HAVING COUNT(*) > 1",
		"ORDER BY name",
	}, " ")
)
