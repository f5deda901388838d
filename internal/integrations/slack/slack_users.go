package slackbot

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/slack-go/slack"
)

// userNames caches Slack user id -> human name for the employee fallback.
type userNames struct {
	api   slackAPI
	mu    sync.Mutex
	cache map[string]string
}

func newUserNames(api slackAPI) *userNames {
	return &userNames{api: api, cache: make(map[string]string)}
}

// lookup returns the best display name for userID, or "" if Slack cannot
// tell. Failures are not cached so a later message can retry.
func (u *userNames) lookup(ctx context.Context, userID string) string {
	u.mu.Lock()
	name, ok := u.cache[userID]
	u.mu.Unlock()
	if ok {
		return name
	}

	user, err := u.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		log.Printf("slack user-info error user=%s: %v", userID, err)
		return ""
	}
	name = displayName(user)

	u.mu.Lock()
	u.cache[userID] = name
	u.mu.Unlock()
	return name
}

func displayName(user *slack.User) string {
	if user == nil {
		return ""
	}
	for _, n := range []string{user.RealName, user.Profile.RealName, user.Profile.DisplayName, user.Name} {
		if n = strings.TrimSpace(n); n != "" {
			return n
		}
	}
	return ""
}

func isLikelySlackID(val string) bool {
	if len(val) < 9 {
		return false
	}
	for i, r := range val {
		if i == 0 {
			if r != 'U' && r != 'W' {
				return false
			}
			continue
		}
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// UnlikelyUserIDs returns the configured employee ids that do not look like
// Slack user ids, so startup can warn about a mixed-up transport config.
func UnlikelyUserIDs(ids []string) []string {
	var out []string
	for _, id := range ids {
		if !isLikelySlackID(strings.TrimSpace(id)) {
			out = append(out, id)
		}
	}
	return out
}
