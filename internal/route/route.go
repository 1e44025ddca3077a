// Package route classifies a normalized Discord API path into a stable
// route identity: a masked key used to group requests into the same
// rate-limit bucket before Discord's own bucket hash has been learned, and
// a human-readable name used for logging and metrics labels.
//
// Masking keeps cardinality bounded: a snowflake ID, a reaction emoji, or a
// webhook token embedded in the path is replaced with a placeholder so that
// every channel's "post message" requests classify to the same family.
package route

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Route is the result of classifying one request's method and path.
type Route struct {
	// Key is the masked "METHOD:/pattern" identity used to bind requests to
	// a bucket actor before the real Discord bucket is known. Two requests
	// with the same Key share a bucket until headers teach otherwise.
	Key string
	// Name is a short, bounded-cardinality label for logs and metrics
	// (e.g. "Channel message"). Unrecognized paths classify to Unknown.
	Name string
}

// UnknownName is the Name given to a path this classifier does not
// recognize; Classify never fails. Proxying an unknown path is not itself an error: Discord
// may add routes this table hasn't caught up with yet, and a conservative
// per-route fallback bucket still rate-limits it safely.
const UnknownName = "Unknown path!"

var (
	snowflakeRE    = regexp.MustCompile(`\d{17,20}`)
	reactionsRE    = regexp.MustCompile(`/reactions/[^/]+(/[^/]+)?`)
	webhookTokenRE = regexp.MustCompile(`(/webhooks/:id)/[^/?]+`)
	inviteCodeRE   = regexp.MustCompile(`^/invites/[^/?]+`)
	templateCodeRE = regexp.MustCompile(`(/guilds/:id/templates)/[^/?]+`)
)

// Classify masks IDs out of path (already stripped of the "/api[/vN]"
// prefix, see proxy.NormalizePath) and looks up the resulting family in the
// route table.
func Classify(method, path string) Route {
	masked, lastSnowflake := maskPath(path)

	// maskPath leaves the interaction token in place, so any token between
	// "/interactions/:id/" and "/callback" collapses to the one route here.
	if strings.HasPrefix(masked, "/interactions/:id/") && strings.HasSuffix(masked, "/callback") {
		return Route{Key: method + ":/interactions/:id/:token/callback", Name: "Interaction callback"}
	}

	key := masked
	if method == "DELETE" && masked == "/channels/:id/messages/:id" && lastSnowflake != 0 {
		if isOldMessage(lastSnowflake) {
			key += "#old"
		}
	}

	name, ok := names[masked]
	if !ok {
		return Route{Key: method + ":" + key, Name: UnknownName}
	}
	return Route{Key: method + ":" + key, Name: name}
}

// maskPath replaces snowflake IDs, reaction emoji, webhook tokens, and
// invite/template codes with stable placeholders, returning the masked path
// and the last snowflake found (0 if none), used for the stale-message-delete
// special case. Invite and guild-template codes are short alphanumeric
// strings, not snowflakes, so they need their own rule rather than falling
// out of snowflakeRE.
func maskPath(path string) (string, int64) {
	var last int64
	masked := snowflakeRE.ReplaceAllStringFunc(path, func(s string) string {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			last = n
		}
		return ":id"
	})
	masked = reactionsRE.ReplaceAllString(masked, "/reactions/:emoji")
	masked = webhookTokenRE.ReplaceAllString(masked, "$1/:token")
	masked = inviteCodeRE.ReplaceAllString(masked, "/invites/:code")
	masked = templateCodeRE.ReplaceAllString(masked, "$1/:code")
	return masked, last
}

// discordEpoch is 2015-01-01T00:00:00.000Z in milliseconds, the zero point
// Discord snowflake timestamps are offset from.
const discordEpoch = 1420070400000

// isOldMessage reports whether a message snowflake is old enough (>14 days)
// that Discord routes its deletion through a separate, stricter bucket.
func isOldMessage(snowflake int64) bool {
	createdMillis := (snowflake >> 22) + discordEpoch
	age := time.Since(time.UnixMilli(createdMillis))
	return age > 14*24*time.Hour
}
