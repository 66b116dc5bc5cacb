package governor

import (
	"errors"
	"strings"
)

// rejectionSignals are matched case-insensitively against error
// messages. The list is deliberately permissive: a false positive only
// costs an extra back-off cycle, while a false negative leaks an
// ungoverned retry storm.
var rejectionSignals = []string{
	"429",
	"too many requests",
	"rate limit",
	"rate-limit",
	"ratelimit",
	"throttl",
	"quota exceeded",
	"slow down",
}

// LooksLikeRejection reports whether the given error carries a signal
// that the external dependency rejected the call for exceeding its own
// limit. It is a pure string heuristic on the error message, plus a
// match on the *RateLimitedError type itself.
func LooksLikeRejection(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRateLimited) {
		return true
	}

	message := strings.ToLower(err.Error())
	for _, signal := range rejectionSignals {
		if strings.Contains(message, signal) {
			return true
		}
	}

	return false
}
