package provider

import (
	"errors"
	"strings"
)

// ErrNoPrimaryKeys is returned by the rotation loop when the registry was
// built without any primary credentials.
var ErrNoPrimaryKeys = errors.New("no primary api keys configured")

// Kind is the closed set of provider failure classes the pipeline reacts to.
// The original error text is kept on the error itself for logging; Kind only
// drives the fallback decision.
type Kind int

const (
	KindOther Kind = iota
	KindRateLimited
	KindAuthFailed
	KindNotConfigured
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindAuthFailed:
		return "auth_failed"
	case KindNotConfigured:
		return "not_configured"
	default:
		return "other"
	}
}

var rateLimitMarkers = []string{
	"429",
	"rate limit",
	"quota",
	"exceeded your current quota",
}

var authMarkers = []string{
	"unauthorized",
	"permission",
	"invalid api key",
	"not found",
	"publisher model",
}

// Classify maps an error onto a Kind by inspecting its message. Provider SDKs
// and raw HTTP responses produce heterogeneous errors, so the markers are
// matched against the lowercased text.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}
	s := strings.ToLower(err.Error())
	for _, m := range rateLimitMarkers {
		if strings.Contains(s, m) {
			return KindRateLimited
		}
	}
	if strings.Contains(s, "api keys configured") {
		return KindNotConfigured
	}
	for _, m := range authMarkers {
		if strings.Contains(s, m) {
			return KindAuthFailed
		}
	}
	return KindOther
}

// ShouldFallback reports whether the primary path is unusable for this error
// and the secondary provider should be tried. Auth and configuration problems
// fall back too, trading observability for availability.
func ShouldFallback(err error) bool {
	return err != nil && Classify(err) != KindOther
}
