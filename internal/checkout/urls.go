package checkout

import (
	"net/url"
	"strings"
)

const (
	successPath = "/success/"
	cancelPath  = "/cancel/"
	englishPath = "/en"
)

// Resolver derives redirect destinations from a request. The bool reports
// whether this resolver applies.
type Resolver func(Request) (Destinations, bool)

// Resolvers returns the destination strategies in priority order. The last one
// always applies.
func Resolvers(siteURL, fallbackOrigin string) []Resolver {
	return []Resolver{
		ExplicitResolver,
		RefererResolver,
		SiteResolver(siteURL),
		FallbackResolver(fallbackOrigin),
	}
}

// ResolveDestinations returns the result of the first resolver that applies.
func ResolveDestinations(req Request, resolvers []Resolver) (Destinations, bool) {
	for _, resolve := range resolvers {
		if d, ok := resolve(req); ok {
			return d, true
		}
	}
	return Destinations{}, false
}

// ExplicitResolver uses the caller's URLs when both are present.
func ExplicitResolver(req Request) (Destinations, bool) {
	success := strings.TrimSpace(req.SuccessURL)
	cancel := strings.TrimSpace(req.CancelURL)
	if success == "" || cancel == "" {
		return Destinations{}, false
	}
	return Destinations{SuccessURL: success, CancelURL: cancel}, true
}

// RefererResolver keeps the shopper on the domain they browsed from. The
// English prefix follows the referring page, not the body locale.
func RefererResolver(req Request) (Destinations, bool) {
	ref := strings.TrimSpace(req.Referer)
	if ref == "" {
		return Destinations{}, false
	}

	u, err := url.Parse(ref)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return Destinations{}, false
	}

	origin := u.Scheme + "://" + u.Host
	return buildDestinations(origin, strings.HasPrefix(u.Path, englishPath+"/")), true
}

func SiteResolver(siteURL string) Resolver {
	origin := strings.TrimRight(strings.TrimSpace(siteURL), "/")
	return func(req Request) (Destinations, bool) {
		if origin == "" {
			return Destinations{}, false
		}
		return buildDestinations(origin, NormalizeLocale(req.Locale) == LocaleEN), true
	}
}

func FallbackResolver(origin string) Resolver {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	return func(req Request) (Destinations, bool) {
		return buildDestinations(origin, NormalizeLocale(req.Locale) == LocaleEN), true
	}
}

func buildDestinations(origin string, english bool) Destinations {
	base := origin
	if english {
		base += englishPath
	}
	return Destinations{
		SuccessURL: base + successPath,
		CancelURL:  base + cancelPath,
	}
}
