// Package urlnorm implements the generic URL normalization steps of §4.1.
// Site handlers may apply further, site-specific canonicalization on top
// of this (e.g. unifying twitter.com/x.com hosts) before calling Normalize
// is not required -- they may call it first and rewrite the result.
package urlnorm

import (
	"net/url"
	"sort"
	"strings"
)

// trackingParamPrefixes and trackingParams together form the deny-list
// applied to query parameters.
var trackingParamPrefixes = []string{"utm_"}

var trackingParams = map[string]struct{}{
	"fbclid": {},
	"gclid":  {},
	"igshid": {},
	"ref":    {},
	"share":  {},
	"source": {},
	"mc_cid": {},
	"mc_eid": {},
	"si":     {},
	"spm":    {},
}

// Normalize implements §4.1: force https, lowercase host, drop default
// port, drop fragment, filter tracking params, trim one trailing slash
// from non-root paths. Returns the input unchanged when it isn't a
// parseable HTTP(S) URL. Idempotent: Normalize(Normalize(u)) == Normalize(u).
func Normalize(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return raw
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return raw
	}

	u.Scheme = "https"
	u.Host = strings.ToLower(u.Host)
	u.Host = dropDefaultPort(u.Host)
	u.Fragment = ""

	if u.RawQuery != "" {
		u.RawQuery = filterTrackingParams(u.RawQuery)
	}

	if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String()
}

// Domain returns the lowercased host of a normalized URL, or "" if u isn't
// parseable.
func Domain(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	return strings.ToLower(dropDefaultPort(u.Host))
}

func dropDefaultPort(host string) string {
	if strings.HasSuffix(host, ":443") {
		return strings.TrimSuffix(host, ":443")
	}
	if strings.HasSuffix(host, ":80") {
		return strings.TrimSuffix(host, ":80")
	}
	return host
}

func filterTrackingParams(rawQuery string) string {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery
	}

	kept := url.Values{}
	for key, vals := range values {
		lower := strings.ToLower(key)
		if _, denied := trackingParams[lower]; denied {
			continue
		}
		if hasTrackingPrefix(lower) {
			continue
		}
		kept[key] = vals
	}
	if len(kept) == 0 {
		return ""
	}

	keys := make([]string, 0, len(kept))
	for k := range kept {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		for j, v := range kept[k] {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

func hasTrackingPrefix(key string) bool {
	for _, prefix := range trackingParamPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}
