package subprocess

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cookie is one parsed Netscape-format cookie line (§6).
type Cookie struct {
	Domain            string
	IncludeSubdomains bool
	Path              string
	Secure            bool
	Expires           time.Time
	Name              string
	Value             string
}

// ParseCookieFile reads the tab-separated Netscape cookie format (domain,
// include_subdomains, path, secure, expires, name, value), skipping
// blank lines and #-comment lines.
func ParseCookieFile(path string) ([]Cookie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("subprocess: open cookie file: %w", err)
	}
	defer f.Close()

	var cookies []Cookie
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			continue
		}

		expiresUnix, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			continue
		}

		cookies = append(cookies, Cookie{
			Domain:            fields[0],
			IncludeSubdomains: strings.EqualFold(fields[1], "TRUE"),
			Path:              fields[2],
			Secure:            strings.EqualFold(fields[3], "TRUE"),
			Expires:           time.Unix(expiresUnix, 0),
			Name:              fields[5],
			Value:             fields[6],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("subprocess: scan cookie file: %w", err)
	}
	return cookies, nil
}

// CookieHeaderForDomain builds the filtered Cookie header the HTTP
// fetcher attaches to a request (§5 "Shared resources: Cookies").
func CookieHeaderForDomain(cookies []Cookie, domain string) string {
	var parts []string
	for _, c := range cookies {
		if !domainMatches(c, domain) {
			continue
		}
		if !c.Expires.IsZero() && c.Expires.Before(time.Now()) {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

func domainMatches(c Cookie, domain string) bool {
	cookieDomain := strings.TrimPrefix(c.Domain, ".")
	if cookieDomain == domain {
		return true
	}
	return c.IncludeSubdomains && strings.HasSuffix(domain, "."+cookieDomain)
}

// AttachCookies sets the Cookie header on req using the filtered set for
// req's host.
func AttachCookies(req *http.Request, cookies []Cookie) {
	header := CookieHeaderForDomain(cookies, req.URL.Hostname())
	if header != "" {
		req.Header.Set("Cookie", header)
	}
}
