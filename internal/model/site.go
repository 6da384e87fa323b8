package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Site is a named platform and the hosts that belong to it.
type Site struct {
	Name  string   `json:"name"`
	Hosts []string `json:"hosts"`
}

// DefaultSites are the platforms accepted out of the box.
var DefaultSites = []Site{
	{Name: "YouTube", Hosts: []string{"youtube.com", "youtu.be"}},
	{Name: "TikTok", Hosts: []string{"tiktok.com", "vm.tiktok.com"}},
	{Name: "Instagram", Hosts: []string{"instagram.com"}},
	{Name: "Twitter", Hosts: []string{"twitter.com", "x.com"}},
	{Name: "Twitch", Hosts: []string{"twitch.tv", "clips.twitch.tv"}},
	{Name: "Reddit", Hosts: []string{"reddit.com"}},
	{Name: "Dailymotion", Hosts: []string{"dailymotion.com"}},
	{Name: "SoundCloud", Hosts: []string{"soundcloud.com", "on.soundcloud.com"}},
	{Name: "Vimeo", Hosts: []string{"vimeo.com"}},
	{Name: "Facebook", Hosts: []string{"facebook.com"}},
	{Name: "LinkedIn", Hosts: []string{"linkedin.com"}},
	{Name: "Rumble", Hosts: []string{"rumble.com"}},
	{Name: "Bilibili", Hosts: []string{"bilibili.com"}},
	{Name: "Odysee", Hosts: []string{"odysee.com"}},
}

// GenericSite is reported by SiteName for hosts outside the site list.
const GenericSite = "Generic"

// ValidateURL checks that raw is an http(s) URL on one of the sites' hosts.
//
// The host is lowercased and a leading "www." or "m." is stripped before
// matching; subdomains of a listed host match too. The trimmed URL is
// returned unchanged otherwise. Failures are *Error with KindValidation.
func ValidateURL(raw string, sites []Site) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", NewValidationError(raw, errors.New("empty URL"))
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", NewValidationError(raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", NewValidationError(raw, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	host := normalizeHost(u.Hostname())
	if host == "" {
		return "", NewValidationError(raw, errors.New("missing host"))
	}
	if _, ok := matchSite(host, sites); !ok {
		return "", NewValidationError(raw, fmt.Errorf("unsupported host %q", host))
	}
	return raw, nil
}

// SiteName returns the name of the site raw belongs to, or GenericSite.
func SiteName(raw string, sites []Site) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return GenericSite
	}
	if s, ok := matchSite(normalizeHost(u.Hostname()), sites); ok {
		return s.Name
	}
	return GenericSite
}

// ParseHosts builds a single catch-all site from a host list, e.g. from an env var.
func ParseHosts(hosts []string) []Site {
	if len(hosts) == 0 {
		return nil
	}
	clean := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = normalizeHost(strings.TrimSpace(h))
		if h != "" {
			clean = append(clean, h)
		}
	}
	return []Site{{Name: "Custom", Hosts: clean}}
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, prefix := range []string{"www.", "m."} {
		host = strings.TrimPrefix(host, prefix)
	}
	return host
}

func matchSite(host string, sites []Site) (Site, bool) {
	for _, s := range sites {
		for _, h := range s.Hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return s, true
			}
		}
	}
	return Site{}, false
}
