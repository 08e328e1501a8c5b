package cookies

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Cookie is a single jar entry. A jar never holds two cookies with the same
// (Domain, Path, Name).
type Cookie struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`

	// Domain is the canonical domain: lower case, no leading dot.
	Domain string `json:"domain" yaml:"domain"`

	// RawDomain is the domain exactly as it was received or entered.
	RawDomain string `json:"rawDomain,omitempty" yaml:"rawDomain,omitempty"`

	Path string `json:"path" yaml:"path"`

	// Expires is nil for session cookies.
	Expires *time.Time `json:"expires,omitempty" yaml:"expires,omitempty"`

	// HostOnly cookies are sent to Domain only, never to its subdomains.
	HostOnly bool `json:"hostOnly" yaml:"hostOnly"`
	Secure   bool `json:"secure,omitempty" yaml:"secure,omitempty"`
	HTTPOnly bool `json:"httpOnly,omitempty" yaml:"httpOnly,omitempty"`
}

// Selector identifies a cookie by its jar key.
type Selector struct {
	Domain string `json:"domain" yaml:"domain"`
	Path   string `json:"path" yaml:"path"`
	Name   string `json:"name" yaml:"name"`
}

// Pair is a name/value pair ready to be placed in a Cookie request header.
type Pair struct {
	Name  string
	Value string
}

var (
	// ErrInvalidCookie is returned for user supplied cookies missing a name or domain.
	ErrInvalidCookie = errors.New("cookie requires a name and a domain")

	errIllegalDomain = errors.New("cookie domain does not match request host")
)

// Selector returns the jar key of c.
func (c Cookie) Selector() Selector {
	return Selector{Domain: c.Domain, Path: c.Path, Name: c.Name}
}

// IsSession reports whether c has no expiry.
func (c Cookie) IsSession() bool {
	return c.Expires == nil
}

func (c Cookie) expired(now time.Time) bool {
	return c.Expires != nil && !c.Expires.After(now)
}

func (c Cookie) matches(host, path string, secure bool, now time.Time) bool {
	if c.Secure && !secure {
		return false
	}
	if c.expired(now) {
		return false
	}
	if c.HostOnly {
		if host != c.Domain {
			return false
		}
	} else if !domainMatch(host, c.Domain) {
		return false
	}
	return pathMatch(path, c.Path)
}

// normalize canonicalizes a selector the way cookies are keyed in the jar.
func (s Selector) normalize() Selector {
	s.Domain = canonicalDomain(s.Domain)
	if s.Path == "" {
		s.Path = "/"
	}
	return s
}

func canonicalDomain(domain string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "."))
}

func canonicalHost(u *url.URL) string {
	return strings.ToLower(u.Hostname())
}

func isIP(host string) bool {
	return net.ParseIP(host) != nil
}

// domainMatch implements RFC 6265 section 5.1.3.
func domainMatch(host, domain string) bool {
	if host == domain {
		return true
	}
	return !isIP(host) && strings.HasSuffix(host, "."+domain)
}

// pathMatch implements RFC 6265 section 5.1.4.
func pathMatch(requestPath, cookiePath string) bool {
	if requestPath == "" {
		requestPath = "/"
	}
	if requestPath == cookiePath {
		return true
	}
	if !strings.HasPrefix(requestPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || requestPath[len(cookiePath)] == '/'
}

// defaultPath implements RFC 6265 section 5.1.4 default-path.
func defaultPath(requestPath string) string {
	if requestPath == "" || requestPath[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(requestPath, "/")
	if i == 0 {
		return "/"
	}
	return requestPath[:i]
}

// domainFor resolves the Domain attribute of a received cookie against the
// request host, rejecting public suffixes and foreign domains.
func domainFor(host, attr string) (domain string, hostOnly bool, err error) {
	d := canonicalDomain(attr)
	if d == "" {
		return host, true, nil
	}
	if isIP(host) {
		if d != host {
			return "", false, errIllegalDomain
		}
		return host, true, nil
	}
	if suffix, _ := publicsuffix.PublicSuffix(d); suffix == d {
		if d == host {
			return host, true, nil
		}
		return "", false, errIllegalDomain
	}
	if !domainMatch(host, d) {
		return "", false, errIllegalDomain
	}
	return d, false, nil
}

// fromSetCookie converts a parsed Set-Cookie header received from u. The
// returned bool is false when the cookie is already expired and must instead
// remove any stored cookie with the same key.
func fromSetCookie(u *url.URL, hc *http.Cookie, now time.Time) (Cookie, bool, error) {
	host := canonicalHost(u)
	domain, hostOnly, err := domainFor(host, hc.Domain)
	if err != nil {
		return Cookie{}, false, err
	}

	path := hc.Path
	if path == "" || path[0] != '/' {
		path = defaultPath(u.EscapedPath())
	}

	c := Cookie{
		Name:      hc.Name,
		Value:     hc.Value,
		Domain:    domain,
		RawDomain: hc.Domain,
		Path:      path,
		HostOnly:  hostOnly,
		Secure:    hc.Secure,
		HTTPOnly:  hc.HttpOnly,
	}

	switch {
	case hc.MaxAge < 0:
		return c, false, nil
	case hc.MaxAge > 0:
		exp := now.Add(time.Duration(hc.MaxAge) * time.Second)
		c.Expires = &exp
	case !hc.Expires.IsZero():
		exp := hc.Expires.UTC()
		c.Expires = &exp
	}
	return c, !c.expired(now), nil
}
