// Package cookies implements the persistent cookie jar shared by all requests.
//
// The jar is keyed by (domain, path, name), matched against outbound URLs with
// RFC 6265 domain and path rules, and stored as a single JSON document that is
// rewritten wholesale after every mutation.
//
// Store is safe for concurrent use. Every operation holds one mutex for its
// whole duration, including the disk flush of mutating operations.
package cookies

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wesleyorama2/riposte/internal/apierror"
)

// FileName is the jar file name inside the application data directory.
const FileName = "cookies.json"

// document is the on-disk layout of the jar.
type document struct {
	Cookies []Cookie `json:"cookies"`
}

// Store is a persistent cookie jar.
type Store struct {
	mu      sync.Mutex
	path    string
	loaded  bool
	cookies []Cookie

	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for jar diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock overrides the wall clock used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore returns a jar persisted at path. The file is read lazily on first use.
func NewStore(path string, opts ...Option) *Store {
	s := &Store{
		path:   path,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the jar file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns the cookies applicable to u. Expired cookies are skipped but
// stay in the jar. Longer paths sort first; equal paths keep jar order.
func (s *Store) Get(u *url.URL) ([]Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}

	host := canonicalHost(u)
	secure := u.Scheme == "https"
	now := s.now()

	matched := make([]Cookie, 0, len(s.cookies))
	for _, c := range s.cookies {
		if c.matches(host, u.EscapedPath(), secure, now) {
			matched = append(matched, c)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return len(matched[i].Path) > len(matched[j].Path)
	})

	pairs := make([]Pair, len(matched))
	for i, c := range matched {
		pairs[i] = Pair{Name: c.Name, Value: c.Value}
	}
	return pairs, nil
}

// Header returns the Cookie request header value for u, or "" when no cookie
// applies.
func (s *Store) Header(u *url.URL) (string, error) {
	pairs, err := s.Get(u)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.Name + "=" + p.Value
	}
	return strings.Join(parts, "; "), nil
}

// SetFromResponse stores the Set-Cookie header values received from u and
// flushes the jar. Values that cannot be parsed or whose domain is rejected
// are skipped and reported in the returned error after the valid ones have
// been stored.
func (s *Store) SetFromResponse(u *url.URL, lines []string) error {
	if len(lines) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return err
	}

	now := s.now()
	var rejected []error
	changed := false
	for _, line := range lines {
		hc, err := http.ParseSetCookie(line)
		if err != nil {
			rejected = append(rejected, fmt.Errorf("parse %q: %w", line, err))
			continue
		}
		c, keep, err := fromSetCookie(u, hc, now)
		if err != nil {
			rejected = append(rejected, fmt.Errorf("cookie %s: %w", hc.Name, err))
			continue
		}
		if keep {
			s.upsertLocked(c)
		} else {
			s.removeLocked(c.Selector())
		}
		changed = true
	}

	if changed {
		if err := s.flushLocked(); err != nil {
			return err
		}
		s.logger.Debug().Str("host", u.Host).Int("count", len(lines)).Msg("cookies stored")
	}

	if len(rejected) > 0 {
		return apierror.New(apierror.CategoryCookiePersistence, errors.Join(rejected...))
	}
	return nil
}

// Upsert inserts c, replacing any cookie with the same (domain, path, name).
// A leading dot on the domain is dropped. Cookies entered this way apply to
// subdomains, like a Set-Cookie carrying a Domain attribute.
func (s *Store) Upsert(c Cookie) error {
	c.RawDomain = c.Domain
	c.Domain = canonicalDomain(c.Domain)
	if c.Name == "" || c.Domain == "" {
		return ErrInvalidCookie
	}
	if c.Path == "" || c.Path[0] != '/' {
		c.Path = "/"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return err
	}
	s.upsertLocked(c)
	return s.flushLocked()
}

// Delete removes the cookie identified by sel. Deleting an absent cookie, or
// passing an empty name, is a no-op.
func (s *Store) Delete(sel Selector) error {
	if sel.Name == "" {
		return nil
	}
	sel = sel.normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return err
	}
	if !s.removeLocked(sel) {
		return nil
	}
	return s.flushLocked()
}

// List returns a copy of every cookie in jar order, expired ones included.
func (s *Store) List() ([]Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	out := make([]Cookie, len(s.cookies))
	copy(out, s.cookies)
	return out, nil
}

// Clear empties the jar.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cookies = nil
	s.loaded = true
	return s.flushLocked()
}

func (s *Store) upsertLocked(c Cookie) {
	key := c.Selector()
	for i := range s.cookies {
		if s.cookies[i].Selector() == key {
			s.cookies[i] = c
			return
		}
	}
	s.cookies = append(s.cookies, c)
}

func (s *Store) removeLocked(key Selector) bool {
	for i := range s.cookies {
		if s.cookies[i].Selector() == key {
			s.cookies = append(s.cookies[:i], s.cookies[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Store) ensureLoaded() error {
	if s.loaded {
		return nil
	}

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.loaded = true
		return nil
	case err != nil:
		return apierror.New(apierror.CategoryCookiePersistence, fmt.Errorf("read cookie jar: %w", err))
	}

	var doc document
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return apierror.New(apierror.CategoryCookiePersistence, fmt.Errorf("decode cookie jar %s: %w", s.path, err))
		}
	}
	s.cookies = doc.Cookies
	s.loaded = true
	s.logger.Debug().Str("path", s.path).Int("cookies", len(s.cookies)).Msg("cookie jar loaded")
	return nil
}

// flushLocked rewrites the jar file through a temporary file and a rename so
// readers never observe a partial document.
func (s *Store) flushLocked() error {
	data, err := json.MarshalIndent(document{Cookies: s.cookies}, "", "  ")
	if err != nil {
		return apierror.New(apierror.CategoryCookiePersistence, fmt.Errorf("encode cookie jar: %w", err))
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apierror.New(apierror.CategoryCookiePersistence, fmt.Errorf("create data dir: %w", err))
	}

	tmp, err := os.CreateTemp(dir, ".cookies-*.json")
	if err != nil {
		return apierror.New(apierror.CategoryCookiePersistence, fmt.Errorf("create temp jar: %w", err))
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apierror.New(apierror.CategoryCookiePersistence, fmt.Errorf("write cookie jar: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apierror.New(apierror.CategoryCookiePersistence, fmt.Errorf("sync cookie jar: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apierror.New(apierror.CategoryCookiePersistence, fmt.Errorf("close cookie jar: %w", err))
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return apierror.New(apierror.CategoryCookiePersistence, fmt.Errorf("replace cookie jar: %w", err))
	}
	return nil
}
