package cookies

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/riposte/internal/apierror"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), FileName), opts...)
}

func TestStore_SessionCookieRoundTrip(t *testing.T) {
	s := newTestStore(t)
	u := mustURL(t, "http://example.com/login")

	require.NoError(t, s.SetFromResponse(u, []string{"sid=abc123; Path=/"}))

	pairs, err := s.Get(mustURL(t, "http://example.com/any"))
	require.NoError(t, err)
	assert.Equal(t, []Pair{{Name: "sid", Value: "abc123"}}, pairs)

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsSession())
	assert.True(t, list[0].HostOnly)
}

func TestStore_HeaderJoinsInJarOrder(t *testing.T) {
	s := newTestStore(t)
	u := mustURL(t, "http://example.com/")

	require.NoError(t, s.SetFromResponse(u, []string{"first=1"}))
	require.NoError(t, s.SetFromResponse(u, []string{"second=2"}))

	header, err := s.Header(mustURL(t, "http://example.com/any"))
	require.NoError(t, err)
	assert.Equal(t, "first=1; second=2", header)

	header, err = s.Header(mustURL(t, "http://other.com/"))
	require.NoError(t, err)
	assert.Empty(t, header)
}

func TestStore_LongerPathsFirst(t *testing.T) {
	s := newTestStore(t)
	u := mustURL(t, "http://example.com/")

	require.NoError(t, s.SetFromResponse(u, []string{"root=r; Path=/", "api=a; Path=/api"}))

	header, err := s.Header(mustURL(t, "http://example.com/api/users"))
	require.NoError(t, err)
	assert.Equal(t, "api=a; root=r", header)
}

func TestStore_DefaultPathKeepsEscapes(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SetFromResponse(mustURL(t, "http://example.com/a%20b/c"), []string{"k=v"}))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "/a%20b", list[0].Path)

	header, err := s.Header(mustURL(t, "http://example.com/a%20b/d"))
	require.NoError(t, err)
	assert.Equal(t, "k=v", header)

	header, err = s.Header(mustURL(t, "http://example.com/a/d"))
	require.NoError(t, err)
	assert.Empty(t, header)
}

func TestStore_DomainScoping(t *testing.T) {
	tests := []struct {
		name      string
		setURL    string
		setCookie string
		getURL    string
		want      bool
	}{
		{"host-only exact host", "http://example.com/", "a=1", "http://example.com/", true},
		{"host-only excludes subdomain", "http://example.com/", "a=1", "http://www.example.com/", false},
		{"domain cookie reaches subdomain", "http://www.example.com/", "a=1; Domain=example.com", "http://api.example.com/", true},
		{"leading dot domain", "http://www.example.com/", "a=1; Domain=.example.com", "http://example.com/", true},
		{"different site", "http://example.com/", "a=1; Domain=example.com", "http://notexample.com/", false},
		{"path prefix on boundary", "http://example.com/", "a=1; Path=/api", "http://example.com/api/x", true},
		{"path prefix off boundary", "http://example.com/", "a=1; Path=/api", "http://example.com/apix", false},
		{"default path from request", "http://example.com/docs/index.html", "a=1", "http://example.com/docs/other", true},
		{"default path excludes parent", "http://example.com/docs/index.html", "a=1", "http://example.com/", false},
		{"secure over https", "https://example.com/", "a=1; Secure", "https://example.com/", true},
		{"secure withheld over http", "https://example.com/", "a=1; Secure", "http://example.com/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			require.NoError(t, s.SetFromResponse(mustURL(t, tt.setURL), []string{tt.setCookie}))

			pairs, err := s.Get(mustURL(t, tt.getURL))
			require.NoError(t, err)
			assert.Equal(t, tt.want, len(pairs) == 1)
		})
	}
}

func TestStore_RejectsForeignAndPublicSuffixDomains(t *testing.T) {
	s := newTestStore(t)
	u := mustURL(t, "http://www.example.com/")

	err := s.SetFromResponse(u, []string{"ok=1", "bad=1; Domain=com", "foreign=1; Domain=other.org"})
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.CategoryCookiePersistence))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ok", list[0].Name)
}

func TestStore_ExpiryHandling(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	s := newTestStore(t, WithClock(func() time.Time { return clock }))
	u := mustURL(t, "http://example.com/")

	require.NoError(t, s.SetFromResponse(u, []string{"short=1; Max-Age=60", "session=1"}))

	pairs, err := s.Get(u)
	require.NoError(t, err)
	assert.Len(t, pairs, 2)

	clock = now.Add(2 * time.Minute)
	pairs, err = s.Get(u)
	require.NoError(t, err)
	assert.Equal(t, []Pair{{Name: "session", Value: "1"}}, pairs)

	// Expired cookies are excluded from Get but not purged.
	list, err := s.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, s.SetFromResponse(u, []string{"session=; Max-Age=0"}))
	list, err = s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "short", list[0].Name)
}

func TestStore_UpsertReplaces(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Upsert(Cookie{Name: "token", Value: "v1", Domain: ".Example.com"}))
	require.NoError(t, s.Upsert(Cookie{Name: "token", Value: "v2", Domain: "example.com", Path: "/"}))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "v2", list[0].Value)
	assert.Equal(t, "example.com", list[0].Domain)
	assert.Equal(t, "/", list[0].Path)
	assert.False(t, list[0].HostOnly)

	pairs, err := s.Get(mustURL(t, "http://api.example.com/x"))
	require.NoError(t, err)
	assert.Equal(t, []Pair{{Name: "token", Value: "v2"}}, pairs)

	assert.ErrorIs(t, s.Upsert(Cookie{Name: "", Domain: "example.com"}), ErrInvalidCookie)
	assert.ErrorIs(t, s.Upsert(Cookie{Name: "x"}), ErrInvalidCookie)
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Upsert(Cookie{Name: "a", Value: "1", Domain: "example.com"}))

	sel := Selector{Domain: "example.com", Path: "/", Name: "a"}
	require.NoError(t, s.Delete(sel))
	require.NoError(t, s.Delete(sel))
	require.NoError(t, s.Delete(Selector{Domain: "example.com"}))

	list, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", FileName)
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	first := NewStore(path)
	require.NoError(t, first.Upsert(Cookie{Name: "a", Value: "1", Domain: "example.com", Expires: &exp}))
	require.NoError(t, first.SetFromResponse(mustURL(t, "http://example.com/"), []string{"b=2"}))

	second := NewStore(path)
	list, err := second.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	require.NotNil(t, list[0].Expires)
	assert.True(t, exp.Equal(*list[0].Expires))
	assert.Equal(t, "b", list[1].Name)
	assert.Nil(t, list[1].Expires)

	require.NoError(t, second.Clear())
	third := NewStore(path)
	list, err = third.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_FlushFailureKeepsMemory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s := NewStore(filepath.Join(dir, FileName))

	_, err := s.List()
	require.NoError(t, err)

	// The data directory is now a regular file, so the flush cannot create it.
	require.NoError(t, os.WriteFile(dir, []byte("x"), 0o644))

	err = s.Upsert(Cookie{Name: "a", Value: "1", Domain: "example.com"})
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.CategoryCookiePersistence))

	list, err := s.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewStore(path).Get(mustURL(t, "http://example.com/"))
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.CategoryCookiePersistence))
}

func TestStore_EmptyFileIsEmptyJar(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	list, err := NewStore(path).List()
	require.NoError(t, err)
	assert.Empty(t, list)
}
