package resolve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoordinate(t *testing.T) {
	c, err := ParseCoordinate("com.android.tools.build:gradle:8.2.0")
	require.NoError(t, err)
	assert.Equal(t, Coordinate{Group: "com.android.tools.build", Artifact: "gradle", Version: "8.2.0"}, c)
	assert.Equal(t, "com.android.tools.build:gradle:8.2.0", c.String())
	assert.Equal(t, "com/android/tools/build/gradle/8.2.0/gradle-8.2.0.pom", c.PomPath())

	for _, bad := range []string{"", "a:b", "a:b:c:d", "a::c", "a b:c:d"} {
		_, err := ParseCoordinate(bad)
		assert.ErrorIs(t, err, errIllegalCoordinate, bad)
	}
}

func TestParseRepository(t *testing.T) {
	google, err := ParseRepository("google")
	require.NoError(t, err)
	assert.Equal(t, "https://dl.google.com/dl/android/maven2/", google.URL.String())

	custom, err := ParseRepository("https://maven.example.com/releases")
	require.NoError(t, err)
	assert.Equal(t,
		"https://maven.example.com/releases/com/google/gms/google-services/4.4.1/google-services-4.4.1.pom",
		custom.ArtifactURL(Coordinate{Group: "com.google.gms", Artifact: "google-services", Version: "4.4.1"}),
	)

	_, err = ParseRepository("jcenter")
	assert.Error(t, err)
	_, err = ParseRepository("ftp://example.com/m2")
	assert.Error(t, err)
}

// repoServer serves HEAD requests for the given POM paths.
func repoServer(t *testing.T, paths ...string) (*httptest.Server, *sync.Map) {
	t.Helper()
	hits := &sync.Map{}
	known := make(map[string]bool)
	for _, p := range paths {
		known["/m2/"+p] = true
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Store(r.URL.Path, r.Method)
		if known[r.URL.Path] {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, hits
}

func mustRepo(t *testing.T, s string) Repository {
	t.Helper()
	r, err := ParseRepository(s)
	require.NoError(t, err)
	return r
}

func mustCoords(t *testing.T, ss ...string) []Coordinate {
	t.Helper()
	var out []Coordinate
	for _, s := range ss {
		c, err := ParseCoordinate(s)
		require.NoError(t, err)
		out = append(out, c)
	}
	return out
}

func TestResolveFirstRepositoryWins(t *testing.T) {
	agp := "com/android/tools/build/gradle/8.2.0/gradle-8.2.0.pom"
	gms := "com/google/gms/google-services/4.4.1/google-services-4.4.1.pom"
	first, _ := repoServer(t, agp)
	second, secondHits := repoServer(t, agp, gms)

	r := NewResolver([]Repository{mustRepo(t, first.URL+"/m2"), mustRepo(t, second.URL+"/m2")})
	r.Client = first.Client()

	var mu sync.Mutex
	var seen []string
	r.OnResolved = func(res Resolution) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, res.Coordinate.String())
	}

	res, err := r.Resolve(context.Background(), mustCoords(t,
		"com.android.tools.build:gradle:8.2.0",
		"com.google.gms:google-services:4.4.1",
	))
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, first.URL+"/m2/", res[0].Repository.URL.String())
	assert.Equal(t, second.URL+"/m2/", res[1].Repository.URL.String())
	assert.Equal(t, second.URL+"/m2/"+gms, res[1].URL)
	assert.ElementsMatch(t, []string{"com.android.tools.build:gradle:8.2.0", "com.google.gms:google-services:4.4.1"}, seen)

	_, askedSecondForAGP := secondHits.Load("/m2/" + agp)
	assert.False(t, askedSecondForAGP)
	method, _ := secondHits.Load("/m2/" + gms)
	assert.Equal(t, http.MethodHead, method)
}

func TestResolveMissingCoordinateFails(t *testing.T) {
	srv, _ := repoServer(t)
	r := NewResolver([]Repository{mustRepo(t, srv.URL+"/m2")})
	r.Client = srv.Client()

	_, err := r.Resolve(context.Background(), mustCoords(t, "org.example:missing:1.0"))
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "org.example:missing:1.0")
}

func TestResolveServerErrorIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewResolver([]Repository{mustRepo(t, srv.URL)})
	r.Client = srv.Client()

	_, err := r.Resolve(context.Background(), mustCoords(t, "org.example:lib:1.0"))
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "500")
}

func TestResolveNothing(t *testing.T) {
	res, err := NewResolver(nil).Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res)

	_, err = NewResolver(nil).Resolve(context.Background(), mustCoords(t, "a:b:c"))
	assert.Error(t, err)
}
