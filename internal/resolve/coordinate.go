package resolve

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

var errIllegalCoordinate = errors.New("empty or illegal coordinate string")

// Coordinate is a Maven artifact coordinate, e.g. com.google.gms:google-services:4.4.1
type Coordinate struct {
	Group    string
	Artifact string
	Version  string
}

func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return Coordinate{}, fmt.Errorf("%w: %q (want group:artifact:version)", errIllegalCoordinate, s)
	}
	for _, p := range parts {
		if p == "" || strings.ContainsAny(p, "/\\ ") {
			return Coordinate{}, fmt.Errorf("%w: %q", errIllegalCoordinate, s)
		}
	}
	return Coordinate{Group: parts[0], Artifact: parts[1], Version: parts[2]}, nil
}

func (c Coordinate) String() string {
	return c.Group + ":" + c.Artifact + ":" + c.Version
}

// PomPath returns the repository-relative path of the coordinate's POM,
// e.g. com/google/gms/google-services/4.4.1/google-services-4.4.1.pom
func (c Coordinate) PomPath() string {
	return path.Join(
		strings.ReplaceAll(c.Group, ".", "/"),
		c.Artifact,
		c.Version,
		c.Artifact+"-"+c.Version+".pom",
	)
}

// Repository is a Maven repository that classpath coordinates are looked up in
type Repository struct {
	Name string
	URL  *url.URL
}

var repoShortcuts = map[string]string{
	"google":             "https://dl.google.com/dl/android/maven2/",
	"mavenCentral":       "https://repo.maven.apache.org/maven2/",
	"gradlePluginPortal": "https://plugins.gradle.org/m2/",
}

// ParseRepository accepts either a well-known repository name or an absolute
// http(s) URL
func ParseRepository(s string) (Repository, error) {
	if base, ok := repoShortcuts[s]; ok {
		u, _ := url.Parse(base)
		return Repository{Name: s, URL: u}, nil
	}

	if !isURL(s) {
		return Repository{}, fmt.Errorf("unknown repository %q (use google, mavenCentral, gradlePluginPortal or a URL)", s)
	}
	u, _ := url.Parse(s)
	if u.Scheme != "http" && u.Scheme != "https" {
		return Repository{}, fmt.Errorf("repository %q: unsupported scheme %q", s, u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return Repository{Name: s, URL: u}, nil
}

func isURL(maybeURL string) bool {
	u, err := url.Parse(maybeURL)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// ArtifactURL returns the absolute URL of the coordinate's POM in this repository
func (r Repository) ArtifactURL(c Coordinate) string {
	return r.URL.JoinPath(c.PomPath()).String()
}
