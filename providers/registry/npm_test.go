package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const npmPackumentFixture = `{
  "name": "lodash",
  "dist-tags": {"latest": "4.17.21"},
  "time": {
    "created": "2012-04-23T16:37:11Z",
    "4.17.20": "2020-08-13T16:53:54Z",
    "4.17.21": "2021-02-20T15:42:16Z"
  },
  "maintainers": [
    {"name": "jdalton"},
    {"name": "mathias"}
  ],
  "repository": {"url": "git+https://github.com/lodash/lodash.git"}
}`

func newNPMServer(t *testing.T, handler http.Handler) *NPMClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewNPMClient(server.Client(), nil)
	client.RegistryURL = server.URL
	client.APIBaseURL = server.URL
	return client
}

func TestNPMMeta(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/lodash", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, npmPackumentFixture)
	})
	mux.HandleFunc("/downloads/point/last-week/lodash", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"downloads": 45219876, "package": "lodash"}`)
	})
	client := newNPMServer(t, mux)

	meta, err := client.Meta(context.Background(), "lodash")
	require.NoError(t, err)

	assert.True(t, meta.Exists)
	assert.Equal(t, uint64(45219876), meta.WeeklyDownloads)
	assert.Equal(t, time.Date(2021, 2, 20, 15, 42, 16, 0, time.UTC), meta.LatestReleaseTime.UTC())
	assert.Equal(t, 2, meta.MaintainerCount)
	assert.Equal(t, "https://github.com/lodash/lodash", meta.GithubRepoURL)
}

func TestNPMMetaNotFound(t *testing.T) {
	client := newNPMServer(t, http.NotFoundHandler())

	meta, err := client.Meta(context.Background(), "definitely-not-a-real-package")
	require.NoError(t, err)
	assert.False(t, meta.Exists)
}

func TestNPMMetaScopedPackage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/@babel/core", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name": "@babel/core", "dist-tags": {"latest": "7.23.0"}, "time": {"7.23.0": "2023-09-25T12:00:00Z"}, "maintainers": [{"name": "babel"}], "repository": {"url": ""}}`)
	})
	mux.HandleFunc("/downloads/point/last-week/@babel/core", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"downloads": 32000000}`)
	})
	client := newNPMServer(t, mux)

	meta, err := client.Meta(context.Background(), "@babel/core")
	require.NoError(t, err)
	assert.True(t, meta.Exists)
	assert.Equal(t, uint64(32000000), meta.WeeklyDownloads)
	assert.Equal(t, "", meta.GithubRepoURL)
}

func TestEscapeNPMName(t *testing.T) {
	assert.Equal(t, "lodash", escapeNPMName("lodash"))
	assert.Equal(t, "@babel%2Fcore", escapeNPMName("@babel/core"))
}

func TestGithubURLFromRepository(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"git+https://github.com/lodash/lodash.git", "https://github.com/lodash/lodash"},
		{"git://github.com/expressjs/express.git", "https://github.com/expressjs/express"},
		{"ssh://git@github.com/facebook/react.git", "https://github.com/facebook/react"},
		{"https://gitlab.com/group/project", ""},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, githubURLFromRepository(c.in), c.in)
	}
}
