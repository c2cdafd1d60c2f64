package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const (
	defaultNPMRegistryURL = "https://registry.npmjs.org"
	defaultNPMAPIBaseURL  = "https://api.npmjs.org"
)

type NPMClient struct {
	RegistryURL string
	APIBaseURL  string
	httpClient  *http.Client
	osv         *OSVClient
}

func NewNPMClient(httpClient *http.Client, osv *OSVClient) *NPMClient {
	return &NPMClient{
		RegistryURL: defaultNPMRegistryURL,
		APIBaseURL:  defaultNPMAPIBaseURL,
		httpClient:  httpClient,
		osv:         osv,
	}
}

type npmPackument struct {
	Name     string `json:"name"`
	DistTags struct {
		Latest string `json:"latest"`
	} `json:"dist-tags"`
	Time        map[string]string `json:"time"`
	Maintainers []struct {
		Name string `json:"name"`
	} `json:"maintainers"`
	Repository struct {
		URL string `json:"url"`
	} `json:"repository"`
}

func (c *NPMClient) Exists(ctx context.Context, name string) (bool, error) {
	meta, err := c.Meta(ctx, name)
	if err != nil {
		return false, err
	}
	return meta.Exists, nil
}

func (c *NPMClient) Meta(ctx context.Context, name string) (Metadata, error) {
	meta := Metadata{RegistryURL: fmt.Sprintf("%s/%s", c.RegistryURL, escapeNPMName(name))}

	var packument npmPackument
	err := retry(ctx, func() error {
		return c.fetchJSON(ctx, meta.RegistryURL, &packument, &meta.Exists)
	})
	if err != nil {
		return meta, fmt.Errorf("npm lookup for %q failed: %w", name, err)
	}
	if !meta.Exists {
		return meta, nil
	}

	if stamp, ok := packument.Time[packument.DistTags.Latest]; ok {
		if t, err := time.Parse(time.RFC3339, stamp); err == nil {
			meta.LatestReleaseTime = t
		}
	}

	meta.MaintainerCount = len(packument.Maintainers)
	meta.GithubRepoURL = githubURLFromRepository(packument.Repository.URL)
	meta.WeeklyDownloads = c.weeklyDownloads(ctx, name)

	if c.osv != nil {
		count, err := c.osv.HighSeverityCount(ctx, "npm", name)
		if err != nil {
			log.Debug().Err(err).Str("package", name).Msg("osv lookup failed, assuming zero vulnerabilities")
		} else {
			meta.HighVulnerabilityCount = count
		}
	}

	return meta, nil
}

func (c *NPMClient) fetchJSON(ctx context.Context, url string, out interface{}, exists *bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		*exists = false
		return nil
	case res.StatusCode != http.StatusOK:
		err := &statusError{URL: url, Status: res.StatusCode}
		if res.StatusCode >= 400 && res.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to parse response from %s: %w", url, err))
	}
	*exists = true
	return nil
}

func (c *NPMClient) weeklyDownloads(ctx context.Context, name string) uint64 {
	url := fmt.Sprintf("%s/downloads/point/last-week/%s", c.APIBaseURL, escapeNPMName(name))

	var point struct {
		Downloads uint64 `json:"downloads"`
	}
	exists := false
	err := retry(ctx, func() error {
		return c.fetchJSON(ctx, url, &point, &exists)
	})
	if err != nil || !exists {
		log.Debug().Err(err).Str("package", name).Msg("npm downloads lookup failed, treating downloads as unknown")
		return 0
	}
	return point.Downloads
}

// escapeNPMName encodes scoped package names for registry URLs
// (@babel/core -> @babel%2Fcore).
func escapeNPMName(name string) string {
	if strings.HasPrefix(name, "@") {
		return strings.Replace(name, "/", url.PathEscape("/"), 1)
	}
	return name
}

func githubURLFromRepository(repoURL string) string {
	if !strings.Contains(repoURL, "github.com") {
		return ""
	}
	repoURL = strings.TrimPrefix(repoURL, "git+")
	repoURL = strings.TrimSuffix(repoURL, ".git")
	repoURL = strings.Replace(repoURL, "git://", "https://", 1)
	repoURL = strings.Replace(repoURL, "ssh://git@", "https://", 1)
	return repoURL
}
