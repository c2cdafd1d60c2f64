package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const (
	defaultPyPIBaseURL  = "https://pypi.org"
	defaultPyPIStatsURL = "https://pypistats.org"
)

type PyPIClient struct {
	BaseURL    string
	StatsURL   string
	httpClient *http.Client
	osv        *OSVClient
}

func NewPyPIClient(httpClient *http.Client, osv *OSVClient) *PyPIClient {
	return &PyPIClient{
		BaseURL:    defaultPyPIBaseURL,
		StatsURL:   defaultPyPIStatsURL,
		httpClient: httpClient,
		osv:        osv,
	}
}

type pypiProject struct {
	Info struct {
		Name            string            `json:"name"`
		Version         string            `json:"version"`
		Author          string            `json:"author"`
		AuthorEmail     string            `json:"author_email"`
		Maintainer      string            `json:"maintainer"`
		MaintainerEmail string            `json:"maintainer_email"`
		HomePage        string            `json:"home_page"`
		ProjectURLs     map[string]string `json:"project_urls"`
	} `json:"info"`
	URLs []struct {
		UploadTime string `json:"upload_time_iso_8601"`
	} `json:"urls"`
}

func (c *PyPIClient) Exists(ctx context.Context, name string) (bool, error) {
	meta, err := c.Meta(ctx, name)
	if err != nil {
		return false, err
	}
	return meta.Exists, nil
}

func (c *PyPIClient) Meta(ctx context.Context, name string) (Metadata, error) {
	meta := Metadata{RegistryURL: fmt.Sprintf("%s/pypi/%s/json", c.BaseURL, name)}

	var project pypiProject
	err := retry(ctx, func() error {
		return c.fetchJSON(ctx, meta.RegistryURL, &project, &meta.Exists)
	})
	if err != nil {
		return meta, fmt.Errorf("pypi lookup for %q failed: %w", name, err)
	}
	if !meta.Exists {
		return meta, nil
	}

	for _, upload := range project.URLs {
		t, err := time.Parse(time.RFC3339, upload.UploadTime)
		if err != nil {
			continue
		}
		if t.After(meta.LatestReleaseTime) {
			meta.LatestReleaseTime = t
		}
	}

	meta.MaintainerCount = pypiMaintainerCount(project)
	meta.GithubRepoURL = githubURLFromProject(project)
	meta.WeeklyDownloads = c.weeklyDownloads(ctx, name)

	if c.osv != nil {
		count, err := c.osv.HighSeverityCount(ctx, "PyPI", name)
		if err != nil {
			log.Debug().Err(err).Str("package", name).Msg("osv lookup failed, assuming zero vulnerabilities")
		} else {
			meta.HighVulnerabilityCount = count
		}
	}

	return meta, nil
}

func (c *PyPIClient) fetchJSON(ctx context.Context, url string, out interface{}, exists *bool) error {
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

// weeklyDownloads queries pypistats.org. Download counts are advisory,
// failures degrade to zero rather than failing the whole lookup.
func (c *PyPIClient) weeklyDownloads(ctx context.Context, name string) uint64 {
	url := fmt.Sprintf("%s/api/packages/%s/recent", c.StatsURL, strings.ToLower(name))

	var stats struct {
		Data struct {
			LastWeek uint64 `json:"last_week"`
		} `json:"data"`
	}
	exists := false
	err := retry(ctx, func() error {
		return c.fetchJSON(ctx, url, &stats, &exists)
	})
	if err != nil || !exists {
		log.Debug().Err(err).Str("package", name).Msg("pypistats lookup failed, treating downloads as unknown")
		return 0
	}
	return stats.Data.LastWeek
}

// pypiMaintainerCount approximates the maintainer count from the author
// and maintainer contact fields. PyPI's JSON API does not expose the
// actual maintainer list, so multi-entry email fields are the best signal.
func pypiMaintainerCount(project pypiProject) int {
	people := map[string]bool{}
	for _, field := range []string{project.Info.AuthorEmail, project.Info.MaintainerEmail} {
		for _, entry := range strings.Split(field, ",") {
			entry = strings.TrimSpace(strings.ToLower(entry))
			if entry != "" {
				people[entry] = true
			}
		}
	}
	if len(people) > 0 {
		return len(people)
	}
	if project.Info.Author != "" || project.Info.Maintainer != "" {
		return 1
	}
	return 0
}

func githubURLFromProject(project pypiProject) string {
	candidates := []string{project.Info.HomePage}
	for _, url := range project.Info.ProjectURLs {
		candidates = append(candidates, url)
	}
	for _, url := range candidates {
		if strings.Contains(url, "github.com/") {
			return url
		}
	}
	return ""
}
