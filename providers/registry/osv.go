package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
)

const defaultOSVBaseURL = "https://api.osv.dev"

// OSVClient queries the OSV vulnerability database for known advisories
// against a package.
type OSVClient struct {
	BaseURL    string
	httpClient *http.Client
}

func NewOSVClient(httpClient *http.Client) *OSVClient {
	return &OSVClient{
		BaseURL:    defaultOSVBaseURL,
		httpClient: httpClient,
	}
}

type osvQuery struct {
	Package osvPackage `json:"package"`
}

type osvPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

type osvResponse struct {
	Vulns []osvVulnerability `json:"vulns"`
}

type osvVulnerability struct {
	ID               string `json:"id"`
	DatabaseSpecific struct {
		Severity string `json:"severity"`
	} `json:"database_specific"`
	Severity []struct {
		Type  string `json:"type"`
		Score string `json:"score"`
	} `json:"severity"`
}

// HighSeverityCount returns the number of high or critical advisories
// for the package. ecosystem uses OSV naming ("PyPI", "npm").
func (c *OSVClient) HighSeverityCount(ctx context.Context, ecosystem, name string) (int, error) {
	body, err := json.Marshal(osvQuery{Package: osvPackage{Name: name, Ecosystem: ecosystem}})
	if err != nil {
		return 0, err
	}

	url := c.BaseURL + "/v1/query"
	var response osvResponse
	err = retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		res, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			err := &statusError{URL: url, Status: res.StatusCode}
			if res.StatusCode >= 400 && res.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}

		response = osvResponse{}
		if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to parse osv response: %w", err))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, vuln := range response.Vulns {
		if vuln.IsHighSeverity() {
			count++
		}
	}
	return count, nil
}

func (v osvVulnerability) IsHighSeverity() bool {
	switch strings.ToUpper(v.DatabaseSpecific.Severity) {
	case "HIGH", "CRITICAL":
		return true
	}
	// GHSA prefixed advisories without a database severity still count
	// when they carry a CVSS vector; treat any scored advisory on the
	// conservative side only when the database severity is absent.
	return v.DatabaseSpecific.Severity == "" && len(v.Severity) > 0 && strings.HasPrefix(v.ID, "GHSA-")
}
