// Package jujuci lists and downloads build artifacts from the CI server.
package jujuci

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultURL      = "http://juju-ci.vapour.ws:8080"
	DefaultBuild    = "lastSuccessfulBuild"
	DefaultRetryMax = 3
)

// Artifact is a file archived by a build
type Artifact struct {
	FileName string
	Location string
}

// BuildData is the subset of a build's api/json document used here
type BuildData struct {
	URL       string          `json:"url"`
	Number    int             `json:"number"`
	Result    string          `json:"result"`
	Artifacts []BuildArtifact `json:"artifacts"`
}

type BuildArtifact struct {
	FileName     string `json:"fileName"`
	RelativePath string `json:"relativePath"`
}

// Client talks to the CI server
type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

// NewClient creates a client for the server at baseURL. Requests are
// retried up to retryMax times.
func NewClient(baseURL string, retryMax int) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := retryablehttp.NewClient()
	c.RetryMax = retryMax
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 10 * time.Second
	c.Logger = retryLogger{}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    c,
	}
}

// BuildData fetches the data of a job build. An empty build means the last
// successful one.
func (c *Client) BuildData(ctx context.Context, job, build string) (*BuildData, error) {
	if build == "" {
		build = DefaultBuild
	}
	url := fmt.Sprintf("%s/job/%s/%s/api/json", c.baseURL, job, build)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get build data of %s/%s: %w", job, build, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get build data of %s/%s: %s", job, build, resp.Status)
	}

	var data BuildData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse build data of %s/%s: %w", job, build, err)
	}
	return &data, nil
}

// FindArtifacts returns the artifacts whose file name matches glob. An
// empty glob matches everything.
func FindArtifacts(data *BuildData, glob string) ([]Artifact, error) {
	if glob == "" {
		glob = "*"
	}
	var found []Artifact
	for _, a := range data.Artifacts {
		ok, err := path.Match(glob, a.FileName)
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", glob, err)
		}
		if ok {
			found = append(found, Artifact{
				FileName: a.FileName,
				Location: data.URL + "artifact/" + a.FileName,
			})
		}
	}
	return found, nil
}

// ListArtifacts returns the artifacts of a build matching glob
func (c *Client) ListArtifacts(ctx context.Context, job, build, glob string) ([]Artifact, error) {
	data, err := c.BuildData(ctx, job, build)
	if err != nil {
		return nil, err
	}
	return FindArtifacts(data, glob)
}
