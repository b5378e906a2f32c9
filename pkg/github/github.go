// Package github talks to the GitHub releases API: the engine and the IWAD
// come from public releases, and deploy publishes the mod's own artifacts to
// the dist repo's releases.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"doomstrap/pkg/fetch"
)

const apiBase = "https://api.github.com"

// ErrNoAsset means no release asset matched the requested name tokens.
var ErrNoAsset = errors.New("no matching release asset")

// Asset is a downloadable file attached to a release.
type Asset struct {
	Name               string `json:"name"`
	Size               int64  `json:"size"`
	Digest             string `json:"digest"` // "sha256:<hex>" when the API provides it
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Release is the subset of the release object the launcher cares about.
type Release struct {
	ID      int64   `json:"id"`
	TagName string  `json:"tag_name"`
	Name    string  `json:"name"`
	HTMLURL string  `json:"html_url"`
	Assets  []Asset `json:"assets"`
}

// Client issues authenticated requests when GITHUB_TOKEN is set and
// anonymous ones otherwise. BaseURL and UploadURL default to the public API
// and exist so tests can point at an httptest server.
type Client struct {
	HTTP      *http.Client
	BaseURL   string
	UploadURL string
	Token     string
}

// New builds a client on top of the shared fetch client, picking up
// GITHUB_TOKEN from the environment.
func New(fc *fetch.Client) *Client {
	return &Client{
		HTTP:  fc.HTTP(),
		Token: os.Getenv("GITHUB_TOKEN"),
	}
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return apiBase
}

func (c *Client) uploadBase() string {
	if c.UploadURL != "" {
		return c.UploadURL
	}
	return "https://uploads.github.com"
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, contentType string, out any) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "doomstrap")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", fetch.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &fetch.StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// LatestRelease fetches the latest published release of owner/repo.
func (c *Client) LatestRelease(ctx context.Context, repo string) (*Release, error) {
	var rel Release
	url := fmt.Sprintf("%s/repos/%s/releases/latest", c.base(), repo)
	if err := c.do(ctx, http.MethodGet, url, nil, "", &rel); err != nil {
		return nil, fmt.Errorf("failed to fetch latest release of %s: %w", repo, err)
	}
	return &rel, nil
}

// ReleaseByTag fetches the release published under tag.
func (c *Client) ReleaseByTag(ctx context.Context, repo, tag string) (*Release, error) {
	var rel Release
	url := fmt.Sprintf("%s/repos/%s/releases/tags/%s", c.base(), repo, tag)
	if err := c.do(ctx, http.MethodGet, url, nil, "", &rel); err != nil {
		return nil, fmt.Errorf("failed to fetch release %s of %s: %w", tag, repo, err)
	}
	return &rel, nil
}

// CreateRelease publishes a new release with the given tag and title.
func (c *Client) CreateRelease(ctx context.Context, repo, tag, name, notes string) (*Release, error) {
	payload, err := json.Marshal(map[string]any{
		"tag_name":   tag,
		"name":       name,
		"body":       notes,
		"draft":      false,
		"prerelease": false,
	})
	if err != nil {
		return nil, err
	}

	var rel Release
	url := fmt.Sprintf("%s/repos/%s/releases", c.base(), repo)
	if err := c.do(ctx, http.MethodPost, url, payload, "application/json", &rel); err != nil {
		return nil, fmt.Errorf("failed to create release %s on %s: %w", tag, repo, err)
	}
	return &rel, nil
}

// UploadAsset attaches the raw bytes as a named asset of a release and
// returns the stored asset record.
func (c *Client) UploadAsset(ctx context.Context, repo string, releaseID int64, name string, data []byte) (*Asset, error) {
	var asset Asset
	u := fmt.Sprintf("%s/repos/%s/releases/%d/assets?name=%s",
		c.uploadBase(), repo, releaseID, url.QueryEscape(name))
	if err := c.do(ctx, http.MethodPost, u, data, "application/octet-stream", &asset); err != nil {
		return nil, fmt.Errorf("failed to upload asset %s: %w", name, err)
	}
	return &asset, nil
}

// FindAsset returns the first asset whose name contains every token,
// case-insensitively. ErrNoAsset lists the available names so a failed match
// is debuggable from the log line alone.
func FindAsset(rel *Release, tokens ...string) (*Asset, error) {
	for i := range rel.Assets {
		name := strings.ToLower(rel.Assets[i].Name)
		ok := true
		for _, tok := range tokens {
			if !strings.Contains(name, strings.ToLower(tok)) {
				ok = false
				break
			}
		}
		if ok {
			return &rel.Assets[i], nil
		}
	}
	names := make([]string, len(rel.Assets))
	for i, a := range rel.Assets {
		names[i] = a.Name
	}
	return nil, fmt.Errorf("%w: tokens %v, available %v", ErrNoAsset, tokens, names)
}

// FindAssetByName returns the asset with exactly the given name.
func FindAssetByName(rel *Release, name string) (*Asset, error) {
	for i := range rel.Assets {
		if rel.Assets[i].Name == name {
			return &rel.Assets[i], nil
		}
	}
	return nil, fmt.Errorf("%w: name %q", ErrNoAsset, name)
}

// SplitDigest splits an API asset digest of the form "algo:hex". Both parts
// are empty when the API sent none.
func SplitDigest(digest string) (algo, hash string) {
	parts := strings.SplitN(digest, ":", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}
