// Package notify publishes posts to Bluesky over the AT Protocol XRPC endpoints.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"crash_watcher/internal/retry"
	"crash_watcher/internal/roadway"
)

const (
	DefaultPDS     = "https://bsky.social"
	postCollection = "app.bsky.feed.post"

	defaultLinkTitle       = "View on Google Maps"
	defaultLinkDescription = "Click to view location on Google Maps"
)

var ErrNoCredentials = errors.New("bluesky handle or app password not set")

// Link is an external link card.
type Link struct {
	URI         string
	Title       string
	Description string
}

// Image is a local file uploaded as a blob and attached to the post.
type Image struct {
	Path string
	Alt  string
}

// Post carries at most one embed. Image wins over Link; if the upload fails the
// post falls back to Link, then to plain text.
type Post struct {
	Text  string
	Link  *Link
	Image *Image
}

// Client talks to a single PDS. A new session is created for every attempt.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Policy  retry.Policy
	Logger  *slog.Logger
	Now     func() time.Time
}

func New(baseURL string, policy retry.Policy, logger *slog.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultPDS
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Policy:  policy,
		Logger:  logger,
		Now:     time.Now,
	}
}

// Send publishes post as creds.Handle, retrying with backoff. It returns nil only
// once the record is created.
func (c *Client) Send(ctx context.Context, creds roadway.Credentials, post Post) error {
	if !creds.Complete() {
		c.Logger.Error("cannot post without credentials")
		return ErrNoCredentials
	}
	logger := c.Logger.With("handle", creds.Handle)
	_, err := retry.Do(ctx, c.Policy, logger, "bluesky post", func(ctx context.Context) (string, error) {
		return c.sendOnce(ctx, creds, post)
	})
	if err != nil {
		return err
	}
	logger.Info("posted to bluesky")
	return nil
}

func (c *Client) sendOnce(ctx context.Context, creds roadway.Credentials, post Post) (string, error) {
	sess, err := c.createSession(ctx, creds)
	if err != nil {
		return "", err
	}
	var embed any
	if post.Image != nil && post.Image.Path != "" {
		img, err := c.imageEmbed(ctx, sess, *post.Image)
		if err != nil {
			c.Logger.Error("image upload failed, skipping image embed", "path", post.Image.Path, "err", err)
		} else {
			embed = img
		}
	}
	if embed == nil && post.Link != nil && post.Link.URI != "" {
		embed = linkEmbed(*post.Link)
	}
	record := map[string]any{
		"$type":     postCollection,
		"text":      post.Text,
		"createdAt": c.Now().UTC().Format(time.RFC3339Nano),
	}
	if embed != nil {
		record["embed"] = embed
	}
	body := map[string]any{
		"repo":       sess.DID,
		"collection": postCollection,
		"record":     record,
	}
	var out struct {
		URI string `json:"uri"`
	}
	if err := c.xrpcJSON(ctx, "com.atproto.repo.createRecord", sess.AccessJwt, body, &out); err != nil {
		return "", fmt.Errorf("create record: %w", err)
	}
	return out.URI, nil
}

type session struct {
	AccessJwt string `json:"accessJwt"`
	DID       string `json:"did"`
	Handle    string `json:"handle"`
}

func (c *Client) createSession(ctx context.Context, creds roadway.Credentials) (session, error) {
	var sess session
	body := map[string]string{"identifier": creds.Handle, "password": creds.AppPassword}
	if err := c.xrpcJSON(ctx, "com.atproto.server.createSession", "", body, &sess); err != nil {
		return session{}, fmt.Errorf("create session: %w", err)
	}
	if sess.AccessJwt == "" || sess.DID == "" {
		return session{}, errors.New("create session: empty token or did")
	}
	return sess, nil
}

func (c *Client) imageEmbed(ctx context.Context, sess session, img Image) (map[string]any, error) {
	data, err := os.ReadFile(img.Path)
	if err != nil {
		return nil, err
	}
	mime, ok := MimeType(img.Path)
	if !ok {
		c.Logger.Warn("unknown image type, defaulting to image/jpeg", "path", img.Path)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("com.atproto.repo.uploadBlob"), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mime)
	req.Header.Set("Authorization", "Bearer "+sess.AccessJwt)
	var out struct {
		Blob json.RawMessage `json:"blob"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}
	if len(out.Blob) == 0 {
		return nil, errors.New("upload blob: empty response")
	}
	c.Logger.Info("uploaded image", "path", img.Path, "mime", mime)
	return map[string]any{
		"$type": "app.bsky.embed.images",
		"images": []map[string]any{
			{"alt": img.Alt, "image": out.Blob},
		},
	}, nil
}

func linkEmbed(l Link) map[string]any {
	title := l.Title
	if title == "" {
		title = defaultLinkTitle
	}
	desc := l.Description
	if desc == "" {
		desc = defaultLinkDescription
	}
	return map[string]any{
		"$type": "app.bsky.embed.external",
		"external": map[string]string{
			"uri":         l.URI,
			"title":       title,
			"description": desc,
		},
	}
}

// MimeType picks a content type from the file extension. ok is false when it had to guess.
func MimeType(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png", true
	case ".jpg", ".jpeg":
		return "image/jpeg", true
	case ".gif":
		return "image/gif", true
	}
	return "image/jpeg", false
}

func (c *Client) endpoint(method string) string {
	return c.BaseURL + "/xrpc/" + method
}

func (c *Client) xrpcJSON(ctx context.Context, method, token string, in, out any) error {
	buf, err := json.Marshal(in)
	if err != nil {
		return retry.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(method), bytes.NewReader(buf))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req, out)
}

// do executes req and decodes a JSON body into out. Client errors other than
// 408 and 429 are permanent.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("bluesky status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Permanent(err)
		}
		return err
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
