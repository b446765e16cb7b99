// Package client is the operator-side API client used by dloperctl.
package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/DanielTwine/dloperOS/internal/apperr"
	"github.com/DanielTwine/dloperOS/internal/models"
)

// ErrNotLoggedIn is returned by calls that need a token when none is set.
var ErrNotLoggedIn = errors.New("not logged in")

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
}

// Client talks to a panel over HTTP(S).
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New returns a client for baseURL. When caFile is set, server
// certificates are verified against it instead of the system pool.
func New(baseURL, caFile string) (*Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if caFile != "" {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA cert")
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Transport: transport, Timeout: 5 * time.Minute},
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

// do sends req and decodes a JSON response into out.
func (c *Client) do(req *http.Request, out any) (err error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { err = multierr.Append(err, resp.Body.Close()) }()
	if err := checkResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body apperr.Body
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return &APIError{Status: resp.StatusCode, Code: body.Code, Message: body.Error}
	}
	return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
}

// Login exchanges credentials for a token and keeps it on the client.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{"username": {username}, "password": {password}}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(req, &tok); err != nil {
		return "", err
	}
	c.Token = tok.AccessToken
	return tok.AccessToken, nil
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	if c.Token == "" {
		return nil, ErrNotLoggedIn
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/api/auth/me", nil)
	if err != nil {
		return nil, err
	}
	var u models.User
	return &u, c.do(req, &u)
}

func (c *Client) Files(ctx context.Context) ([]models.SharedLink, error) {
	if c.Token == "" {
		return nil, ErrNotLoggedIn
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/api/files", nil)
	if err != nil {
		return nil, err
	}
	var links []models.SharedLink
	return links, c.do(req, &links)
}

// UploadOptions are the optional link settings sent with an upload.
type UploadOptions struct {
	Password     string
	MaxDownloads int
	ExpiresAt    *time.Time
}

// Upload streams the file at path to the panel and returns the new link.
func (c *Client) Upload(ctx context.Context, path string, opts UploadOptions) (*models.SharedLink, error) {
	if c.Token == "" {
		return nil, ErrNotLoggedIn
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUpload(mw, f, filepath.Base(path), opts))
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/api/files/upload", pr)
	if err != nil {
		_ = pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var link models.SharedLink
	if err := c.do(req, &link); err != nil {
		_ = pr.CloseWithError(err)
		return nil, err
	}
	return &link, nil
}

func writeUpload(mw *multipart.Writer, r io.Reader, filename string, opts UploadOptions) error {
	if opts.Password != "" {
		if err := mw.WriteField("password", opts.Password); err != nil {
			return err
		}
	}
	if opts.MaxDownloads > 0 {
		if err := mw.WriteField("max_downloads", fmt.Sprint(opts.MaxDownloads)); err != nil {
			return err
		}
	}
	if opts.ExpiresAt != nil {
		if err := mw.WriteField("expires_at", opts.ExpiresAt.UTC().Format(time.RFC3339)); err != nil {
			return err
		}
	}
	fw, err := mw.CreateFormFile("upload", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return err
	}
	return mw.Close()
}

func publicPath(id, suffix, password string) string {
	p := "/files/" + url.PathEscape(id) + suffix
	if password != "" {
		p += "?" + url.Values{"password": {password}}.Encode()
	}
	return p
}

// Meta fetches the public metadata of a shared file.
func (c *Client) Meta(ctx context.Context, id, password string) (*models.LinkMetadata, error) {
	req, err := c.newRequest(ctx, http.MethodGet, publicPath(id, "/meta", password), nil)
	if err != nil {
		return nil, err
	}
	var m models.LinkMetadata
	return &m, c.do(req, &m)
}

// Fetch downloads a shared file into dest and returns the bytes written.
// A failed transfer removes the partial file.
func (c *Client) Fetch(ctx context.Context, id, password, dest string) (n int64, err error) {
	req, err := c.newRequest(ctx, http.MethodGet, publicPath(id, "", password), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { err = multierr.Append(err, resp.Body.Close()) }()
	if err := checkResponse(resp); err != nil {
		return 0, err
	}

	out, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	n, err = io.Copy(out, resp.Body)
	if err = multierr.Append(err, out.Close()); err != nil {
		return n, multierr.Append(err, os.Remove(dest))
	}
	return n, nil
}
