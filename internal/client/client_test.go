package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanielTwine/dloperOS/internal/apperr"
	"github.com/DanielTwine/dloperOS/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fakePanel serves the subset of the API used by the CLI.
func fakePanel(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.PostFormValue("username") != "admin" || r.PostFormValue("password") != "pw" {
			writeJSON(w, http.StatusUnauthorized, apperr.Body{Error: "Invalid credentials", Code: "unauthenticated"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "tok", "token_type": "bearer"})
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			writeJSON(w, http.StatusUnauthorized, apperr.Body{Error: "Invalid token", Code: "unauthenticated"})
			return
		}
		writeJSON(w, http.StatusOK, models.User{Username: "admin", Role: models.RoleOwner})
	})
	mux.HandleFunc("POST /api/files/upload", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("upload")
		if !assert.NoError(t, err) {
			return
		}
		data, _ := io.ReadAll(file)
		writeJSON(w, http.StatusOK, models.SharedLink{
			ID:                "abc",
			Filename:          header.Filename + ":" + string(data),
			PasswordProtected: r.FormValue("password") != "",
		})
	})
	mux.HandleFunc("GET /files/{id}/meta", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.LinkMetadata{ID: r.PathValue("id"), Filesize: 5})
	})
	mux.HandleFunc("GET /files/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("password") != "pw" {
			writeJSON(w, http.StatusUnauthorized, apperr.Body{Error: "Password required", Code: "password_required"})
			return
		}
		_, _ = w.Write([]byte("hello"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_LoginAndMe(t *testing.T) {
	srv := fakePanel(t)
	c, err := New(srv.URL+"/", "")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Me(ctx)
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	_, err = c.Login(ctx, "admin", "wrong")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "unauthenticated", apiErr.Code)

	tok, err := c.Login(ctx, "admin", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)

	u, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Username)
}

func TestClient_UploadMetaFetch(t *testing.T) {
	srv := fakePanel(t)
	c, err := New(srv.URL, "")
	require.NoError(t, err)
	c.Token = "tok"
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o600))
	link, err := c.Upload(ctx, src, UploadOptions{Password: "pw", MaxDownloads: 3})
	require.NoError(t, err)
	assert.Equal(t, "notes.txt:data", link.Filename)
	assert.True(t, link.PasswordProtected)

	meta, err := c.Meta(ctx, "abc", "")
	require.NoError(t, err)
	assert.Equal(t, int64(5), meta.Filesize)

	dest := filepath.Join(t.TempDir(), "out.txt")
	_, err = c.Fetch(ctx, "abc", "", dest)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "password_required", apiErr.Code)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))

	n, err := c.Fetch(ctx, "abc", "pw", dest)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestSession_SaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".dloperctl", "session.json")

	s, err := LoadSession(path)
	require.NoError(t, err)
	assert.Equal(t, &Session{}, s)

	want := &Session{BaseURL: "https://panel", Username: "admin", Token: "tok"}
	require.NoError(t, want.Save(path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := LoadSession(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, ClearSession(path))
	require.NoError(t, ClearSession(path))
	got, err = LoadSession(path)
	require.NoError(t, err)
	assert.Empty(t, got.Token)
}

func TestReadPassword_FromPipe(t *testing.T) {
	var out bytes.Buffer
	pw, err := ReadPassword(&out, "Password: ", -1, bufio.NewReader(strings.NewReader("s3cret\r\nnext\n")))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)
	assert.Equal(t, "Password: ", out.String())

	_, err = ReadPassword(&out, "Password: ", -1, bufio.NewReader(strings.NewReader("")))
	assert.ErrorIs(t, err, io.EOF)
}
