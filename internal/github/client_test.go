package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient("tok", "acme", "app", WithBaseURL(srv.URL), WithRetryDelays(time.Millisecond, time.Millisecond))
	require.NoError(t, err)
	return c
}

func fileJSON(content, sha string) string {
	b, _ := json.Marshal(map[string]string{
		"type":     "file",
		"encoding": "base64",
		"content":  base64.StdEncoding.EncodeToString([]byte(content)),
		"sha":      sha,
	})
	return string(b)
}

func TestNewClientRequiresRepo(t *testing.T) {
	_, err := NewClient("tok", "", "app")
	require.Error(t, err)
}

func TestGetRef(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/app/git/ref/heads/main", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"ref":"refs/heads/main","object":{"sha":"abc123","type":"commit"}}`)
	})
	sha, err := c.GetRef(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, "abc123", sha)
}

func TestCreateRef(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/repos/acme/app/git/refs", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"ref":"refs/heads/fix","object":{"sha":"abc123"}}`)
	})
	require.NoError(t, c.CreateRef(context.Background(), "fix", "abc123"))
	assert.Equal(t, "refs/heads/fix", body["ref"])
	assert.Equal(t, "abc123", body["sha"])
}

func TestReadFile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/app/contents/src/app.py", r.URL.Path)
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		_, _ = io.WriteString(w, fileJSON("import os\n", "s1"))
	})
	content, err := c.ReadFile(context.Background(), "src/app.py", "main")
	require.NoError(t, err)
	assert.Equal(t, "import os\n", content)

	data, err := c.Source("main").ReadFile(context.Background(), "src/app.py")
	require.NoError(t, err)
	assert.Equal(t, "import os\n", string(data))
}

func TestCommitFileUpdatesExisting(t *testing.T) {
	var put map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "fix", r.URL.Query().Get("ref"))
			_, _ = io.WriteString(w, fileJSON("old\n", "sha-old"))
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&put))
			_, _ = io.WriteString(w, `{"content":{"sha":"sha-new"}}`)
		default:
			t.Errorf("unexpected %s", r.Method)
		}
	})
	require.NoError(t, c.CommitFile(context.Background(), "a.py", "new\n", "fix", "fix a.py"))
	assert.Equal(t, "sha-old", put["sha"])
	assert.Equal(t, "fix", put["branch"])
	assert.Equal(t, "fix a.py", put["message"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("new\n")), put["content"])
}

func TestCommitFileCreatesMissing(t *testing.T) {
	var put map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"message":"Not Found"}`)
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&put))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"content":{"sha":"sha-new"}}`)
	})
	require.NoError(t, c.CommitFile(context.Background(), "new.py", "x = 1\n", "fix", "add"))
	_, hasSHA := put["sha"]
	assert.False(t, hasSHA)
}

func TestCreatePullRequest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/app/pulls", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "fix", body["head"])
		assert.Equal(t, "main", body["base"])
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"number":7,"html_url":"https://github.com/acme/app/pull/7"}`)
	})
	pr, err := c.CreatePullRequest(context.Background(), "fix", "main", "title", "body")
	require.NoError(t, err)
	assert.Equal(t, 7, pr.Number)
	assert.Equal(t, "https://github.com/acme/app/pull/7", pr.URL)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, `{"message":"bad gateway"}`)
			return
		}
		_, _ = io.WriteString(w, `{"object":{"sha":"ok"}}`)
	})
	sha, err := c.GetRef(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, "ok", sha)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestGivesUpAfterRetries(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"message":"down"}`)
	})
	_, err := c.GetRef(context.Background(), "main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error 503: down")
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"message":"Reference already exists"}`)
	})
	err := c.CreateRef(context.Background(), "fix", "abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "Reference already exists")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Not Found"}`)
	})
	_, err := c.ReadFile(context.Background(), "missing.py", "main")
	assert.True(t, errors.Is(err, ErrNotFound))
}
