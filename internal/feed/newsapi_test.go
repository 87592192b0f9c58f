package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/fwrd-news/internal/config"
)

const headlinesBody = `{
  "status": "ok",
  "totalResults": 2,
  "articles": [
    {
      "source": {"id": "bbc-news", "name": "BBC News"},
      "author": "Jane Doe",
      "title": "First",
      "description": "first desc",
      "url": "https://news.example.org/1",
      "urlToImage": "https://img.example.org/1.jpg",
      "publishedAt": "2024-05-01T10:00:00Z",
      "content": "first body"
    },
    {
      "source": {"id": null, "name": "Blog"},
      "author": null,
      "title": null,
      "description": null,
      "url": null,
      "urlToImage": null,
      "publishedAt": null,
      "content": null
    }
  ]
}`

func TestClient_FetchHeadlines(t *testing.T) {
	var got *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(headlinesBody))
	}))
	defer server.Close()

	c := NewClient("secret", WithBaseURL(server.URL), WithCountry("de"), WithUserAgent("ua-test"))
	page, err := c.FetchHeadlines(context.Background(), 2, 20)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "/top-headlines", got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "de", q.Get("country"))
	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "20", q.Get("pageSize"))
	assert.Equal(t, "secret", q.Get("apiKey"))
	assert.Equal(t, "ua-test", got.Header.Get("User-Agent"))

	assert.Equal(t, "ok", page.Status)
	assert.Equal(t, 2, page.TotalResults)
	require.Len(t, page.Articles, 2)

	first := page.Articles[0]
	assert.Equal(t, "https://news.example.org/1", first.URL)
	assert.Equal(t, "First", first.Title)
	assert.Equal(t, "Jane Doe", first.Author)
	assert.Equal(t, "https://img.example.org/1.jpg", first.ImageURL)
	assert.Equal(t, "BBC News", first.SourceName())
	assert.Equal(t, "bbc-news", first.Source.ID)

	second := page.Articles[1]
	assert.Empty(t, second.URL)
	assert.Empty(t, second.Title)
	assert.Equal(t, "Blog", second.SourceName())
	assert.Empty(t, second.Source.ID)
}

func TestClient_FetchSearch(t *testing.T) {
	var got *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Write([]byte(`{"status":"ok","totalResults":0,"articles":[]}`))
	}))
	defer server.Close()

	c := NewClient("secret", WithBaseURL(server.URL))
	page, err := c.FetchSearch(context.Background(), "bitcoin price", 1, 20)
	require.NoError(t, err)
	assert.Empty(t, page.Articles)

	assert.Equal(t, "/everything", got.URL.Path)
	assert.Equal(t, "bitcoin price", got.URL.Query().Get("q"))
	assert.Equal(t, "1", got.URL.Query().Get("page"))
	assert.Empty(t, got.URL.Query().Get("country"))
}

func TestClient_MissingArticles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","totalResults":0}`))
	}))
	defer server.Close()

	page, err := NewClient("k", WithBaseURL(server.URL)).FetchHeadlines(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.Empty(t, page.Articles)
}

func TestClient_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid."}`))
	}))
	defer server.Close()

	_, err := NewClient("bad", WithBaseURL(server.URL)).FetchHeadlines(context.Background(), 1, 20)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Equal(t, "apiKeyInvalid", httpErr.Code)
	assert.Equal(t, "Your API key is invalid.", httpErr.Message)
	assert.Contains(t, err.Error(), "401")
}

func TestClient_ServerErrorWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient("k", WithBaseURL(server.URL)).FetchSearch(context.Background(), "x", 1, 20)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.Equal(t, "HTTP error: 500", httpErr.Error())
}

func TestClient_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":`))
	}))
	defer server.Close()

	_, err := NewClient("k", WithBaseURL(server.URL)).FetchHeadlines(context.Background(), 1, 20)
	require.Error(t, err)
	var httpErr *HTTPError
	assert.False(t, errors.As(err, &httpErr))
}

func TestClient_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient("k", WithBaseURL(server.URL)).FetchHeadlines(ctx, 1, 20)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.TestConfig(t.TempDir(), "http://127.0.0.1:9999")
	f, err := NewFromConfig(cfg)
	require.NoError(t, err)
	assert.IsType(t, &Client{}, f)

	cfg.API.Provider = config.ProviderRSS
	cfg.RSS.URL = "http://127.0.0.1:9999/feed.xml"
	f, err = NewFromConfig(cfg)
	require.NoError(t, err)
	assert.IsType(t, &RSSSource{}, f)

	cfg.API.AllowLocalhost = false
	_, err = NewFromConfig(cfg)
	assert.Error(t, err)

	cfg.API.Provider = "gdelt"
	_, err = NewFromConfig(cfg)
	assert.Error(t, err)
}
