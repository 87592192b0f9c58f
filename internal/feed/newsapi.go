package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/samber/lo"

	"github.com/pders01/fwrd-news/internal/debuglog"
	"github.com/pders01/fwrd-news/internal/storage"
)

const defaultBaseURL = "https://newsapi.org/v2"

// Client talks to the News API. It is safe for concurrent use.
type Client struct {
	apiKey string
	opts   options
}

func NewClient(apiKey string, opts ...Option) *Client {
	return &Client{apiKey: apiKey, opts: newOptions(opts)}
}

// FetchHeadlines requests GET {base}/top-headlines for the configured country.
func (c *Client) FetchHeadlines(ctx context.Context, page, pageSize int) (*ArticlesPage, error) {
	params := url.Values{}
	if c.opts.country != "" {
		params.Set("country", c.opts.country)
	}
	return c.get(ctx, "top-headlines", params, page, pageSize)
}

// FetchSearch requests GET {base}/everything?q=query.
func (c *Client) FetchSearch(ctx context.Context, query string, page, pageSize int) (*ArticlesPage, error) {
	params := url.Values{}
	params.Set("q", query)
	return c.get(ctx, "everything", params, page, pageSize)
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, page, pageSize int) (*ArticlesPage, error) {
	params.Set("page", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("apiKey", c.apiKey)

	reqURL := c.opts.baseURL + "/" + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.opts.userAgent)
	req.Header.Set("Accept", "application/json")

	log := debuglog.WithFields(map[string]any{"endpoint": endpoint, "page": page, "page_size": pageSize})
	log.Debugf("requesting page")

	resp, err := c.opts.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := decodeError(resp)
		log.Warnf("request failed: %v", httpErr)
		return nil, httpErr
	}

	var body articlesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", endpoint, err)
	}

	result := body.page()
	log.Debugf("received %d articles", len(result.Articles))
	return result, nil
}

func decodeError(resp *http.Response) *HTTPError {
	httpErr := &HTTPError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return httpErr
	}
	var body errorResponse
	if json.Unmarshal(data, &body) == nil {
		httpErr.Code = body.Code
		httpErr.Message = body.Message
	}
	return httpErr
}

type errorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type articlesResponse struct {
	Status       string       `json:"status"`
	TotalResults int          `json:"totalResults"`
	Articles     []articleDTO `json:"articles"`
}

type sourceDTO struct {
	ID   *string `json:"id"`
	Name *string `json:"name"`
}

type articleDTO struct {
	Source      *sourceDTO `json:"source"`
	Author      *string    `json:"author"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	URL         *string    `json:"url"`
	URLToImage  *string    `json:"urlToImage"`
	PublishedAt *string    `json:"publishedAt"`
	Content     *string    `json:"content"`
}

func (r articlesResponse) page() *ArticlesPage {
	return &ArticlesPage{
		Status:       r.Status,
		TotalResults: r.TotalResults,
		Articles: lo.Map(r.Articles, func(dto articleDTO, _ int) storage.Article {
			return dto.article()
		}),
	}
}

// article maps the wire shape onto the domain value. Null title and url
// become empty strings.
func (d articleDTO) article() storage.Article {
	a := storage.Article{
		URL:         lo.FromPtr(d.URL),
		Title:       lo.FromPtr(d.Title),
		Description: lo.FromPtr(d.Description),
		Content:     lo.FromPtr(d.Content),
		ImageURL:    lo.FromPtr(d.URLToImage),
		PublishedAt: lo.FromPtr(d.PublishedAt),
		Author:      lo.FromPtr(d.Author),
	}
	if d.Source != nil {
		a.Source = &storage.Source{
			ID:   lo.FromPtr(d.Source.ID),
			Name: lo.FromPtr(d.Source.Name),
		}
	}
	return a
}
