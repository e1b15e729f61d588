package tools

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FetchPage retrieves a single web page and returns a short summary: title,
// meta description, and the first few paragraphs of visible text. It backs
// the `fetch_page` tool (spec §4.1, default budget 5).
type FetchPage struct {
	client *http.Client
}

// NewFetchPage constructs a FetchPage tool using client for outbound
// requests. If client is nil, a default retrying client is built.
func NewFetchPage(client *http.Client) *FetchPage {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &FetchPage{client: client}
}

func (t *FetchPage) Name() string      { return "fetch_page" }
func (t *FetchPage) DefaultBudget() int { return 5 }

func (t *FetchPage) ValidateParams(params map[string]any) error {
	url, _ := params["url"].(string)
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("fetch_page requires a non-empty \"url\" parameter")
	}
	return nil
}

func (t *FetchPage) Invoke(ctx context.Context, params map[string]any) Result {
	url, _ := params["url"].(string)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ErrResult("invalid_input", err.Error())
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return ErrResult("http", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return ErrResult("http", fmt.Sprintf("fetch_page: %s returned %d", url, resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ErrResult("parse", err.Error())
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	description, _ := doc.Find(`meta[name="description"]`).First().Attr("content")

	var paragraphs []string
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
		return len(paragraphs) < 5
	})

	observations := map[string]any{
		"page_title":          title,
		"page_meta_description": strings.TrimSpace(description),
		"page_summary":        strings.Join(paragraphs, " "),
		"page_url":            url,
	}

	return Result{
		OK:           true,
		Observations: observations,
		ConfidenceByKey: map[string]float64{
			"page_title":             0.95,
			"page_meta_description":  0.85,
			"page_summary":           0.7,
			"page_url":               1.0,
		},
		EstTokens: 400,
	}
}
