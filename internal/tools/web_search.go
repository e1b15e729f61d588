package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// WebSearch performs a general-web factual search against a configurable
// search endpoint. It backs the `web_search` tool (default budget 3).
type WebSearch struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

func NewWebSearch(client *http.Client, endpoint, apiKey string) *WebSearch {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &WebSearch{client: client, endpoint: endpoint, apiKey: apiKey}
}

func (t *WebSearch) Name() string      { return "web_search" }
func (t *WebSearch) DefaultBudget() int { return 3 }

func (t *WebSearch) ValidateParams(params map[string]any) error {
	query, _ := params["query"].(string)
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("web_search requires a non-empty \"query\" parameter")
	}
	return nil
}

type webSearchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Snippet string `json:"snippet"`
	} `json:"results"`
}

func (t *WebSearch) Invoke(ctx context.Context, params map[string]any) Result {
	query, _ := params["query"].(string)
	if t.endpoint == "" {
		return ErrResult("invalid_input", "web_search: no search endpoint configured")
	}

	reqURL := t.endpoint + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return ErrResult("invalid_input", err.Error())
	}
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return ErrResult("http", err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return ErrResult("http", fmt.Sprintf("web_search: endpoint returned %d", resp.StatusCode))
	}

	var parsed webSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ErrResult("parse", err.Error())
	}

	if len(parsed.Results) == 0 {
		return Result{OK: true, Observations: map[string]any{}, EstTokens: 100}
	}

	top := parsed.Results[0]
	observations := map[string]any{
		"search_top_result_title":   top.Title,
		"search_top_result_url":     top.URL,
		"search_top_result_snippet": top.Snippet,
	}

	return Result{
		OK:           true,
		Observations: observations,
		ConfidenceByKey: map[string]float64{
			"search_top_result_title":   0.6,
			"search_top_result_url":     0.6,
			"search_top_result_snippet": 0.5,
		},
		EstTokens: 300,
	}
}
