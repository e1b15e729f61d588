package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ReviewsLookup aggregates rating, review count, and recent review excerpts
// for a business. It backs the `reviews_lookup` tool (default budget 1). As
// with MapsLookup, no reviews-aggregation SDK exists in the example corpus,
// so this is a thin net/http JSON client.
type ReviewsLookup struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

func NewReviewsLookup(client *http.Client, endpoint, apiKey string) *ReviewsLookup {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &ReviewsLookup{client: client, endpoint: endpoint, apiKey: apiKey}
}

func (t *ReviewsLookup) Name() string      { return "reviews_lookup" }
func (t *ReviewsLookup) DefaultBudget() int { return 1 }

func (t *ReviewsLookup) ValidateParams(params map[string]any) error {
	business, _ := params["business_name"].(string)
	if strings.TrimSpace(business) == "" {
		return fmt.Errorf("reviews_lookup requires a non-empty \"business_name\" parameter")
	}
	return nil
}

type reviewsResponse struct {
	Rating    float64  `json:"rating"`
	Count     int      `json:"count"`
	Excerpts  []string `json:"excerpts"`
}

func (t *ReviewsLookup) Invoke(ctx context.Context, params map[string]any) Result {
	business, _ := params["business_name"].(string)
	if t.endpoint == "" {
		return ErrResult("invalid_input", "reviews_lookup: no reviews endpoint configured")
	}

	reqURL := t.endpoint + "?name=" + url.QueryEscape(business)
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
		return ErrResult("http", fmt.Sprintf("reviews_lookup: endpoint returned %d", resp.StatusCode))
	}

	var parsed reviewsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ErrResult("parse", err.Error())
	}

	if parsed.Count == 0 {
		return Result{OK: true, Observations: map[string]any{}, EstTokens: 100}
	}

	observations := map[string]any{
		"review_rating": parsed.Rating,
		"review_count":  parsed.Count,
	}
	if len(parsed.Excerpts) > 0 {
		observations["review_excerpts"] = parsed.Excerpts
	}

	return Result{
		OK:           true,
		Observations: observations,
		ConfidenceByKey: map[string]float64{
			"review_rating":   0.9,
			"review_count":    0.9,
			"review_excerpts": 0.7,
		},
		EstTokens: 250,
	}
}
