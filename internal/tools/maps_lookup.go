package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// MapsLookup retrieves business hours, address, and phone number from a
// places-API-shaped endpoint. It backs the `maps_lookup` tool (default
// budget 1). No maps/places SDK exists anywhere in the example corpus, so
// this is a thin net/http JSON client against a configurable endpoint
// rather than a vendor-specific SDK call.
type MapsLookup struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

func NewMapsLookup(client *http.Client, endpoint, apiKey string) *MapsLookup {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &MapsLookup{client: client, endpoint: endpoint, apiKey: apiKey}
}

func (t *MapsLookup) Name() string      { return "maps_lookup" }
func (t *MapsLookup) DefaultBudget() int { return 1 }

func (t *MapsLookup) ValidateParams(params map[string]any) error {
	business, _ := params["business_name"].(string)
	if strings.TrimSpace(business) == "" {
		return fmt.Errorf("maps_lookup requires a non-empty \"business_name\" parameter")
	}
	return nil
}

type placesResponse struct {
	Address string            `json:"address"`
	Phone   string            `json:"phone"`
	Hours   map[string]string `json:"hours"`
}

func (t *MapsLookup) Invoke(ctx context.Context, params map[string]any) Result {
	business, _ := params["business_name"].(string)
	if t.endpoint == "" {
		return ErrResult("invalid_input", "maps_lookup: no places endpoint configured")
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
		return ErrResult("http", fmt.Sprintf("maps_lookup: endpoint returned %d", resp.StatusCode))
	}

	var parsed placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ErrResult("parse", err.Error())
	}

	observations := map[string]any{}
	confidence := map[string]float64{}
	if parsed.Address != "" {
		observations["business_address"] = parsed.Address
		confidence["business_address"] = 0.9
	}
	if parsed.Phone != "" {
		observations["business_phone"] = parsed.Phone
		confidence["business_phone"] = 0.9
	}
	if len(parsed.Hours) > 0 {
		observations["business_hours"] = parsed.Hours
		confidence["business_hours"] = 0.85
	}

	return Result{OK: true, Observations: observations, ConfidenceByKey: confidence, EstTokens: 200}
}
