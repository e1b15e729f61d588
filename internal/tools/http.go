package tools

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// CatalogDeps bundles the shared collaborators DefaultCatalog wires into
// each tool: one retrying HTTP client for every tool that talks to the
// network, plus endpoint/API-key configuration for the two tools backed by
// external services this corpus has no dedicated SDK for (maps_lookup,
// reviews_lookup) and the general web_search tool.
type CatalogDeps struct {
	HTTPClient *http.Client

	WebSearchEndpoint string
	WebSearchAPIKey   string

	MapsEndpoint string
	MapsAPIKey   string

	ReviewsEndpoint string
	ReviewsAPIKey   string
}

// NewHTTPClient builds the retrying HTTP client shared by the HTTP-fetching
// tools. Retries here are a tool's own internal resilience against
// transient network failures; they are unrelated to (and do not override)
// the Executor's rule that a failed tool dispatch is never retried within
// the same enrichment iteration.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = nil
	retryClient.HTTPClient.Timeout = timeout
	return retryClient.StandardClient()
}
