package tools

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SEOAudit checks a page's title, meta description, heading structure, and
// image alt-text coverage. It backs the `seo_audit` tool (default budget 1
// — the spec's narrowest budget, since one pass covers a whole site-level
// question).
type SEOAudit struct {
	client *http.Client
}

func NewSEOAudit(client *http.Client) *SEOAudit {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &SEOAudit{client: client}
}

func (t *SEOAudit) Name() string      { return "seo_audit" }
func (t *SEOAudit) DefaultBudget() int { return 1 }

func (t *SEOAudit) ValidateParams(params map[string]any) error {
	url, _ := params["url"].(string)
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("seo_audit requires a non-empty \"url\" parameter")
	}
	return nil
}

func (t *SEOAudit) Invoke(ctx context.Context, params map[string]any) Result {
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
		return ErrResult("http", fmt.Sprintf("seo_audit: %s returned %d", url, resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ErrResult("parse", err.Error())
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	description, _ := doc.Find(`meta[name="description"]`).First().Attr("content")
	h1Count := doc.Find("h1").Length()

	totalImages := 0
	missingAlt := 0
	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		totalImages++
		alt, exists := img.Attr("alt")
		if !exists || strings.TrimSpace(alt) == "" {
			missingAlt++
		}
	})

	altCoverage := 1.0
	if totalImages > 0 {
		altCoverage = float64(totalImages-missingAlt) / float64(totalImages)
	}

	observations := map[string]any{
		"seo_title_present":       title != "",
		"seo_meta_description_present": description != "",
		"seo_h1_count":            h1Count,
		"seo_alt_coverage":        altCoverage,
	}

	return Result{
		OK:           true,
		Observations: observations,
		ConfidenceByKey: map[string]float64{
			"seo_title_present":             0.95,
			"seo_meta_description_present":  0.95,
			"seo_h1_count":                  0.9,
			"seo_alt_coverage":               0.8,
		},
		EstTokens: 300,
	}
}
