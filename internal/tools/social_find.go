package tools

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SocialFind extracts outbound social-platform links from a page's HTML. It
// backs the `social_find` tool (default budget 2).
type SocialFind struct {
	client *http.Client
}

func NewSocialFind(client *http.Client) *SocialFind {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &SocialFind{client: client}
}

func (t *SocialFind) Name() string      { return "social_find" }
func (t *SocialFind) DefaultBudget() int { return 2 }

func (t *SocialFind) ValidateParams(params map[string]any) error {
	url, _ := params["url"].(string)
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("social_find requires a non-empty \"url\" parameter")
	}
	return nil
}

var socialDomains = map[string]string{
	"facebook.com":  "facebook",
	"instagram.com": "instagram",
	"twitter.com":   "twitter",
	"x.com":         "twitter",
	"linkedin.com":  "linkedin",
	"tiktok.com":    "tiktok",
	"youtube.com":   "youtube",
	"pinterest.com": "pinterest",
}

func (t *SocialFind) Invoke(ctx context.Context, params map[string]any) Result {
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
		return ErrResult("http", fmt.Sprintf("social_find: %s returned %d", url, resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ErrResult("parse", err.Error())
	}

	links := map[string]string{}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		lowerHref := strings.ToLower(href)
		for domain, platform := range socialDomains {
			if strings.Contains(lowerHref, domain) {
				if _, exists := links[platform]; !exists {
					links[platform] = href
				}
			}
		}
	})

	if len(links) == 0 {
		return Result{OK: true, Observations: map[string]any{}, EstTokens: 100}
	}

	observations := map[string]any{"social_links": links}
	return Result{
		OK:              true,
		Observations:    observations,
		ConfidenceByKey: map[string]float64{"social_links": 0.85},
		EstTokens:       200,
	}
}
