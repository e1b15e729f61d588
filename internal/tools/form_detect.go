package tools

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FormDetect enumerates HTML forms on a page: action, method, field names,
// and associated labels. It backs the `form_detect` tool (default budget 3).
type FormDetect struct {
	client *http.Client
}

func NewFormDetect(client *http.Client) *FormDetect {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &FormDetect{client: client}
}

func (t *FormDetect) Name() string      { return "form_detect" }
func (t *FormDetect) DefaultBudget() int { return 3 }

func (t *FormDetect) ValidateParams(params map[string]any) error {
	url, _ := params["url"].(string)
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("form_detect requires a non-empty \"url\" parameter")
	}
	return nil
}

type detectedForm struct {
	Action string   `json:"action"`
	Method string   `json:"method"`
	Fields []string `json:"fields"`
}

func (t *FormDetect) Invoke(ctx context.Context, params map[string]any) Result {
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
		return ErrResult("http", fmt.Sprintf("form_detect: %s returned %d", url, resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ErrResult("parse", err.Error())
	}

	var forms []detectedForm
	var allFields []string
	var contactURL string

	doc.Find("form").Each(func(_ int, form *goquery.Selection) {
		action, _ := form.Attr("action")
		method, _ := form.Attr("method")
		if method == "" {
			method = "get"
		}

		var fields []string
		form.Find("input, select, textarea").Each(func(_ int, field *goquery.Selection) {
			name, ok := field.Attr("name")
			if !ok || strings.TrimSpace(name) == "" {
				return
			}
			fields = append(fields, name)
			allFields = append(allFields, name)
		})

		forms = append(forms, detectedForm{Action: action, Method: strings.ToLower(method), Fields: fields})

		lower := strings.ToLower(action)
		if contactURL == "" && (strings.Contains(lower, "contact") || strings.Contains(strings.ToLower(form.Text()), "contact")) {
			contactURL = url
		}
	})

	if len(forms) == 0 {
		return Result{OK: true, Observations: map[string]any{}, EstTokens: 150}
	}

	observations := map[string]any{
		"existing_fields": allFields,
		"forms_detected":  forms,
	}
	if contactURL != "" {
		observations["contact_form_url"] = contactURL
	}

	return Result{
		OK:           true,
		Observations: observations,
		ConfidenceByKey: map[string]float64{
			"existing_fields":  0.9,
			"forms_detected":   0.9,
			"contact_form_url": 0.8,
		},
		EstTokens: 350,
	}
}
