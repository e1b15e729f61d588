package tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

// PDFExtract pulls text runs and heuristic colour/font hints out of a PDF
// attachment's raw bytes. It backs the `pdf_extract` tool (default budget
// 2). No PDF-parsing library exists anywhere in the example corpus, so this
// tool works directly against the PDF's content-stream byte layout: text
// inside `(...)  Tj` / `[...] TJ` show-text operators, `/BaseFont` entries
// for font family hints, and `rg`/`RG`/`sc`/`SC` colour operators for a
// brand-colour guess. This is deliberately a heuristic, not a full parser —
// it degrades to an empty (but OK) observation set on unsupported PDF
// encodings (compressed object streams) rather than erroring.
type PDFExtract struct{}

func NewPDFExtract() *PDFExtract { return &PDFExtract{} }

func (t *PDFExtract) Name() string      { return "pdf_extract" }
func (t *PDFExtract) DefaultBudget() int { return 2 }

func (t *PDFExtract) ValidateParams(params map[string]any) error {
	if _, ok := params["data"].([]byte); ok {
		return nil
	}
	if _, ok := params["data_base64"].(string); ok {
		return nil
	}
	return fmt.Errorf("pdf_extract requires \"data\" or \"data_base64\"")
}

var (
	pdfTextRunRE = regexp.MustCompile(`\(([^()\\]{2,200})\)\s*Tj`)
	pdfFontRE    = regexp.MustCompile(`/BaseFont\s*/([A-Za-z0-9+\-,]+)`)
	pdfRGBFillRE = regexp.MustCompile(`([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+rg`)
)

func (t *PDFExtract) Invoke(ctx context.Context, params map[string]any) Result {
	var data []byte
	if raw, ok := params["data"].([]byte); ok {
		data = raw
	} else if b64, ok := params["data_base64"].(string); ok {
		decoded, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return ErrResult("invalid_input", "pdf_extract: invalid base64 data")
		}
		data = decoded
	} else {
		return ErrResult("invalid_input", "pdf_extract requires PDF data")
	}

	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("%PDF-")) {
		return ErrResult("invalid_input", "pdf_extract: not a PDF file")
	}

	observations := map[string]any{}
	confidence := map[string]float64{}

	textMatches := pdfTextRunRE.FindAllSubmatch(data, 50)
	if len(textMatches) > 0 {
		var runs []string
		for _, m := range textMatches {
			runs = append(runs, string(m[1]))
		}
		observations["extracted_text"] = strings.Join(runs, " ")
		confidence["extracted_text"] = 0.75
	}

	fontMatches := pdfFontRE.FindAllSubmatch(data, 20)
	if len(fontMatches) > 0 {
		seen := map[string]bool{}
		var fonts []string
		for _, m := range fontMatches {
			name := normalizeFontName(string(m[1]))
			if name != "" && !seen[name] {
				seen[name] = true
				fonts = append(fonts, name)
			}
		}
		if len(fonts) > 0 {
			observations["fonts"] = fonts
			confidence["fonts"] = 0.8
		}
	}

	if colorMatches := pdfRGBFillRE.FindSubmatch(data); colorMatches != nil {
		hex := rgbTripleToHex(string(colorMatches[1]), string(colorMatches[2]), string(colorMatches[3]))
		if hex != "" {
			observations["brand_primary"] = hex
			confidence["brand_primary"] = 0.85
		}
	}

	if logoHint := bytes.Contains(data, []byte("/Image")) || bytes.Contains(data, []byte("/Subtype/Image")); logoHint {
		observations["logo_present"] = true
		confidence["logo_present"] = 0.6
	}

	return Result{
		OK:              true,
		Observations:    observations,
		ConfidenceByKey: confidence,
		EstTokens:       500,
	}
}

// normalizeFontName strips PDF subset-tag prefixes (e.g. "ABCDEF+Montserrat")
// and separator punctuation typical of embedded font PostScript names.
func normalizeFontName(raw string) string {
	if idx := strings.Index(raw, "+"); idx == 6 {
		raw = raw[idx+1:]
	}
	raw = strings.ReplaceAll(raw, ",", " ")
	raw = strings.ReplaceAll(raw, "-Bold", "")
	raw = strings.ReplaceAll(raw, "-Italic", "")
	raw = strings.ReplaceAll(raw, "-Regular", "")
	return strings.TrimSpace(raw)
}

func rgbTripleToHex(r, g, b string) string {
	toByte := func(s string) (int, bool) {
		var f float64
		if _, err := fmt.Sscan(s, &f); err != nil {
			return 0, false
		}
		if f < 0 || f > 1 {
			return 0, false
		}
		return int(f * 255), true
	}
	rv, ok1 := toByte(r)
	gv, ok2 := toByte(g)
	bv, ok3 := toByte(b)
	if !ok1 || !ok2 || !ok3 {
		return ""
	}
	return fmt.Sprintf("#%02X%02X%02X", rv, gv, bv)
}
