package tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// ImageProbe reports dimensions, format, approximate size, and a simple
// "needs optimization" verdict for an image attachment. It backs the
// `image_probe` tool (default budget 3).
//
// Accepts either raw bytes under params["data"] ([]byte) or a base64 string
// under params["data_base64"], matching how an attachment's bytes travel
// through the engine's JSON-shaped plan parameters.
type ImageProbe struct{}

func NewImageProbe() *ImageProbe { return &ImageProbe{} }

func (t *ImageProbe) Name() string      { return "image_probe" }
func (t *ImageProbe) DefaultBudget() int { return 3 }

func (t *ImageProbe) ValidateParams(params map[string]any) error {
	if _, ok := params["data"].([]byte); ok {
		return nil
	}
	if _, ok := params["data_base64"].(string); ok {
		return nil
	}
	return fmt.Errorf("image_probe requires \"data\" or \"data_base64\"")
}

func (t *ImageProbe) Invoke(ctx context.Context, params map[string]any) Result {
	var data []byte
	if raw, ok := params["data"].([]byte); ok {
		data = raw
	} else if b64, ok := params["data_base64"].(string); ok {
		decoded, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return ErrResult("invalid_input", "image_probe: invalid base64 data")
		}
		data = decoded
	} else {
		return ErrResult("invalid_input", "image_probe requires image data")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ErrResult("parse", fmt.Sprintf("image_probe: %v", err))
	}

	sizeBytes := len(data)
	// A rough, conservative optimization heuristic: large dimensions paired
	// with a large byte count relative to pixel count suggest an
	// unoptimized export (e.g. an uncompressed PNG screenshot).
	pixels := cfg.Width * cfg.Height
	needsOptimization := pixels > 0 && sizeBytes > pixels/2

	observations := map[string]any{
		"image_width":              cfg.Width,
		"image_height":             cfg.Height,
		"image_format":             format,
		"image_size_bytes":         sizeBytes,
		"image_needs_optimization": needsOptimization,
	}

	return Result{
		OK:           true,
		Observations: observations,
		ConfidenceByKey: map[string]float64{
			"image_width":              1.0,
			"image_height":             1.0,
			"image_format":             1.0,
			"image_size_bytes":         1.0,
			"image_needs_optimization": 0.6,
		},
		EstTokens: 50,
	}
}
