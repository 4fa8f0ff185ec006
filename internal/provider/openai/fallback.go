package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"strings"

	"github.com/rpattn/travelcms/internal/logger"
	"github.com/rpattn/travelcms/internal/provider"
)

// FallbackImages returns a placeholder SVG when the wrapped generator fails,
// so a post never ends up without a hero image.
type FallbackImages struct {
	next provider.ImageGenerator
	log  *logger.Logger
}

var _ provider.ImageGenerator = (*FallbackImages)(nil)

func NewFallbackImages(next provider.ImageGenerator, log *logger.Logger) *FallbackImages {
	if log == nil {
		log = logger.NewNop()
	}
	return &FallbackImages{next: next, log: log}
}

func (f *FallbackImages) GenerateImage(ctx context.Context, prompt, aspectRatio string) (string, error) {
	if f.next != nil {
		image, err := f.next.GenerateImage(ctx, prompt, aspectRatio)
		if err == nil && image != "" {
			return image, nil
		}
		f.log.Warn("image generation failed, using placeholder", "error", err)
	}
	return PlaceholderImage(prompt, aspectRatio), nil
}

// PlaceholderImage renders a gradient SVG data URL captioned with a short
// version of prompt.
func PlaceholderImage(prompt, aspectRatio string) string {
	width, height := 1024, 1024
	switch aspectRatio {
	case "16:9":
		width, height = 1600, 900
	case "9:16":
		width, height = 900, 1600
	}

	caption := strings.TrimSpace(prompt)
	if runes := []rune(caption); len(runes) > 60 {
		caption = string(runes[:57]) + "..."
	}

	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+
		`<defs><linearGradient id="g" x1="0" y1="0" x2="1" y2="1">`+
		`<stop offset="0" stop-color="#0ea5e9"/><stop offset="1" stop-color="#14b8a6"/>`+
		`</linearGradient></defs>`+
		`<rect width="100%%" height="100%%" fill="url(#g)"/>`+
		`<text x="50%%" y="50%%" fill="#ffffff" font-family="sans-serif" font-size="%d" text-anchor="middle">%s</text>`+
		`</svg>`,
		width, height, width, height, height/20, html.EscapeString(caption))

	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}
