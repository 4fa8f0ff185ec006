// Package provider declares the contracts of the external AI services.
package provider

import "context"

// Translator translates texts into targetLang. The result has the same
// length and order as texts.
type Translator interface {
	Translate(ctx context.Context, texts []string, targetLang, sourceLang string) ([]string, error)
}

// ImageGenerator produces a base64 encoded image for prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, aspectRatio string) (string, error)
}
