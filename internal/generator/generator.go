package generator

import (
	"context"
	"errors"
)

// ErrGeneration marks any transport or parsing failure of the text
// service. Callers recover locally with fixed fallback texts so
// user-visible flows never stall on the external call.
var ErrGeneration = errors.New("text generation failed")

// TextGenerator produces short punishment and coaching texts from a
// prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Disabled is used when no API key is configured; every call fails
// with ErrGeneration so callers fall back to their fixed texts.
type Disabled struct{}

func (Disabled) Generate(context.Context, string) (string, error) {
	return "", ErrGeneration
}
