package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/starford/estatehub/internal/models"
)

const defaultModel = "gemini-2.0-flash"

// contentGenerator is the slice of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GenAI translates and writes captions with Google's Gemini API.
type GenAI struct {
	models contentGenerator
	model  string
}

// NewGenAI creates a Gemini-backed Translator and Generator.
func NewGenAI(ctx context.Context, apiKey, model string) (*GenAI, error) {
	if apiKey == "" {
		return nil, errors.New("translate: GenAI API key is required")
	}
	if model == "" {
		model = defaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("translate: create GenAI client: %w", err)
	}
	return &GenAI{models: client.Models, model: model}, nil
}

// Name returns the engine name.
func (g *GenAI) Name() string {
	return "genai:" + g.model
}

// Translate implements Translator.
func (g *GenAI) Translate(ctx context.Context, text, from, to string) (string, error) {
	prompt := fmt.Sprintf(
		"Translate the following UI text from %s to %s. "+
			"Reply with the translation only, without quotes or commentary. "+
			"Keep placeholders such as {name} or %%s unchanged.\n\n%s",
		languageName(from), languageName(to), text)
	out, err := g.generate(ctx, prompt, 0)
	if err != nil {
		return "", upstream("translate", err)
	}
	return out, nil
}

// Caption implements Generator.
func (g *GenAI) Caption(ctx context.Context, brief string, platform models.Platform, locale string) (string, error) {
	prompt := fmt.Sprintf(
		"Write a %s post in %s for a real-estate marketing campaign. "+
			"Keep it within %d characters, include up to three relevant hashtags, "+
			"and reply with the post text only.\n\nBrief:\n%s",
		platform, languageName(locale), captionLimits[platform], brief)
	out, err := g.generate(ctx, prompt, 0.7)
	if err != nil {
		return "", upstream("caption", err)
	}
	return clip(out, platform), nil
}

func (g *GenAI) generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	})
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", errors.New("empty response")
	}
	return out, nil
}
