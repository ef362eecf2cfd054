// File path: internal/embedding/gemini.go
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/nicodishanthj/accelmatch/internal/common"
)

const defaultGeminiModel = "gemini-embedding-001"

// GeminiProvider embeds through the Gemini API, passing the retrieval task
// type so document and query vectors land in the same space.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if strings.TrimSpace(model) == "" {
		model = defaultGeminiModel
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (g *GeminiProvider) Embed(ctx context.Context, texts []string, task Task) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	logger := common.Logger()
	logger.Debug("embedding: gemini request", "model", g.model, "items", len(texts), "task", string(task))
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}
	config := &genai.EmbedContentConfig{TaskType: string(task)}
	res, err := g.client.Models.EmbedContent(ctx, g.model, contents, config)
	if err != nil {
		if isGeminiQuotaError(err) {
			return nil, fmt.Errorf("gemini embed: %w: %v", ErrQuota, err)
		}
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embed: got %d embeddings for %d texts", len(res.Embeddings), len(texts))
	}
	vectors := make([][]float32, len(res.Embeddings))
	for i, emb := range res.Embeddings {
		vectors[i] = append([]float32(nil), emb.Values...)
	}
	return vectors, nil
}

func (g *GeminiProvider) Name() string {
	return "gemini"
}

func isGeminiQuotaError(err error) bool {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "429") || strings.Contains(s, "RESOURCE_EXHAUSTED") || strings.Contains(s, "quota")
}
