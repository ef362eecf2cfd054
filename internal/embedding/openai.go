// File path: internal/embedding/openai.go
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/nicodishanthj/accelmatch/internal/common"
)

const defaultOpenAIModel = "text-embedding-3-small"

// OpenAIProvider embeds through the OpenAI embeddings API. The API has no
// task-type parameter, so the task is accepted and ignored; document and
// query vectors already share one space for these models.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if strings.TrimSpace(model) == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIProvider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (o *OpenAIProvider) Embed(ctx context.Context, texts []string, task Task) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	logger := common.Logger()
	logger.Debug("embedding: openai request", "model", o.model, "items", len(texts))
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(o.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		if isOpenAIQuotaError(err) {
			return nil, fmt.Errorf("openai embed: %w: %v", ErrQuota, err)
		}
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d embeddings for %d texts", len(resp.Data), len(texts))
	}
	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		row := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			row[j] = float32(v)
		}
		vectors[i] = row
	}
	return vectors, nil
}

func (o *OpenAIProvider) Name() string {
	return "openai"
}

func isOpenAIQuotaError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return strings.Contains(err.Error(), "429")
}
