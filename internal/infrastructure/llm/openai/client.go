package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/whatsgood/brand-retrieval/internal/infrastructure/resilience"
)

// Config targets any OpenAI-compatible endpoint.
type Config struct {
	APIKey      string
	BaseURL     string
	ChatModel   string
	EmbedModel  string
	Temperature float32
	Timeout     time.Duration
	Executor    *resilience.Executor
}

type Client struct {
	api         *openai.Client
	chatModel   string
	embedModel  openai.EmbeddingModel
	temperature float32
	executor    *resilience.Executor
}

func New(cfg Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{
		api:         openai.NewClientWithConfig(clientCfg),
		chatModel:   cfg.ChatModel,
		embedModel:  openai.EmbeddingModel(cfg.EmbedModel),
		temperature: cfg.Temperature,
		executor:    cfg.Executor,
	}
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	c := g.client
	resp, err := resilience.Call(ctx, c.executor, "openai.generate", func(callCtx context.Context) (openai.ChatCompletionResponse, error) {
		return c.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model:       c.chatModel,
			Temperature: c.temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
	}, classifyOpenAIError)
	if err != nil {
		return "", resilience.WrapTemporary("openai generate", fmt.Errorf("openai generate: %w", err), classifyOpenAIError)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai generate: empty choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	c := e.client
	resp, err := resilience.Call(ctx, c.executor, "openai.embed", func(callCtx context.Context) (openai.EmbeddingResponse, error) {
		return c.api.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
			Input:          texts,
			Model:          c.embedModel,
			EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		})
	}, classifyOpenAIError)
	if err != nil {
		return nil, resilience.WrapTemporary("openai embed", fmt.Errorf("openai embed: %w", err), classifyOpenAIError)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, 0, len(data))
	for _, d := range data {
		out = append(out, d.Embedding)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func classifyOpenAIError(err error) resilience.ErrorClassification {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status == 0 {
		return resilience.ClassifyHTTPError(err)
	}
	return resilience.ClassifyHTTPError(&resilience.HTTPStatusError{
		Service:    "openai",
		StatusCode: status,
		Status:     http.StatusText(status),
	})
}
