package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/resilience"
)

type Options struct {
	Temperature float32
	TopK        int32
	TopP        float32
	MaxTokens   int32
	Stop        []string
}

func DefaultOptions() Options {
	return Options{
		Temperature: 0.2,
		TopK:        32,
		TopP:        0.9,
		MaxTokens:   250,
		Stop:        []string{"User Question:", "Document Content:", "Instructions:"},
	}
}

type contentModel interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type embeddingModel interface {
	NewBatch() *genai.EmbeddingBatch
	BatchEmbedContents(ctx context.Context, batch *genai.EmbeddingBatch) (*genai.BatchEmbedContentsResponse, error)
}

// Client owns the genai connection shared by the generator and the embedder.
type Client struct {
	genai    *genai.Client
	executor *resilience.Executor
}

func New(ctx context.Context, apiKey string, executor *resilience.Executor) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "gemini client", errors.New("api key is empty"))
	}
	c, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{genai: c, executor: executor}, nil
}

func (c *Client) Close() error {
	return c.genai.Close()
}

type Generator struct {
	model    contentModel
	executor *resilience.Executor
}

func (c *Client) Generator(modelName string, opts Options) *Generator {
	m := c.genai.GenerativeModel(modelName)
	m.SetTemperature(opts.Temperature)
	m.SetTopK(opts.TopK)
	m.SetTopP(opts.TopP)
	m.SetMaxOutputTokens(opts.MaxTokens)
	m.StopSequences = opts.Stop
	return &Generator{model: m, executor: c.executor}
}

func (g *Generator) Name() string {
	return "Google Gemini"
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	var out string
	err := execute(ctx, g.executor, "gemini.generate", func(ctx context.Context) error {
		resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return err
		}
		out = responseText(resp)
		return nil
	})
	if err != nil {
		return "", mapCapabilityError("gemini generate", err)
	}
	return strings.TrimSpace(out), nil
}

type Embedder struct {
	model    embeddingModel
	executor *resilience.Executor
}

func (c *Client) Embedder(modelName string) *Embedder {
	return &Embedder{model: c.genai.EmbeddingModel(modelName), executor: c.executor}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var out [][]float32
	err := execute(ctx, e.executor, "gemini.embed", func(ctx context.Context) error {
		batch := e.model.NewBatch()
		for _, text := range texts {
			batch.AddContent(genai.Text(text))
		}
		res, err := e.model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return err
		}
		out = make([][]float32, 0, len(res.Embeddings))
		for _, emb := range res.Embeddings {
			out = append(out, emb.Values)
		}
		return nil
	})
	if err != nil {
		return nil, mapCapabilityError("gemini embed", err)
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("gemini embed: got %d embeddings for %d inputs", len(out), len(texts))
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		// The first candidate with content is the answer.
		if b.Len() > 0 {
			break
		}
	}
	return b.String()
}

func execute(ctx context.Context, executor *resilience.Executor, op string, fn func(context.Context) error) error {
	if executor == nil {
		return fn(ctx)
	}
	return executor.Execute(ctx, op, fn, classifyError)
}

func statusCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

func classifyError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	switch statusCode(err) {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case http.StatusTooManyRequests:
		// Quota errors do not clear within a retry window.
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	case 0:
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	default:
		return resilience.ErrorClassification{}
	}
}

func mapCapabilityError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch code := statusCode(err); {
	case code == http.StatusTooManyRequests:
		return domain.WrapError(domain.ErrRateLimited, operation, err)
	case code == http.StatusForbidden || code == http.StatusUnauthorized:
		return domain.WrapError(domain.ErrAccessDenied, operation, err)
	case errors.Is(err, context.DeadlineExceeded):
		return domain.WrapError(domain.ErrCapabilityTimeout, operation, err)
	case resilience.IsCircuitOpen(err) || code >= http.StatusInternalServerError:
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit"):
		return domain.WrapError(domain.ErrRateLimited, operation, err)
	case strings.Contains(msg, "permission") || strings.Contains(msg, "api key not valid"):
		return domain.WrapError(domain.ErrAccessDenied, operation, err)
	}
	return err
}
