package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/resilience"
)

// GenerateOptions are passed to /api/generate as model options.
type GenerateOptions struct {
	Temperature float64
	TopK        int
	TopP        float64
	MaxTokens   int
	Stop        []string
}

// DefaultGenerateOptions keep answers short and grounded.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Temperature: 0.2,
		TopK:        32,
		TopP:        0.9,
		MaxTokens:   250,
		Stop:        []string{"User Question:", "Document Content:", "Instructions:"},
	}
}

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
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

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.call(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d inputs", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
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

type Generator struct {
	client  *Client
	options GenerateOptions
}

func NewGenerator(client *Client, options GenerateOptions) *Generator {
	return &Generator{client: client, options: options}
}

func (g *Generator) Name() string {
	return "Ollama (" + g.client.genModel + ")"
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	opts := map[string]any{
		"temperature": g.options.Temperature,
		"top_k":       g.options.TopK,
		"top_p":       g.options.TopP,
	}
	if g.options.MaxTokens > 0 {
		opts["num_predict"] = g.options.MaxTokens
	}
	if len(g.options.Stop) > 0 {
		opts["stop"] = g.options.Stop
	}

	reqBody := map[string]any{
		"model":   g.client.genModel,
		"prompt":  prompt,
		"stream":  false,
		"options": opts,
	}
	var response struct {
		Response string `json:"response"`
	}
	if err := g.client.call(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func (c *Client) call(ctx context.Context, path string, payload any, out any, operation string) error {
	do := func(ctx context.Context) error {
		return c.postJSON(ctx, path, payload, out, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama."+operation, do, classifyOllamaError)
	} else {
		err = do(ctx)
	}
	return mapCapabilityError("ollama "+operation, err)
}
