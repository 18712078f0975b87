package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/resilience/circuitbreaker"
	"contentpipeline/internal/resilience/retry"
)

// Generation is one LLM call's output: the article text plus the token
// counts cost accounting needs.
type Generation struct {
	Title        string
	Content      string
	InputTokens  int
	OutputTokens int
}

// Generator is the provider-agnostic shape §4.F.3 calls against; Claude is
// the primary implementation, OpenAI the configured fallback.
type Generator interface {
	Generate(ctx context.Context, item domain.StandardItem) (Generation, error)
}

// GenerationConfig mirrors the donor summarizer's env-driven config shape,
// generalized to an article generator instead of a feed summarizer.
type GenerationConfig struct {
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// LoadGenerationConfig reads model/token/timeout settings from the
// environment with the same fallback-on-invalid-value behavior the donor's
// LoadClaudeConfig uses.
func LoadGenerationConfig(modelEnv, defaultModel string) GenerationConfig {
	cfg := GenerationConfig{
		Model:       defaultModel,
		MaxTokens:   1024,
		Temperature: 0.7,
		Timeout:     30 * time.Second,
	}
	if v := os.Getenv(modelEnv); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("LLM_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxTokens = n
		}
	}
	if v := os.Getenv("LLM_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Timeout = time.Duration(n) * time.Second
		}
	}
	return cfg
}

func buildPrompt(item domain.StandardItem) string {
	var b strings.Builder
	b.WriteString("Write a well-structured news article based on the following source material. ")
	b.WriteString("Return a concise, engaging title on the first line, then a blank line, then the article body in Markdown.\n\n")
	fmt.Fprintf(&b, "Source: %s\n", item.Source)
	if item.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", item.URL)
	}
	fmt.Fprintf(&b, "Title: %s\n\n", item.Title)
	b.WriteString(item.Content)
	return b.String()
}

// splitGenerated recovers title/body from the "title\n\nbody" shape the
// prompt asks the model for, falling back to the source title when the
// model's response doesn't contain the blank-line separator.
func splitGenerated(item domain.StandardItem, raw string) (title, body string) {
	raw = strings.TrimSpace(raw)
	if parts := strings.SplitN(raw, "\n\n", 2); len(parts) == 2 {
		t := strings.TrimSpace(parts[0])
		if t != "" && len(t) < 200 {
			return t, strings.TrimSpace(parts[1])
		}
	}
	return item.Title, raw
}

// ClaudeGenerator wraps the Anthropic SDK with the circuit breaker and retry
// policy every outbound LLM call in this pipeline uses.
type ClaudeGenerator struct {
	client  anthropic.Client
	cb      *circuitbreaker.CircuitBreaker
	retryCfg retry.Config
	config  GenerationConfig
	logger  *slog.Logger
}

// NewClaudeGenerator constructs a ClaudeGenerator bound to apiKey.
func NewClaudeGenerator(apiKey string, cfg GenerationConfig, logger *slog.Logger) *ClaudeGenerator {
	return &ClaudeGenerator{
		client:   anthropic.NewClient(option.WithAPIKey(apiKey)),
		cb:       circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryCfg: retry.LLMAPIConfig(),
		config:   cfg,
		logger:   logger,
	}
}

func (g *ClaudeGenerator) Generate(ctx context.Context, item domain.StandardItem) (Generation, error) {
	requestID := uuid.New().String()
	prompt := buildPrompt(item)

	var result Generation
	err := retry.WithBackoff(ctx, g.retryCfg, func() error {
		res, cbErr := g.cb.Execute(func() (interface{}, error) {
			return g.doGenerate(ctx, requestID, prompt)
		})
		if cbErr != nil {
			if errors.Is(cbErr, gobreaker.ErrOpenState) {
				return fmt.Errorf("%w: claude circuit open", domain.ErrTransientIO)
			}
			return cbErr
		}
		result = res.(Generation)
		return nil
	})
	if err != nil {
		g.logger.Error("processor: claude generation failed",
			slog.String("request_id", requestID), slog.String("error", err.Error()))
		return Generation{}, err
	}

	title, body := splitGenerated(item, result.Content)
	result.Title = title
	result.Content = body
	return result, nil
}

func (g *ClaudeGenerator) doGenerate(ctx context.Context, requestID, prompt string) (Generation, error) {
	start := time.Now()
	g.logger.Info("processor: claude request started", slog.String("request_id", requestID))

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	message, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.config.Model),
		MaxTokens: int64(g.config.MaxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
	})
	if err != nil {
		g.logger.Error("processor: claude request failed",
			slog.String("request_id", requestID), slog.Duration("duration", time.Since(start)), slog.String("error", err.Error()))
		return Generation{}, fmt.Errorf("%w: claude call: %v", domain.ErrTransientIO, err)
	}

	if len(message.Content) == 0 {
		return Generation{}, fmt.Errorf("%w: empty claude response", domain.ErrUpstreamMalformed)
	}
	block, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return Generation{}, fmt.Errorf("%w: unexpected claude content block type", domain.ErrUpstreamMalformed)
	}

	g.logger.Info("processor: claude request succeeded",
		slog.String("request_id", requestID), slog.Duration("duration", time.Since(start)))

	return Generation{
		Content:      block.Text,
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}, nil
}

// OpenAIGenerator is the configured fallback for when Claude is unavailable
// or over budget, wrapping the same retry/circuit-breaker composition.
type OpenAIGenerator struct {
	client   *openai.Client
	cb       *circuitbreaker.CircuitBreaker
	retryCfg retry.Config
	config   GenerationConfig
	logger   *slog.Logger
}

// NewOpenAIGenerator constructs an OpenAIGenerator bound to apiKey.
func NewOpenAIGenerator(apiKey string, cfg GenerationConfig, logger *slog.Logger) *OpenAIGenerator {
	return &OpenAIGenerator{
		client:   openai.NewClient(apiKey),
		cb:       circuitbreaker.New(circuitbreaker.OpenAIAPIConfig()),
		retryCfg: retry.LLMAPIConfig(),
		config:   cfg,
		logger:   logger,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, item domain.StandardItem) (Generation, error) {
	requestID := uuid.New().String()
	prompt := buildPrompt(item)

	var result Generation
	err := retry.WithBackoff(ctx, g.retryCfg, func() error {
		res, cbErr := g.cb.Execute(func() (interface{}, error) {
			return g.doGenerate(ctx, requestID, prompt)
		})
		if cbErr != nil {
			if errors.Is(cbErr, gobreaker.ErrOpenState) {
				return fmt.Errorf("%w: openai circuit open", domain.ErrTransientIO)
			}
			return cbErr
		}
		result = res.(Generation)
		return nil
	})
	if err != nil {
		g.logger.Error("processor: openai generation failed",
			slog.String("request_id", requestID), slog.String("error", err.Error()))
		return Generation{}, err
	}

	title, body := splitGenerated(item, result.Content)
	result.Title = title
	result.Content = body
	return result, nil
}

func (g *OpenAIGenerator) doGenerate(ctx context.Context, requestID, prompt string) (Generation, error) {
	start := time.Now()
	g.logger.Info("processor: openai request started", slog.String("request_id", requestID))

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.config.Model,
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		g.logger.Error("processor: openai request failed",
			slog.String("request_id", requestID), slog.Duration("duration", time.Since(start)), slog.String("error", err.Error()))
		return Generation{}, fmt.Errorf("%w: openai call: %v", domain.ErrTransientIO, err)
	}

	if len(resp.Choices) == 0 {
		return Generation{}, fmt.Errorf("%w: empty openai response", domain.ErrUpstreamMalformed)
	}

	g.logger.Info("processor: openai request succeeded",
		slog.String("request_id", requestID), slog.Duration("duration", time.Since(start)))

	return Generation{
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// FallbackGenerator tries primary, then secondary when primary fails with a
// transient or upstream-malformed error. Validation/quota errors are not
// retried against the fallback since they reflect the request, not the
// provider.
type FallbackGenerator struct {
	Primary   Generator
	Secondary Generator
	Logger    *slog.Logger
}

func (f *FallbackGenerator) Generate(ctx context.Context, item domain.StandardItem) (Generation, error) {
	result, err := f.Primary.Generate(ctx, item)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, domain.ErrTransientIO) && !errors.Is(err, domain.ErrUpstreamMalformed) {
		return Generation{}, err
	}
	if f.Secondary == nil {
		return Generation{}, err
	}

	f.Logger.Warn("processor: primary generator failed, falling back", slog.String("error", err.Error()))
	return f.Secondary.Generate(ctx, item)
}
