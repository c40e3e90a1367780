// Package oracle is the default content generator. It asks an OpenAI-style
// chat endpoint for each section of the study material: the OpenAI API in
// cloud mode, or any compatible server (Ollama, vLLM, llama.cpp) in local mode.
package oracle

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"material-pipeline/constant"
	"material-pipeline/entities"
	"material-pipeline/pkg/apperr"
)

const (
	defaultCloudModel = openai.GPT4oMini
	defaultLocalModel = "llama3.1"
	defaultTimeout    = 120 * time.Second
)

type Config struct {
	Mode     constant.GeneratorMode
	Endpoint string
	APIKey   string
	Model    string
	// Timeout bounds every single oracle call.
	Timeout time.Duration
}

// CallTimeout is the configured per-call timeout, or the default.
func (c Config) CallTimeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

type Client struct {
	api      *openai.Client
	model    string
	timeout  time.Duration
	jsonMode bool
}

func New(cfg Config) (*Client, error) {
	var clientCfg openai.ClientConfig
	model := cfg.Model
	switch cfg.Mode {
	case constant.GeneratorModeCloud:
		if cfg.APIKey == "" {
			return nil, errors.New("oracle: cloud mode requires an api key")
		}
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.Endpoint != "" {
			clientCfg.BaseURL = cfg.Endpoint
		}
		if model == "" {
			model = defaultCloudModel
		}
	case constant.GeneratorModeLocal:
		if cfg.Endpoint == "" {
			return nil, errors.New("oracle: local mode requires an endpoint")
		}
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		clientCfg.BaseURL = cfg.Endpoint
		if model == "" {
			model = defaultLocalModel
		}
	default:
		return nil, errors.New("oracle: unknown generator mode " + string(cfg.Mode))
	}

	return &Client{
		api:     openai.NewClientWithConfig(clientCfg),
		model:   model,
		timeout: cfg.CallTimeout(),
		// local servers disagree on response_format support; extraction copes either way
		jsonMode: cfg.Mode == constant.GeneratorModeCloud,
	}, nil
}

func (c *Client) Summarize(ctx context.Context, transcript, syllabus string) (string, error) {
	answer, err := c.ask(ctx, "summary", summaryPrompt(transcript, syllabus), false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

func (c *Client) ExtractGlossary(ctx context.Context, transcript, syllabus string) ([]entities.GlossaryEntry, error) {
	answer, err := c.ask(ctx, "glossary", glossaryPrompt(transcript, syllabus), true)
	if err != nil {
		return nil, err
	}
	var entries []entities.GlossaryEntry
	if !DecodeKey(answer, "glossary", &entries) {
		zerolog.Ctx(ctx).Warn().Str("step", "glossary").Msg("oracle answer had no usable glossary")
		return []entities.GlossaryEntry{}, nil
	}
	out := make([]entities.GlossaryEntry, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Term) == "" {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (c *Client) BuildQuiz(ctx context.Context, transcript, syllabus string) ([]entities.QuizQuestion, error) {
	answer, err := c.ask(ctx, "quiz", quizPrompt(transcript, syllabus), true)
	if err != nil {
		return nil, err
	}
	var quiz []entities.QuizQuestion
	if !DecodeKey(answer, "quiz", &quiz) {
		zerolog.Ctx(ctx).Warn().Str("step", "quiz").Msg("oracle answer had no usable quiz")
		return []entities.QuizQuestion{}, nil
	}
	return quiz, nil
}

func (c *Client) BuildChecklist(ctx context.Context, transcript, syllabus string) ([]string, error) {
	answer, err := c.ask(ctx, "checklist", checklistPrompt(transcript, syllabus), true)
	if err != nil {
		return nil, err
	}
	var items []string
	if !DecodeKey(answer, "checklist", &items) {
		zerolog.Ctx(ctx).Warn().Str("step", "checklist").Msg("oracle answer had no usable checklist")
		return []string{}, nil
	}
	return items, nil
}

// ScoreAlignment returns nil without error when the answer carries no score.
func (c *Client) ScoreAlignment(ctx context.Context, transcript, syllabus string) (*entities.Alignment, error) {
	answer, err := c.ask(ctx, "alignment", alignmentPrompt(transcript, syllabus), true)
	if err != nil {
		return nil, err
	}
	var score float64
	if !DecodeKey(answer, "score", &score) {
		zerolog.Ctx(ctx).Warn().Str("step", "alignment").Msg("oracle answer had no usable score")
		return nil, nil
	}
	var analysis string
	DecodeKey(answer, "analysis", &analysis)
	return &entities.Alignment{
		Score:    clampScore(score),
		Analysis: strings.TrimSpace(analysis),
	}, nil
}

func (c *Client) ask(ctx context.Context, step, prompt string, wantJSON bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.3,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if wantJSON && c.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", apperr.GenerationStep(err, "oracle %s call failed", step)
	}
	if len(resp.Choices) == 0 {
		return "", apperr.GenerationStep(nil, "oracle %s call returned no choices", step)
	}
	zerolog.Ctx(ctx).Debug().
		Str("step", step).
		Str("model", c.model).
		Dur("took", time.Since(start)).
		Int("answer_len", len(resp.Choices[0].Message.Content)).
		Msg("oracle answered")
	return resp.Choices[0].Message.Content, nil
}

func clampScore(score float64) int {
	return int(math.Round(math.Max(0, math.Min(100, score))))
}
