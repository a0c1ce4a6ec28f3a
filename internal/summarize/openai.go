package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"

	systemPrompt = "You summarize meeting transcripts. Answer in GitHub-flavored markdown only. " +
		"Start with a level-one heading. Follow the user's instructions on style and focus."
)

// OpenAIOptions tunes the OpenAI backend.
type OpenAIOptions struct {
	MaxRetries int
	MaxTokens  int
}

// OpenAI summarizes with a chat completion model.
type OpenAI struct {
	client    openai.Client
	model     string
	maxTokens int
}

// NewOpenAI creates the backend. baseURL may point at any OpenAI-compatible
// endpoint; empty uses the public API.
func NewOpenAI(apiKey, baseURL, model string, opts OpenAIOptions) *OpenAI {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(opts.MaxRetries),
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{
		client:    openai.NewClient(reqOpts...),
		model:     model,
		maxTokens: opts.MaxTokens,
	}
}

func (o *OpenAI) Name() string { return BackendOpenAI + ":" + o.model }

func (o *OpenAI) Summarize(ctx context.Context, transcript []byte, instruction string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildUserMessage(transcript, instruction)),
		},
	}
	if o.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(o.maxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("chat completion: empty content")
	}
	return text, nil
}

func buildUserMessage(transcript []byte, instruction string) string {
	return fmt.Sprintf("Instructions: %s\n\nTranscript:\n%s", strings.TrimSpace(instruction), transcript)
}
