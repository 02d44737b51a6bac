package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"nutricoach-api/internal/domain"
)

// OpenAIGateway implementa Gateway con chat completions de una API OpenAI-compatible.
type OpenAIGateway struct {
	client       *openai.Client
	model        string
	systemPrompt string
	logger       *zap.Logger
}

func NewOpenAIGateway(baseURL, apiKey, model, systemPrompt string, logger *zap.Logger) *OpenAIGateway {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIGateway{
		client:       openai.NewClientWithConfig(cfg),
		model:        model,
		systemPrompt: systemPrompt,
		logger:       logger,
	}
}

func (g *OpenAIGateway) GenerateReply(ctx context.Context, prior []domain.Message, newUserMessage string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: buildChatMessages(g.systemPrompt, prior, newUserMessage),
	})
	if err != nil {
		g.logger.Warn("openai chat completion failed", zap.Error(err), zap.String("model", g.model))
		return "", unavailable("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrGatewayUnavailable)
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("%w: empty completion", ErrGatewayUnavailable)
	}
	return reply, nil
}

func buildChatMessages(systemPrompt string, prior []domain.Message, newUserMessage string) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(prior)+2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, m := range recentTurns(prior) {
		role := openai.ChatMessageRoleUser
		if m.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: newUserMessage,
	})
}
