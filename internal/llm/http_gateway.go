package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"nutricoach-api/internal/domain"
)

// HTTPGateway delega la respuesta a un webhook propio:
// POST {history, message} -> {reply}.
type HTTPGateway struct {
	client   *resty.Client
	endpoint string
}

type webhookTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type webhookRequest struct {
	History []webhookTurn `json:"history"`
	Message string        `json:"message"`
}

type webhookResponse struct {
	Reply string `json:"reply"`
}

func NewHTTPGateway(endpoint, apiKey string, timeout time.Duration) *HTTPGateway {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &HTTPGateway{
		client:   client,
		endpoint: strings.TrimRight(endpoint, "/"),
	}
}

func (g *HTTPGateway) GenerateReply(ctx context.Context, prior []domain.Message, newUserMessage string) (string, error) {
	turns := recentTurns(prior)
	body := webhookRequest{
		History: make([]webhookTurn, 0, len(turns)),
		Message: newUserMessage,
	}
	for _, m := range turns {
		body.History = append(body.History, webhookTurn{Role: m.Role, Content: m.Content})
	}

	var out webhookResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post(g.endpoint)
	if err != nil {
		return "", unavailable("webhook request", err)
	}
	if resp.IsError() {
		return "", unavailable("webhook response", fmt.Errorf("status=%d", resp.StatusCode()))
	}
	reply := strings.TrimSpace(out.Reply)
	if reply == "" {
		return "", unavailable("webhook response", errors.New("empty reply"))
	}
	return reply, nil
}
