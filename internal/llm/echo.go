package llm

import (
	"context"
	"fmt"

	"nutricoach-api/internal/domain"
)

// EchoGateway es el coach de demo: confirma el mensaje sin llamar a ningún modelo.
type EchoGateway struct{}

func NewEchoGateway() EchoGateway {
	return EchoGateway{}
}

func (EchoGateway) GenerateReply(ctx context.Context, _ []domain.Message, newUserMessage string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", unavailable("echo", err)
	}
	return fmt.Sprintf("Thanks for your message: '%s'. I'm your nutrition coach! How can I help you today?", newUserMessage), nil
}
