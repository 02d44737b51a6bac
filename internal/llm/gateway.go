package llm

import (
	"context"
	"errors"
	"fmt"

	"nutricoach-api/internal/domain"
)

// Gateway genera la respuesta del asistente a partir del historial previo del
// thread y el nuevo mensaje del usuario. Bloquea hasta tener respuesta o error.
type Gateway interface {
	GenerateReply(ctx context.Context, prior []domain.Message, newUserMessage string) (string, error)
}

// ErrGatewayUnavailable envuelve cualquier fallo del proveedor: red, timeout,
// cuota, status de error o respuesta vacía.
var ErrGatewayUnavailable = errors.New("assistant gateway unavailable")

// maxPriorMessages limita cuántos turnos previos se envían al proveedor.
const maxPriorMessages = 20

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrGatewayUnavailable, op, err)
}

func recentTurns(prior []domain.Message) []domain.Message {
	if len(prior) > maxPriorMessages {
		return prior[len(prior)-maxPriorMessages:]
	}
	return prior
}
