package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"nutricoach-api/internal/domain"
	"nutricoach-api/internal/llm"
)

// SendResult resume un intercambio completo dentro del thread actual.
type SendResult struct {
	Thread           domain.Thread
	UserMessage      domain.Message
	AssistantMessage domain.Message
}

// ChatService orquesta el envío de un mensaje: thread actual, mensaje del
// usuario, respuesta del gateway y mensaje del asistente.
type ChatService struct {
	logger        *zap.Logger
	conversations *ConversationService
	gateway       llm.Gateway
	timeout       time.Duration
}

func NewChatService(logger *zap.Logger, conversations *ConversationService, gateway llm.Gateway, timeout time.Duration) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChatService{
		logger:        logger,
		conversations: conversations,
		gateway:       gateway,
		timeout:       timeout,
	}
}

// Send agrega el mensaje al thread actual y devuelve la respuesta del
// asistente. Si el gateway falla el mensaje del usuario queda en el historial
// y el error envuelve llm.ErrGatewayUnavailable.
func (s *ChatService) Send(ctx context.Context, userID, content string) (SendResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return SendResult{}, ErrInvalidInput
	}

	thread, err := s.conversations.CurrentThread(ctx, userID)
	if err != nil {
		return SendResult{}, err
	}

	userMsg, assistantMsg, err := s.conversations.Exchange(ctx, userID, thread.ID, content, func(ctx context.Context, prior []domain.Message) (string, error) {
		return s.generate(ctx, prior, content)
	})
	if err != nil {
		if errors.Is(err, llm.ErrGatewayUnavailable) {
			s.logger.Warn("assistant gateway failed",
				zap.String("user_id", userID),
				zap.String("thread_id", thread.ID),
				zap.Error(err),
			)
		}
		return SendResult{Thread: thread, UserMessage: userMsg}, err
	}

	return SendResult{
		Thread:           thread,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
	}, nil
}

func (s *ChatService) generate(ctx context.Context, prior []domain.Message, content string) (string, error) {
	if s.gateway == nil {
		return "", fmt.Errorf("%w: gateway not configured", llm.ErrGatewayUnavailable)
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err := s.gateway.GenerateReply(callCtx, prior, content)
	if err != nil {
		if errors.Is(err, llm.ErrGatewayUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", llm.ErrGatewayUnavailable, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("%w: empty reply", llm.ErrGatewayUnavailable)
	}
	return reply, nil
}
