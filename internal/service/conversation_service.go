package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nutricoach-api/internal/domain"
	"nutricoach-api/internal/repository"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrThreadNotFound = errors.New("thread not found")
)

// ReplyFunc produce la respuesta del asistente dado el historial previo al
// mensaje del usuario.
type ReplyFunc func(ctx context.Context, prior []domain.Message) (string, error)

// ConversationService es el dueño de threads y mensajes. Toda mutación de un
// thread se serializa con un lock por (usuario, thread); usuarios o threads
// distintos no se bloquean entre sí.
//
// Un userID nunca visto recibe estado vacío en vez de error: la capa HTTP solo
// llega aquí con usuarios ya resueltos por SessionService.
type ConversationService struct {
	logger   *zap.Logger
	threads  repository.ThreadRepository
	messages repository.MessageRepository
	locks    *keyedMutex
	now      func() time.Time
}

func NewConversationService(logger *zap.Logger, threads repository.ThreadRepository, messages repository.MessageRepository) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{
		logger:   logger,
		threads:  threads,
		messages: messages,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

func userLockKey(userID string) string {
	return "user|" + userID
}

func threadLockKey(userID, threadID string) string {
	return "thread|" + userID + "|" + threadID
}

// CurrentThread devuelve el thread actual, creando uno por defecto la primera vez.
func (s *ConversationService) CurrentThread(ctx context.Context, userID string) (domain.Thread, error) {
	unlock := s.locks.Lock(userLockKey(userID))
	defer unlock()

	threadID, err := s.threads.GetCurrent(ctx, userID)
	if err == nil {
		thread, err := s.threads.GetByID(ctx, threadID)
		if err == nil {
			return thread, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return domain.Thread{}, fmt.Errorf("load current thread: %w", err)
		}
		s.logger.Warn("current thread pointer is dangling", zap.String("user_id", userID), zap.String("thread_id", threadID))
	} else if !errors.Is(err, repository.ErrNotFound) {
		return domain.Thread{}, fmt.Errorf("get current thread: %w", err)
	}

	return s.createThreadLocked(ctx, userID)
}

// CreateThread crea un thread nuevo y lo marca como actual. Los threads
// anteriores conservan sus mensajes.
func (s *ConversationService) CreateThread(ctx context.Context, userID string) (domain.Thread, error) {
	unlock := s.locks.Lock(userLockKey(userID))
	defer unlock()
	return s.createThreadLocked(ctx, userID)
}

func (s *ConversationService) createThreadLocked(ctx context.Context, userID string) (domain.Thread, error) {
	thread := domain.Thread{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.threads.Create(ctx, thread); err != nil {
		return domain.Thread{}, fmt.Errorf("create thread: %w", err)
	}
	if err := s.threads.SetCurrent(ctx, userID, thread.ID); err != nil {
		return domain.Thread{}, fmt.Errorf("set current thread: %w", err)
	}
	s.logger.Info("thread created", zap.String("user_id", userID), zap.String("thread_id", thread.ID))
	return thread, nil
}

// SwitchThread vuelve actual un thread existente del usuario.
func (s *ConversationService) SwitchThread(ctx context.Context, userID, threadID string) (domain.Thread, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return domain.Thread{}, ErrInvalidInput
	}
	unlock := s.locks.Lock(userLockKey(userID))
	defer unlock()

	thread, err := s.ownedThread(ctx, userID, threadID)
	if err != nil {
		return domain.Thread{}, err
	}
	if err := s.threads.SetCurrent(ctx, userID, thread.ID); err != nil {
		return domain.Thread{}, fmt.Errorf("set current thread: %w", err)
	}
	return thread, nil
}

// ListThreads devuelve los threads del usuario, del más antiguo al más nuevo.
func (s *ConversationService) ListThreads(ctx context.Context, userID string) ([]domain.Thread, error) {
	threads, err := s.threads.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	if threads == nil {
		threads = []domain.Thread{}
	}
	return threads, nil
}

// ThreadHistory es History con verificación de pertenencia, para accesos por id.
func (s *ConversationService) ThreadHistory(ctx context.Context, userID, threadID string) ([]domain.Message, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, ErrInvalidInput
	}
	if _, err := s.ownedThread(ctx, userID, threadID); err != nil {
		return nil, err
	}
	return s.History(ctx, userID, threadID)
}

func (s *ConversationService) ownedThread(ctx context.Context, userID, threadID string) (domain.Thread, error) {
	thread, err := s.threads.GetByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Thread{}, ErrThreadNotFound
		}
		return domain.Thread{}, fmt.Errorf("get thread: %w", err)
	}
	if thread.UserID != userID {
		return domain.Thread{}, ErrThreadNotFound
	}
	return thread, nil
}

// AppendMessage agrega un mensaje al final del thread.
func (s *ConversationService) AppendMessage(ctx context.Context, userID, threadID, role, content string) (domain.Message, error) {
	if !domain.ValidRole(role) {
		return domain.Message{}, ErrInvalidInput
	}
	unlock := s.locks.Lock(threadLockKey(userID, threadID))
	defer unlock()

	last, err := s.messages.Last(ctx, threadID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return s.appendAfter(ctx, nil, userID, threadID, role, content)
	case err != nil:
		return domain.Message{}, fmt.Errorf("last message: %w", err)
	default:
		return s.appendAfter(ctx, &last, userID, threadID, role, content)
	}
}

func (s *ConversationService) appendAfter(ctx context.Context, last *domain.Message, userID, threadID, role, content string) (domain.Message, error) {
	msg := domain.Message{
		ID:        uuid.NewString(),
		UserID:    userID,
		ThreadID:  threadID,
		Role:      role,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	if last != nil {
		msg.Seq = last.Seq + 1
		if msg.CreatedAt.Before(last.CreatedAt) {
			msg.CreatedAt = last.CreatedAt
		}
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return domain.Message{}, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// History devuelve una copia ordenada de los mensajes del thread.
func (s *ConversationService) History(ctx context.Context, userID, threadID string) ([]domain.Message, error) {
	messages, err := s.messages.ListByThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

// Clear borra los mensajes del thread; el thread sigue existiendo.
func (s *ConversationService) Clear(ctx context.Context, userID, threadID string) error {
	unlock := s.locks.Lock(threadLockKey(userID, threadID))
	defer unlock()
	if err := s.messages.DeleteByThread(ctx, threadID); err != nil {
		return fmt.Errorf("clear thread: %w", err)
	}
	s.logger.Info("thread cleared", zap.String("user_id", userID), zap.String("thread_id", threadID))
	return nil
}

// Exchange agrega el mensaje del usuario, pide la respuesta y agrega la del
// asistente sin soltar el lock del thread. Si reply falla el mensaje del
// usuario queda guardado y se devuelve junto con el error.
func (s *ConversationService) Exchange(ctx context.Context, userID, threadID, content string, reply ReplyFunc) (domain.Message, domain.Message, error) {
	unlock := s.locks.Lock(threadLockKey(userID, threadID))
	defer unlock()

	prior, err := s.messages.ListByThread(ctx, threadID)
	if err != nil {
		return domain.Message{}, domain.Message{}, fmt.Errorf("list messages: %w", err)
	}
	var last *domain.Message
	if len(prior) > 0 {
		last = &prior[len(prior)-1]
	}
	userMsg, err := s.appendAfter(ctx, last, userID, threadID, domain.RoleUser, content)
	if err != nil {
		return domain.Message{}, domain.Message{}, err
	}

	text, err := reply(ctx, prior)
	if err != nil {
		return userMsg, domain.Message{}, err
	}

	assistantMsg, err := s.appendAfter(ctx, &userMsg, userID, threadID, domain.RoleAssistant, text)
	if err != nil {
		return userMsg, domain.Message{}, err
	}
	return userMsg, assistantMsg, nil
}
