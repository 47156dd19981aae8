package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"WebResearcher/internal/domain"
	"WebResearcher/internal/ports"
)

const maxTitleRunes = 80

// History records finished runs as conversation messages and rebuilds the
// conversational context of follow-up questions.
type History struct {
	repo   ports.ConversationRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewHistory wires the conversation store.
func NewHistory(repo ports.ConversationRepository, log *slog.Logger) *History {
	return &History{repo: repo, now: time.Now, logger: log}
}

// Load returns the stored conversation, or a fresh one when id is empty.
func (h *History) Load(ctx context.Context, id string) (domain.Conversation, error) {
	if strings.TrimSpace(id) == "" {
		now := h.now().UTC()
		return domain.Conversation{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}, nil
	}
	conv, err := h.repo.Get(ctx, id)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("load conversation: %w", err)
	}
	return conv, nil
}

// Record appends the question and the answer of one run and saves the
// conversation. Content chunks are dropped from the stored trace.
func (h *History) Record(ctx context.Context, conv domain.Conversation, question, answer string, events []domain.Event) (domain.Conversation, error) {
	now := h.now().UTC()
	if conv.Title == "" {
		conv.Title = title(question)
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	conv.UpdatedAt = now
	conv.Messages = append(conv.Messages,
		domain.Message{Role: domain.RoleUser, Content: question, CreatedAt: now},
		domain.Message{Role: domain.RoleAssistant, Content: answer, SearchEvents: domain.StripChunks(events), CreatedAt: now},
	)

	if err := h.repo.Save(ctx, conv); err != nil {
		return conv, fmt.Errorf("save conversation: %w", err)
	}
	if h.logger != nil {
		h.logger.Debug("conversation saved", "conversation_id", conv.ID, "messages", len(conv.Messages))
	}
	return conv, nil
}

// List returns saved conversations, newest first.
func (h *History) List(ctx context.Context, limit int) ([]domain.ConversationSummary, error) {
	list, err := h.repo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return list, nil
}

func title(question string) string {
	question = strings.Join(strings.Fields(question), " ")
	if utf8.RuneCountInString(question) <= maxTitleRunes {
		return question
	}
	return string([]rune(question)[:maxTitleRunes]) + "..."
}
