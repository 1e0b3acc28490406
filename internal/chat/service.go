// Package chat answers the latest user message of a stored conversation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agenda/internal/agent"
	"agenda/internal/llm"
	"agenda/internal/logger"
	"agenda/internal/store"
)

// MaxMessageLength bounds user message content.
const MaxMessageLength = 10000

var ErrInvalidMessage = fmt.Errorf("message content must be 1 to %d characters", MaxMessageLength)

// Store is the persistence the service needs.
type Store interface {
	GetConversation(ctx context.Context, owner, id string) (*store.Conversation, error)
	History(ctx context.Context, conversationID string) ([]store.Message, error)
	AddMessage(ctx context.Context, msg *store.Message) error
}

// Runner drives the model round loop.
type Runner interface {
	Run(ctx context.Context, input *agent.Input, sink agent.Sink) (*agent.Output, error)
}

type Config struct {
	SystemPrompt string
	// FallbackAnswer is persisted when the run ends without final text.
	FallbackAnswer string
}

type Service struct {
	store  Store
	runner Runner
	config Config
	log    *logger.Logger
}

func NewService(st Store, runner Runner, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{store: st, runner: runner, config: cfg, log: log}
}

// Reply is the outcome of a completed chat request.
type Reply struct {
	Answer    string
	Message   *store.Message
	Rounds    int
	ToolCalls int
	Exhausted bool
}

// SystemPrompt appends tool guidance to a base prompt.
func SystemPrompt(base, guidance string) string {
	if guidance == "" {
		return base
	}
	if base == "" {
		return guidance
	}
	return base + "\n\n" + guidance
}

// Post appends a user message to a conversation the actor owns.
func (s *Service) Post(ctx context.Context, actor, conversationID, content string) (*store.Message, error) {
	if n := len([]rune(content)); n == 0 || n > MaxMessageLength || strings.TrimSpace(content) == "" {
		return nil, ErrInvalidMessage
	}
	if _, err := s.store.GetConversation(ctx, actor, conversationID); err != nil {
		return nil, err
	}

	msg := &store.Message{
		ConversationID: conversationID,
		Role:           store.RoleUser,
		Content:        content,
		CreatedBy:      actor,
	}
	if err := s.store.AddMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Reply answers the conversation, streaming content to sink. History is
// read once before the run and the answer is written once after it. A
// failed or aborted run persists nothing. store.ErrNotFound is returned
// before any content when the actor does not own the conversation.
func (s *Service) Reply(ctx context.Context, actor, conversationID string, sink agent.Sink) (*Reply, error) {
	if _, err := s.store.GetConversation(ctx, actor, conversationID); err != nil {
		return nil, err
	}

	history, err := s.store.History(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	log := s.log.With("conversation", conversationID, "user", actor)
	log.SessionStart(conversationID, len(history))
	start := time.Now()

	out, err := s.runner.Run(ctx, &agent.Input{
		Actor:    actor,
		Messages: s.turns(history),
		Logger:   log,
	}, sink)
	if err != nil {
		if errors.Is(err, agent.ErrAborted) {
			log.Info("chat aborted", "error", err)
		}
		return nil, err
	}

	answer := out.Result
	if answer == "" {
		answer = s.config.FallbackAnswer
	}

	msg := &store.Message{
		ConversationID: conversationID,
		Role:           store.RoleAssistant,
		Content:        answer,
	}
	if err := s.store.AddMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist answer: %w", err)
	}

	log.Info("chat answered",
		"rounds", out.Rounds,
		"tool_calls", len(out.ToolCalls),
		"exhausted", out.Exhausted,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return &Reply{
		Answer:    out.Result,
		Message:   msg,
		Rounds:    out.Rounds,
		ToolCalls: len(out.ToolCalls),
		Exhausted: out.Exhausted,
	}, nil
}

// turns builds the model conversation: system prompt, then history.
func (s *Service) turns(history []store.Message) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: s.config.SystemPrompt})

	for _, m := range history {
		switch m.Role {
		case store.RoleUser:
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: m.Content})
		case store.RoleAssistant:
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: m.Content})
		}
	}
	return msgs
}
