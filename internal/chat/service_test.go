package chat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda/internal/agent"
	"agenda/internal/llm"
	"agenda/internal/store"
)

type fakeRunner struct {
	emit   []string
	output *agent.Output
	err    error
	inputs []*agent.Input
}

func (r *fakeRunner) Run(ctx context.Context, input *agent.Input, sink agent.Sink) (*agent.Output, error) {
	r.inputs = append(r.inputs, input)
	for _, piece := range r.emit {
		if err := sink.Emit(ctx, piece); err != nil {
			return nil, fmt.Errorf("%w: %w", agent.ErrAborted, err)
		}
	}
	return r.output, r.err
}

type collectSink struct {
	pieces []string
	err    error
}

func (s *collectSink) Emit(_ context.Context, content string) error {
	if s.err != nil {
		return s.err
	}
	s.pieces = append(s.pieces, content)
	return nil
}

func setup(t *testing.T, runner Runner) (*Service, *store.Store, *store.Conversation) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "agenda.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	conv, err := st.CreateConversation(context.Background(), "alice", "")
	require.NoError(t, err)

	svc := NewService(st, runner, Config{
		SystemPrompt:   "You are a calendar assistant.",
		FallbackAnswer: "[Response given through function calls]",
	}, nil)
	return svc, st, conv
}

func history(t *testing.T, st *store.Store, convID string) []store.Message {
	t.Helper()
	msgs, err := st.History(context.Background(), convID)
	require.NoError(t, err)
	return msgs
}

func TestReplyBuildsConversationAndPersistsAnswer(t *testing.T) {
	runner := &fakeRunner{emit: []string{"Nothing ", "today."}, output: &agent.Output{Result: "Nothing today.", Rounds: 2}}
	svc, st, conv := setup(t, runner)
	ctx := context.Background()

	_, err := svc.Post(ctx, "alice", conv.ID, "Anything today?")
	require.NoError(t, err)

	sink := &collectSink{}
	reply, err := svc.Reply(ctx, "alice", conv.ID, sink)
	require.NoError(t, err)

	assert.Equal(t, "Nothing today.", reply.Answer)
	assert.Equal(t, 2, reply.Rounds)
	assert.Equal(t, []string{"Nothing ", "today."}, sink.pieces)

	require.Len(t, runner.inputs, 1)
	in := runner.inputs[0]
	assert.Equal(t, "alice", in.Actor)
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a calendar assistant."},
		{Role: llm.RoleUser, Content: "Anything today?"},
	}, in.Messages)

	msgs := history(t, st, conv.ID)
	require.Len(t, msgs, 2)
	assert.Equal(t, store.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Nothing today.", msgs[1].Content)
	assert.Empty(t, msgs[1].CreatedBy)
}

func TestReplyPersistsFallbackForEmptyAnswer(t *testing.T) {
	runner := &fakeRunner{output: &agent.Output{Exhausted: true, Rounds: 5}}
	svc, st, conv := setup(t, runner)

	reply, err := svc.Reply(context.Background(), "alice", conv.ID, &collectSink{})
	require.NoError(t, err)

	assert.True(t, reply.Exhausted)
	assert.Equal(t, "", reply.Answer)
	msgs := history(t, st, conv.ID)
	require.Len(t, msgs, 1)
	assert.Equal(t, "[Response given through function calls]", msgs[0].Content)
}

func TestReplyPersistsNothingOnFailure(t *testing.T) {
	runner := &fakeRunner{err: &llm.APIError{Provider: "mistral", StatusCode: 500}}
	svc, st, conv := setup(t, runner)

	_, err := svc.Reply(context.Background(), "alice", conv.ID, &collectSink{})

	var apiErr *llm.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Empty(t, history(t, st, conv.ID))
}

func TestReplyPersistsNothingOnAbort(t *testing.T) {
	runner := &fakeRunner{emit: []string{"partial"}, output: &agent.Output{Result: "partial"}}
	svc, st, conv := setup(t, runner)

	_, err := svc.Reply(context.Background(), "alice", conv.ID, &collectSink{err: errors.New("gone")})

	require.ErrorIs(t, err, agent.ErrAborted)
	assert.Empty(t, history(t, st, conv.ID))
}

func TestReplyRejectsForeignConversation(t *testing.T) {
	runner := &fakeRunner{output: &agent.Output{Result: "x"}}
	svc, _, conv := setup(t, runner)

	_, err := svc.Reply(context.Background(), "mallory", conv.ID, &collectSink{})

	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, runner.inputs)
}

func TestPostValidation(t *testing.T) {
	svc, _, conv := setup(t, &fakeRunner{})
	ctx := context.Background()

	_, err := svc.Post(ctx, "alice", conv.ID, "")
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, err = svc.Post(ctx, "alice", conv.ID, "   ")
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, err = svc.Post(ctx, "alice", conv.ID, strings.Repeat("é", MaxMessageLength+1))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	msg, err := svc.Post(ctx, "alice", conv.ID, strings.Repeat("é", MaxMessageLength))
	require.NoError(t, err)
	assert.Equal(t, "alice", msg.CreatedBy)

	_, err = svc.Post(ctx, "bob", conv.ID, "hi")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSystemPrompt(t *testing.T) {
	assert.Equal(t, "base", SystemPrompt("base", ""))
	assert.Equal(t, "guide", SystemPrompt("", "guide"))
	assert.Equal(t, "base\n\nguide", SystemPrompt("base", "guide"))
}
