package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuchat/internal/access"
	"docuchat/internal/ai"
	"docuchat/internal/model"
	"docuchat/internal/retrieval"
	"docuchat/internal/session"
)

type fakeRetriever struct {
	results    []retrieval.Result
	err        error
	lastLevels []string
}

func (f *fakeRetriever) Search(_ context.Context, _ string, filter retrieval.Filter) ([]retrieval.Result, error) {
	f.lastLevels = filter.LevelStrings()
	return f.results, f.err
}

type fakeLLM struct {
	answer string
	err    error
}

func (f *fakeLLM) Complete(_ context.Context, _ ai.ChatConfig, _ []ai.ChatMessage) (string, error) {
	return f.answer, f.err
}

func (f *fakeLLM) StreamComplete(_ context.Context, _ ai.ChatConfig, _ []ai.ChatMessage, onChunk func(string) error) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	for _, part := range strings.SplitAfter(f.answer, " ") {
		if err := onChunk(part); err != nil {
			return "", err
		}
	}
	return f.answer, nil
}

func chunkResult(content string) retrieval.Result {
	return retrieval.Result{Chunk: model.DocumentChunk{Content: content}, Score: 0.9}
}

func newTestChatService(t *testing.T, retriever Retriever, llm ChatCompleter) *ChatService {
	t.Helper()
	store, err := session.NewStore(t.TempDir())
	require.NoError(t, err)
	return NewChatService(store, retriever, llm, ai.ChatConfig{}, nil, 0)
}

func TestSendMessageGroundedAnswer(t *testing.T) {
	retriever := &fakeRetriever{results: []retrieval.Result{chunkResult("deploys run via CI")}}
	svc := newTestChatService(t, retriever, &fakeLLM{answer: "Deploys run through CI."})

	result, err := svc.SendMessage(context.Background(), SendMessageInput{
		Username: "alice",
		Role:     access.RoleAITeam,
		Content:  "Tell me about the deployment process",
	})
	require.NoError(t, err)

	assert.Equal(t, "Deploys run through CI.", result.Answer)
	assert.NotEmpty(t, result.SessionID)
	assert.True(t, strings.HasPrefix(result.SessionID, "The_Deployment_Process_"))
	require.Len(t, result.Messages, 2)
	assert.Equal(t, "user", result.Messages[0].Role)
	assert.Equal(t, "assistant", result.Messages[1].Role)
	assert.Equal(t, []string{"deploys run via CI"}, result.Sources)

	// The retriever saw exactly the role's allowed levels.
	assert.Equal(t, []string{"Low", "Medium"}, retriever.lastLevels)
}

func TestSendMessagePersistsTurns(t *testing.T) {
	retriever := &fakeRetriever{results: []retrieval.Result{chunkResult("ctx")}}
	svc := newTestChatService(t, retriever, &fakeLLM{answer: "first answer"})

	first, err := svc.SendMessage(context.Background(), SendMessageInput{
		Username: "alice",
		Role:     access.RoleAdmin,
		Content:  "first question",
	})
	require.NoError(t, err)

	second, err := svc.SendMessage(context.Background(), SendMessageInput{
		Username:  "alice",
		Role:      access.RoleAdmin,
		SessionID: first.SessionID,
		Content:   "second question",
	})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)
	require.Len(t, second.Messages, 4)

	history, err := svc.History(context.Background(), "alice", first.SessionID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "first question", history[0].Content)
	assert.Equal(t, "second question", history[2].Content)
}

func TestSendMessageNoContextFallsBack(t *testing.T) {
	svc := newTestChatService(t, &fakeRetriever{}, &fakeLLM{answer: "should not be used"})

	result, err := svc.SendMessage(context.Background(), SendMessageInput{
		Username: "alice",
		Role:     access.RoleBackendTeam,
		Content:  "anything secret here?",
	})
	require.NoError(t, err)
	assert.Contains(t, result.Answer, "I couldn't find relevant information for")
	assert.Contains(t, result.Answer, `"anything secret here?"`)
	assert.Empty(t, result.Sources)

	// The fallback turn is persisted like any other.
	require.Len(t, result.Messages, 2)
	assert.Equal(t, result.Answer, result.Messages[1].Content)
}

func TestSendMessageRetrieverFailureDegrades(t *testing.T) {
	retriever := &fakeRetriever{err: errors.New("search backend down")}
	svc := newTestChatService(t, retriever, &fakeLLM{answer: "unused"})

	result, err := svc.SendMessage(context.Background(), SendMessageInput{
		Username: "alice",
		Role:     access.RoleAdmin,
		Content:  "what now",
	})
	require.NoError(t, err)
	assert.Contains(t, result.Answer, "I couldn't find relevant information for")
}

func TestSendMessageLLMNotFoundPhraseNormalized(t *testing.T) {
	retriever := &fakeRetriever{results: []retrieval.Result{chunkResult("ctx")}}
	svc := newTestChatService(t, retriever, &fakeLLM{answer: "There is no information about that in the context."})

	result, err := svc.SendMessage(context.Background(), SendMessageInput{
		Username: "alice",
		Role:     access.RoleAdmin,
		Content:  "an obscure topic",
	})
	require.NoError(t, err)
	assert.Contains(t, result.Answer, "I couldn't find relevant information for")
}

func TestSendMessageValidation(t *testing.T) {
	svc := newTestChatService(t, &fakeRetriever{}, &fakeLLM{})

	_, err := svc.SendMessage(context.Background(), SendMessageInput{
		Username: "alice",
		Role:     access.RoleAdmin,
		Content:  "   ",
	})
	assert.ErrorIs(t, err, ErrMessageEmpty)

	_, err = svc.SendMessage(context.Background(), SendMessageInput{
		Username: "",
		Role:     access.RoleAdmin,
		Content:  "hello",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.SendMessage(context.Background(), SendMessageInput{
		Username: "alice",
		Role:     access.Role("Intern"),
		Content:  "hello",
	})
	assert.ErrorIs(t, err, access.ErrInvalidRole)
}

func TestStreamMessageDeliversChunks(t *testing.T) {
	retriever := &fakeRetriever{results: []retrieval.Result{chunkResult("ctx")}}
	svc := newTestChatService(t, retriever, &fakeLLM{answer: "streamed grounded answer"})

	var streamed strings.Builder
	result, err := svc.StreamMessage(context.Background(), SendMessageInput{
		Username: "alice",
		Role:     access.RoleAdmin,
		Content:  "stream it",
	}, func(chunk string) error {
		streamed.WriteString(chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "streamed grounded answer", streamed.String())
	assert.Equal(t, "streamed grounded answer", result.Answer)
	require.Len(t, result.Messages, 2)
}

func TestStreamMessageNotFoundSingleChunk(t *testing.T) {
	svc := newTestChatService(t, &fakeRetriever{}, &fakeLLM{answer: "unused"})

	var chunks []string
	result, err := svc.StreamMessage(context.Background(), SendMessageInput{
		Username: "alice",
		Role:     access.RoleAdmin,
		Content:  "missing topic",
	}, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, result.Answer, chunks[0])
}

func TestListAndDeleteSessions(t *testing.T) {
	retriever := &fakeRetriever{results: []retrieval.Result{chunkResult("ctx")}}
	svc := newTestChatService(t, retriever, &fakeLLM{answer: "ok"})

	result, err := svc.SendMessage(context.Background(), SendMessageInput{
		Username: "alice",
		Role:     access.RoleAdmin,
		Content:  "make a session",
	})
	require.NoError(t, err)

	sessions, err := svc.ListSessions("alice")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, result.SessionID, sessions[0].ID)
	assert.Equal(t, 2, sessions[0].MessageCount)

	deleted, err := svc.DeleteSession(context.Background(), "alice", result.SessionID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = svc.DeleteSession(context.Background(), "alice", result.SessionID)
	require.NoError(t, err)
	assert.False(t, deleted)

	sessions, err = svc.ListSessions("alice")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestHistoryUnknownSessionEmpty(t *testing.T) {
	svc := newTestChatService(t, &fakeRetriever{}, &fakeLLM{})

	history, err := svc.History(context.Background(), "alice", "no_such_session_20240101_000000")
	require.NoError(t, err)
	assert.Empty(t, history)
}
