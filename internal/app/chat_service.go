package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docuchat/internal/access"
	"docuchat/internal/ai"
	"docuchat/internal/retrieval"
	"docuchat/internal/session"
)

var (
	ErrMessageEmpty = errors.New("message content is empty")
)

// Retriever returns chunks relevant to a query, restricted by the filter.
type Retriever interface {
	Search(ctx context.Context, query string, filter retrieval.Filter) ([]retrieval.Result, error)
}

// ChatCompleter is the LLM collaborator.
type ChatCompleter interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, error)
	StreamComplete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage, onChunk func(string) error) (string, error)
}

// HistoryCache caches a session's history with a write-in-flight marker.
type HistoryCache interface {
	GetHistory(ctx context.Context, username, sessionID string) ([]session.Message, bool, error)
	SetHistory(ctx context.Context, username, sessionID string, messages []session.Message) error
	DeleteHistory(ctx context.Context, username, sessionID string) error
	MarkDirty(ctx context.Context, username, sessionID string) error
	IsDirty(ctx context.Context, username, sessionID string) (bool, error)
}

const groundedSystemPrompt = "You are a helpful assistant that answers questions based only on the provided document context. " +
	"If the context does not contain the answer, say you could not find relevant information. Do not make up facts."

type ChatService struct {
	store      *session.Store
	retriever  Retriever
	llm        ChatCompleter
	chatCfg    ai.ChatConfig
	cache      HistoryCache
	maxContext int
}

type SendMessageInput struct {
	Username  string
	Role      access.Role
	SessionID string // empty = start a new session titled from the prompt
	Content   string
}

type SendMessageResult struct {
	SessionID string            `json:"session_id"`
	Answer    string            `json:"answer"`
	Messages  []session.Message `json:"messages"`
	Sources   []string          `json:"sources,omitempty"`
}

func NewChatService(
	store *session.Store,
	retriever Retriever,
	llm ChatCompleter,
	chatCfg ai.ChatConfig,
	cache HistoryCache,
	maxContext int,
) *ChatService {
	if maxContext <= 0 {
		maxContext = 20
	}
	return &ChatService{
		store:      store,
		retriever:  retriever,
		llm:        llm,
		chatCfg:    chatCfg,
		cache:      cache,
		maxContext: maxContext,
	}
}

// SendMessage runs one conversation turn: resolve the role's retrieval
// filter, retrieve grounded context, ask the LLM, and persist the user
// and assistant turns through the session store.
func (s *ChatService) SendMessage(ctx context.Context, input SendMessageInput) (*SendMessageResult, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, ErrInvalidInput
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrMessageEmpty
	}

	filter, err := retrieval.FilterForRole(input.Role)
	if err != nil {
		return nil, err
	}

	sessionID := input.SessionID
	title := ""
	if sessionID == "" {
		title = session.TitleFromPrompt(content)
		sessionID, err = s.store.Create(username, title)
		if err != nil {
			return nil, err
		}
	}

	messages, err := s.store.Messages(sessionID, username)
	if err != nil {
		return nil, err
	}
	history := messages
	messages = append(messages, session.Message{
		Role:      "user",
		Content:   content,
		Timestamp: time.Now(),
	})

	answer, sources := s.answer(ctx, content, history, filter)

	messages = append(messages, session.Message{
		Role:      "assistant",
		Content:   answer,
		Timestamp: time.Now(),
	})

	if s.cache != nil {
		_ = s.cache.MarkDirty(ctx, username, sessionID)
		_ = s.cache.DeleteHistory(ctx, username, sessionID)
	}
	if err := s.store.SaveMessages(sessionID, messages, username, title); err != nil {
		return nil, err
	}

	return &SendMessageResult{
		SessionID: sessionID,
		Answer:    answer,
		Messages:  messages,
		Sources:   sources,
	}, nil
}

// answer retrieves context through the filter and asks the LLM. Retrieval
// or completion failures degrade to the not-found reply instead of
// failing the turn.
func (s *ChatService) answer(ctx context.Context, question string, history []session.Message, filter retrieval.Filter) (string, []string) {
	results, err := s.retriever.Search(ctx, question, filter)
	if err != nil || len(results) == 0 {
		return notFoundReply(question), nil
	}

	var contextBlock strings.Builder
	sources := make([]string, 0, len(results))
	for _, r := range results {
		contextBlock.WriteString("\n---\n")
		contextBlock.WriteString(r.Chunk.Content)
		sources = append(sources, r.Chunk.Content)
	}
	contextBlock.WriteString("\n---")

	prompt := s.buildPrompt(question, contextBlock.String(), history)
	answer, err := s.llm.Complete(ctx, s.chatCfg, prompt)
	if err != nil {
		return notFoundReply(question), nil
	}
	answer = strings.TrimSpace(answer)
	if answer == "" || soundsLikeNotFound(answer) {
		return notFoundReply(question), nil
	}
	return answer, sources
}

func (s *ChatService) buildPrompt(question, contextBlock string, history []session.Message) []ai.ChatMessage {
	recent := history
	if len(recent) > s.maxContext {
		recent = recent[len(recent)-s.maxContext:]
	}

	prompt := make([]ai.ChatMessage, 0, len(recent)+2)
	prompt = append(prompt, ai.ChatMessage{Role: "system", Content: groundedSystemPrompt})
	for _, m := range recent {
		role := m.Role
		if role != "assistant" {
			role = "user"
		}
		prompt = append(prompt, ai.ChatMessage{Role: role, Content: m.Content})
	}
	prompt = append(prompt, ai.ChatMessage{
		Role:    "user",
		Content: "Context:" + contextBlock + "\n\nQuestion: " + question + "\n\nAnswer:",
	})
	return prompt
}

// History returns the session's messages, served from the cache when it
// is warm and no write is in flight.
func (s *ChatService) History(ctx context.Context, username, sessionID string) ([]session.Message, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidInput
	}

	if s.cache != nil {
		dirty, err := s.cache.IsDirty(ctx, username, sessionID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.cache.GetHistory(ctx, username, sessionID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	messages, err := s.store.Messages(sessionID, username)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if dirty, dirtyErr := s.cache.IsDirty(ctx, username, sessionID); dirtyErr == nil && !dirty {
			_ = s.cache.SetHistory(ctx, username, sessionID, messages)
		}
	}
	return messages, nil
}

func (s *ChatService) ListSessions(username string) ([]session.Info, error) {
	if strings.TrimSpace(username) == "" {
		return nil, ErrInvalidInput
	}
	return s.store.List(username)
}

// DeleteSession reports true when the session is gone from the caller's
// view; a foreign or unknown id is false, indistinguishable either way.
func (s *ChatService) DeleteSession(ctx context.Context, username, sessionID string) (bool, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(sessionID) == "" {
		return false, ErrInvalidInput
	}
	deleted, err := s.store.Delete(sessionID, username)
	if err != nil {
		return false, err
	}
	if deleted && s.cache != nil {
		_ = s.cache.DeleteHistory(ctx, username, sessionID)
	}
	return deleted, nil
}

// StreamMessage is SendMessage with the assistant reply streamed through
// onChunk. When no grounded context exists, the canonical not-found reply
// is delivered as a single chunk.
func (s *ChatService) StreamMessage(
	ctx context.Context,
	input SendMessageInput,
	onChunk func(string) error,
) (*SendMessageResult, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, ErrInvalidInput
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrMessageEmpty
	}

	filter, err := retrieval.FilterForRole(input.Role)
	if err != nil {
		return nil, err
	}

	sessionID := input.SessionID
	title := ""
	if sessionID == "" {
		title = session.TitleFromPrompt(content)
		sessionID, err = s.store.Create(username, title)
		if err != nil {
			return nil, err
		}
	}

	messages, err := s.store.Messages(sessionID, username)
	if err != nil {
		return nil, err
	}
	history := messages
	messages = append(messages, session.Message{
		Role:      "user",
		Content:   content,
		Timestamp: time.Now(),
	})

	var answer string
	results, err := s.retriever.Search(ctx, content, filter)
	if err != nil || len(results) == 0 {
		answer = notFoundReply(content)
		if err := onChunk(answer); err != nil {
			return nil, err
		}
	} else {
		var contextBlock strings.Builder
		for _, r := range results {
			contextBlock.WriteString("\n---\n")
			contextBlock.WriteString(r.Chunk.Content)
		}
		contextBlock.WriteString("\n---")

		prompt := s.buildPrompt(content, contextBlock.String(), history)
		answer, err = s.llm.StreamComplete(ctx, s.chatCfg, prompt, onChunk)
		if err != nil {
			return nil, err
		}
		answer = strings.TrimSpace(answer)
		if answer == "" {
			answer = notFoundReply(content)
		}
	}

	messages = append(messages, session.Message{
		Role:      "assistant",
		Content:   answer,
		Timestamp: time.Now(),
	})

	if s.cache != nil {
		_ = s.cache.MarkDirty(ctx, username, sessionID)
		_ = s.cache.DeleteHistory(ctx, username, sessionID)
	}
	if err := s.store.SaveMessages(sessionID, messages, username, title); err != nil {
		return nil, err
	}

	return &SendMessageResult{
		SessionID: sessionID,
		Answer:    answer,
		Messages:  messages,
	}, nil
}

func notFoundReply(question string) string {
	return fmt.Sprintf("I couldn't find relevant information for %q. Feel free to rephrase or try a different topic.", question)
}

// soundsLikeNotFound normalizes the LLM's many ways of saying "no answer
// in context" onto the single canonical reply.
func soundsLikeNotFound(answer string) bool {
	lower := strings.ToLower(answer)
	for _, phrase := range []string{
		"cannot find",
		"don't have information",
		"not mentioned",
		"cannot answer",
		"no information",
		"not available",
	} {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
