package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gemchat/internal/logger"
	"gemchat/pkg/chattypes"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// DefaultErrorMessage replaces the assistant reply when a turn fails.
const DefaultErrorMessage = "Sorry, I encountered an error while processing your request. Please try again."

var (
	// ErrBusy is returned by Send while another turn is streaming.
	ErrBusy = errors.New("a response is already streaming")
	// ErrEmptyMessage is returned by Send for empty or whitespace-only text.
	ErrEmptyMessage = errors.New("message cannot be empty")
	// ErrSessionNotFound is returned when no session matches an id or prefix.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAmbiguousSession is returned when a prefix matches more than one session.
	ErrAmbiguousSession = errors.New("session prefix is ambiguous")
)

// errStreamIncomplete marks a stream that closed without a terminal chunk.
var errStreamIncomplete = errors.New("stream ended without completion")

// ChatSessionOption configures a ChatSessionService.
type ChatSessionOption func(*ChatSessionService)

// WithPersistence mirrors every session mutation into p.
func WithPersistence(p *PersistenceService) ChatSessionOption {
	return func(c *ChatSessionService) { c.persistence = p }
}

// WithIDGenerator replaces the UUID generator used for sessions and messages.
func WithIDGenerator(newID func() string) ChatSessionOption {
	return func(c *ChatSessionService) { c.newID = newID }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ChatSessionOption {
	return func(c *ChatSessionService) { c.now = now }
}

// WithErrorMessage replaces the apology shown when a turn fails.
func WithErrorMessage(msg string) ChatSessionOption {
	return func(c *ChatSessionService) { c.errorMessage = msg }
}

// WithObserver registers fn to receive every new snapshot.
func WithObserver(fn func(chattypes.Snapshot)) ChatSessionOption {
	return func(c *ChatSessionService) { c.observers = append(c.observers, fn) }
}

// ChatSessionService owns the session collection and runs conversational turns.
//
// All state lives in an immutable chattypes.Snapshot. Each mutation builds a new
// snapshot under the lock, persists it and then notifies observers after the
// lock is released. Snapshots already handed out are never modified.
type ChatSessionService struct {
	client       chattypes.ModelClient
	persistence  *PersistenceService
	newID        func() string
	now          func() time.Time
	errorMessage string
	logger       *log.Logger

	mu        sync.Mutex
	snapshot  chattypes.Snapshot
	observers []func(chattypes.Snapshot)

	busy atomic.Bool
}

// NewChatSessionService creates an orchestrator that talks to client.
func NewChatSessionService(client chattypes.ModelClient, opts ...ChatSessionOption) *ChatSessionService {
	c := &ChatSessionService{
		client:       client,
		newID:        uuid.NewString,
		now:          time.Now,
		errorMessage: DefaultErrorMessage,
		logger:       logger.NewStyledLogger("Orchestrator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the service name "chat_session".
func (c *ChatSessionService) Name() string {
	return "chat_session"
}

// Subscribe registers an observer after construction.
func (c *ChatSessionService) Subscribe(fn func(chattypes.Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Load replaces the collection with the persisted sessions and activates the
// newest one. Without persistence it is a no-op.
func (c *ChatSessionService) Load() {
	if c.persistence == nil {
		return
	}
	sessions := c.persistence.Load()

	c.update(false, func(next *chattypes.Snapshot) bool {
		next.Sessions = sessions
		next.ActiveID = ""
		if len(sessions) > 0 {
			next.ActiveID = sessions[0].ID
		}
		return true
	})
	c.logger.Info("Sessions loaded", "count", len(sessions))
}

// Snapshot returns the current state.
func (c *ChatSessionService) Snapshot() chattypes.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// ActiveSession returns the active session, if any.
func (c *ChatSessionService) ActiveSession() (chattypes.ChatSession, bool) {
	return c.Snapshot().ActiveSession()
}

// IsBusy reports whether a turn is in progress.
func (c *ChatSessionService) IsBusy() bool {
	return c.busy.Load()
}

// CreateSession prepends an empty session, makes it active and returns its id.
func (c *ChatSessionService) CreateSession() string {
	session := c.newSession()

	c.update(true, func(next *chattypes.Snapshot) bool {
		next.Sessions = append([]chattypes.ChatSession{session}, next.Sessions...)
		next.ActiveID = session.ID
		return true
	})
	c.logger.Debug("Session created", "session", session.ID)
	return session.ID
}

// SelectSession makes id the active session. Unknown ids are ignored.
func (c *ChatSessionService) SelectSession(id string) {
	c.update(false, func(next *chattypes.Snapshot) bool {
		if next.ActiveID == id || next.IndexOf(id) < 0 {
			return false
		}
		next.ActiveID = id
		return true
	})
}

// DeleteSession removes id. When it was active, the first remaining session
// becomes active, or none. Unknown ids are ignored.
func (c *ChatSessionService) DeleteSession(id string) {
	_, changed := c.update(true, func(next *chattypes.Snapshot) bool {
		idx := next.IndexOf(id)
		if idx < 0 {
			return false
		}
		next.Sessions = append(next.Sessions[:idx], next.Sessions[idx+1:]...)
		if next.ActiveID == id {
			next.ActiveID = ""
			if len(next.Sessions) > 0 {
				next.ActiveID = next.Sessions[0].ID
			}
		}
		return true
	})
	if changed {
		c.logger.Debug("Session deleted", "session", id)
	}
}

// FindSession resolves an exact id or a unique id prefix.
func (c *ChatSessionService) FindSession(idOrPrefix string) (chattypes.ChatSession, error) {
	snap := c.Snapshot()
	if session, ok := snap.Session(idOrPrefix); ok {
		return session, nil
	}
	if idOrPrefix == "" {
		return chattypes.ChatSession{}, ErrSessionNotFound
	}

	var matches []chattypes.ChatSession
	for _, session := range snap.Sessions {
		if strings.HasPrefix(session.ID, idOrPrefix) {
			matches = append(matches, session)
		}
	}
	switch len(matches) {
	case 0:
		return chattypes.ChatSession{}, fmt.Errorf("%w: %s", ErrSessionNotFound, idOrPrefix)
	case 1:
		return matches[0], nil
	default:
		return chattypes.ChatSession{}, fmt.Errorf("%w: %s matches %d sessions", ErrAmbiguousSession, idOrPrefix, len(matches))
	}
}

// Send runs one conversational turn in the active session, creating a session
// when the collection is empty. It blocks until the reply has completed or
// failed. Provider failures are not returned: the reply is replaced by the
// apology and the user message is kept.
func (c *ChatSessionService) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.releaseBusy()

	sessionID, placeholderID, history := c.beginTurn(text)
	if sessionID == "" {
		c.logger.Debug("Send ignored, no active session")
		return nil
	}

	stream, err := c.client.StreamChat(ctx, history, text)
	if err != nil {
		c.failTurn(sessionID, placeholderID, err)
		return nil
	}

	var accumulated strings.Builder
	chunks := 0
	for chunk := range stream {
		if chunk.Error != nil {
			c.failTurn(sessionID, placeholderID, chunk.Error)
			go drain(stream)
			return nil
		}
		if chunk.Content != "" {
			chunks++
			accumulated.WriteString(chunk.Content)
		}
		// A final chunk may carry content; it is applied with the completion.
		if chunk.Done {
			c.patchMessage(sessionID, placeholderID, accumulated.String(), false)
			c.logger.Debug("Turn completed", "session", sessionID, "chunks", chunks)
			go drain(stream)
			return nil
		}
		if chunk.Content != "" {
			c.patchMessage(sessionID, placeholderID, accumulated.String(), true)
		}
	}

	c.failTurn(sessionID, placeholderID, errStreamIncomplete)
	return nil
}

// beginTurn appends the user message and the streaming placeholder. It returns
// an empty session id when there is nowhere to send.
func (c *ChatSessionService) beginTurn(text string) (sessionID, placeholderID string, history []chattypes.Message) {
	now := chattypes.MillisOf(c.now())
	userMsg := chattypes.Message{ID: c.newID(), Role: chattypes.RoleUser, Content: text, Timestamp: now}
	placeholder := chattypes.Message{ID: c.newID(), Role: chattypes.RoleAssistant, Timestamp: now, IsStreaming: true}

	c.update(true, func(next *chattypes.Snapshot) bool {
		idx := next.IndexOf(next.ActiveID)
		if idx < 0 {
			if len(next.Sessions) > 0 {
				return false
			}
			session := c.newSession()
			next.Sessions = []chattypes.ChatSession{session}
			next.ActiveID = session.ID
			idx = 0
		}

		session := next.Sessions[idx].Clone()
		history = make([]chattypes.Message, len(session.Messages))
		copy(history, session.Messages)

		if len(session.Messages) == 0 {
			session.Title = chattypes.DeriveTitle(text)
		}
		session.Messages = append(session.Messages, userMsg, placeholder)
		session.UpdatedAt = now
		next.Sessions[idx] = session
		next.Busy = true

		sessionID = session.ID
		placeholderID = placeholder.ID
		return true
	})
	return sessionID, placeholderID, history
}

// patchMessage replaces the content of a streaming message. Messages that have
// already left the streaming state are not touched.
func (c *ChatSessionService) patchMessage(sessionID, messageID, content string, streaming bool) bool {
	_, changed := c.update(true, func(next *chattypes.Snapshot) bool {
		idx := next.IndexOf(sessionID)
		if idx < 0 {
			return false
		}
		session := next.Sessions[idx]
		for i := len(session.Messages) - 1; i >= 0; i-- {
			if session.Messages[i].ID != messageID {
				continue
			}
			if !session.Messages[i].IsStreaming {
				return false
			}
			session = session.Clone()
			session.Messages[i].Content = content
			session.Messages[i].IsStreaming = streaming
			next.Sessions[idx] = session
			return true
		}
		return false
	})
	return changed
}

func (c *ChatSessionService) failTurn(sessionID, placeholderID string, err error) {
	c.logger.Error("Turn failed", "session", sessionID, "provider", c.client.GetProviderName(), "error", err)
	c.patchMessage(sessionID, placeholderID, c.errorMessage, false)
}

// releaseBusy clears the busy flag in the same critical section that publishes
// the idle snapshot, so observers never see Busy=false while Send still rejects.
func (c *ChatSessionService) releaseBusy() {
	c.update(false, func(next *chattypes.Snapshot) bool {
		next.Busy = false
		c.busy.Store(false)
		return true
	})
}

func (c *ChatSessionService) newSession() chattypes.ChatSession {
	now := chattypes.MillisOf(c.now())
	return chattypes.ChatSession{
		ID:        c.newID(),
		Title:     chattypes.DefaultSessionTitle,
		Messages:  []chattypes.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// update applies mutate to a copy of the current snapshot. The copy shares
// session values with the old snapshot; mutate must Clone a session before
// changing its messages. When persist is set the new collection is saved
// before the lock is released, so saves happen in mutation order.
func (c *ChatSessionService) update(persist bool, mutate func(next *chattypes.Snapshot) bool) (chattypes.Snapshot, bool) {
	c.mu.Lock()

	next := c.snapshot
	next.Sessions = make([]chattypes.ChatSession, len(c.snapshot.Sessions))
	copy(next.Sessions, c.snapshot.Sessions)

	if !mutate(&next) {
		current := c.snapshot
		c.mu.Unlock()
		return current, false
	}

	next.Version = c.snapshot.Version + 1
	c.snapshot = next
	if persist && c.persistence != nil {
		c.persistence.Save(next.Sessions)
	}
	observers := make([]func(chattypes.Snapshot), len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, observe := range observers {
		observe(next)
	}
	return next, true
}

func drain(stream <-chan chattypes.StreamChunk) {
	for range stream {
	}
}
