package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"gemchat/internal/logger"
	"gemchat/internal/storage"
	"gemchat/internal/testutils"
	"gemchat/pkg/chattypes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	service *ChatSessionService
	client  *testutils.ScriptedClient
	slot    *storage.MemorySlot
}

func newServiceFixture(t *testing.T, turns []testutils.ScriptedTurn, opts ...ChatSessionOption) *serviceFixture {
	t.Helper()
	slot := storage.NewMemorySlot()
	client := testutils.NewScriptedClient(turns...)
	ids := testutils.NewIDSequence()
	clock := testutils.NewClock()

	all := append([]ChatSessionOption{
		WithPersistence(NewPersistenceService(slot)),
		WithIDGenerator(ids.Next),
		WithClock(clock.Now),
	}, opts...)

	return &serviceFixture{
		service: NewChatSessionService(client, all...),
		client:  client,
		slot:    slot,
	}
}

func (f *serviceFixture) persisted(t *testing.T) []chattypes.ChatSession {
	t.Helper()
	data, err := f.slot.Get(SessionsKey)
	require.NoError(t, err)
	var sessions []chattypes.ChatSession
	require.NoError(t, json.Unmarshal(data, &sessions))
	return sessions
}

// closingClient closes its stream after the fragments without a terminal chunk.
type closingClient struct{ chunks []string }

func (c closingClient) GetProviderName() string { return "closing" }
func (c closingClient) GetModelName() string    { return "closing-model" }
func (c closingClient) StreamChat(ctx context.Context, _ []chattypes.Message, _ string) (<-chan chattypes.StreamChunk, error) {
	out := make(chan chattypes.StreamChunk, len(c.chunks))
	for _, chunk := range c.chunks {
		out <- chattypes.StreamChunk{Content: chunk}
	}
	close(out)
	return out, nil
}

// finalChunkClient answers with a single chunk that carries content and completion.
type finalChunkClient struct{ content string }

func (c finalChunkClient) GetProviderName() string { return "final" }
func (c finalChunkClient) GetModelName() string    { return "final-model" }
func (c finalChunkClient) StreamChat(ctx context.Context, _ []chattypes.Message, _ string) (<-chan chattypes.StreamChunk, error) {
	out := make(chan chattypes.StreamChunk, 1)
	out <- chattypes.StreamChunk{Content: c.content, Done: true}
	close(out)
	return out, nil
}

func TestSend_EmptyStoreCreatesSession(t *testing.T) {
	f := newServiceFixture(t, []testutils.ScriptedTurn{testutils.Reply("Hi", " there")})

	require.NoError(t, f.service.Send(context.Background(), "Hello"))

	snap := f.service.Snapshot()
	require.Len(t, snap.Sessions, 1)
	session := snap.Sessions[0]
	assert.Equal(t, session.ID, snap.ActiveID)
	assert.Equal(t, "Hello", session.Title)
	require.Len(t, session.Messages, 2)

	assert.Equal(t, chattypes.RoleUser, session.Messages[0].Role)
	assert.Equal(t, "Hello", session.Messages[0].Content)
	assert.Equal(t, chattypes.RoleAssistant, session.Messages[1].Role)
	assert.Equal(t, "Hi there", session.Messages[1].Content)
	assert.False(t, session.Messages[1].IsStreaming)
	assert.False(t, snap.Busy)
	assert.False(t, f.service.IsBusy())

	calls := f.client.Calls()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].History)
	assert.Equal(t, "Hello", calls[0].NewText)

	assert.Equal(t, snap.Sessions, f.persisted(t), "persisted state should mirror memory")
}

func TestSend_AlternatingMessages(t *testing.T) {
	const turns = 4
	var script []testutils.ScriptedTurn
	for i := 0; i < turns; i++ {
		script = append(script, testutils.Reply("answer"))
	}
	f := newServiceFixture(t, script)

	prompts := []string{"one", "two", "three", "four"}
	for _, prompt := range prompts {
		require.NoError(t, f.service.Send(context.Background(), prompt))
	}

	session, ok := f.service.ActiveSession()
	require.True(t, ok)
	require.Len(t, session.Messages, 2*turns)
	for i, msg := range session.Messages {
		if i%2 == 0 {
			assert.Equal(t, chattypes.RoleUser, msg.Role)
			assert.Equal(t, prompts[i/2], msg.Content)
		} else {
			assert.Equal(t, chattypes.RoleAssistant, msg.Role)
			assert.Equal(t, "answer", msg.Content)
		}
	}
	assert.Equal(t, "one", session.Title, "title should come from the first message only")

	calls := f.client.Calls()
	require.Len(t, calls, turns)
	assert.Len(t, calls[1].History, 2, "history excludes the new turn")
	assert.Equal(t, "two", calls[1].NewText)
	assert.Len(t, calls[3].History, 6)
}

func TestSend_Titles(t *testing.T) {
	long := "Explain quantum entanglement to me as if I'm a five-year-old."
	f := newServiceFixture(t, []testutils.ScriptedTurn{testutils.Reply("ok")})

	id := f.service.CreateSession()
	session, ok := f.service.ActiveSession()
	require.True(t, ok)
	assert.Equal(t, id, session.ID)
	assert.Equal(t, chattypes.DefaultSessionTitle, session.Title)
	assert.Empty(t, session.Messages)

	require.NoError(t, f.service.Send(context.Background(), "  "+long+"  "))
	session, _ = f.service.ActiveSession()
	assert.Equal(t, "Explain quantum entanglement t...", session.Title)
	assert.Equal(t, long, session.Messages[0].Content, "text should be trimmed")
}

func TestSend_StreamingObservations(t *testing.T) {
	var contents []string
	var versions []uint64
	violations := 0

	observer := func(snap chattypes.Snapshot) {
		versions = append(versions, snap.Version)
		for _, session := range snap.Sessions {
			if session.StreamingCount() > 1 {
				violations++
			}
		}
		if session, ok := snap.ActiveSession(); ok {
			if last, ok := session.LastMessage(); ok && last.Role == chattypes.RoleAssistant {
				contents = append(contents, last.Content)
			}
		}
	}

	f := newServiceFixture(t,
		[]testutils.ScriptedTurn{testutils.Reply("He", "llo", "!"), testutils.Reply("again")},
		WithObserver(observer),
	)

	require.NoError(t, f.service.Send(context.Background(), "Hi"))
	require.NoError(t, f.service.Send(context.Background(), "Hi again"))

	assert.Zero(t, violations)
	assert.Contains(t, contents, "He")
	assert.Contains(t, contents, "Hello")
	assert.Contains(t, contents, "Hello!")
	for i := 1; i < len(versions); i++ {
		assert.Greater(t, versions[i], versions[i-1])
	}
}

func TestSend_ContentOnFinalChunk(t *testing.T) {
	var observed []chattypes.Message
	observer := func(snap chattypes.Snapshot) {
		if session, ok := snap.ActiveSession(); ok {
			if last, ok := session.LastMessage(); ok && last.Role == chattypes.RoleAssistant {
				observed = append(observed, last)
			}
		}
	}

	slot := storage.NewMemorySlot()
	ids := testutils.NewIDSequence()
	service := NewChatSessionService(finalChunkClient{content: "All at once"},
		WithPersistence(NewPersistenceService(slot)),
		WithIDGenerator(ids.Next),
		WithObserver(observer),
	)

	require.NoError(t, service.Send(context.Background(), "Hello"))

	session, ok := service.ActiveSession()
	require.True(t, ok)
	reply := session.Messages[1]
	assert.Equal(t, "All at once", reply.Content)
	assert.False(t, reply.IsStreaming)

	for _, msg := range observed {
		if msg.Content == "All at once" {
			assert.False(t, msg.IsStreaming, "final content should arrive already completed")
		}
	}
}

func TestSend_ProviderFailsImmediately(t *testing.T) {
	f := newServiceFixture(t, []testutils.ScriptedTurn{{OpenErr: errors.New("connection refused")}})

	require.NoError(t, f.service.Send(context.Background(), "Hello"))

	session, ok := f.service.ActiveSession()
	require.True(t, ok)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, "Hello", session.Messages[0].Content)
	assert.Equal(t, DefaultErrorMessage, session.Messages[1].Content)
	assert.False(t, session.Messages[1].IsStreaming)
	assert.False(t, f.service.IsBusy())
	assert.Equal(t, session.Messages, f.persisted(t)[0].Messages)
}

func TestSend_FailureModes(t *testing.T) {
	tests := []struct {
		name   string
		client chattypes.ModelClient
	}{
		{
			name:   "mid-stream error replaces partial output",
			client: testutils.NewScriptedClient(testutils.ScriptedTurn{Chunks: []string{"partial"}, StreamErr: errors.New("reset")}),
		},
		{
			name:   "stream closed without terminal chunk",
			client: closingClient{chunks: []string{"partial"}},
		},
		{
			name:   "no scripted reply",
			client: testutils.NewScriptedClient(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewChatSessionService(tt.client, WithErrorMessage("oops"))
			require.NoError(t, service.Send(context.Background(), "Hello"))

			session, ok := service.ActiveSession()
			require.True(t, ok)
			require.Len(t, session.Messages, 2)
			assert.Equal(t, "oops", session.Messages[1].Content)
			assert.False(t, session.Messages[1].IsStreaming)
			assert.False(t, service.IsBusy())
		})
	}
}

func TestSend_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	f := newServiceFixture(t, []testutils.ScriptedTurn{{Chunks: []string{"never"}, Release: release}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, f.service.Send(ctx, "Hello"))

	session, _ := f.service.ActiveSession()
	assert.Equal(t, DefaultErrorMessage, session.Messages[1].Content)
}

func TestSend_RejectsWhileBusy(t *testing.T) {
	release := make(chan struct{})
	f := newServiceFixture(t, []testutils.ScriptedTurn{{Chunks: []string{"done"}, Release: release}})

	done := make(chan error, 1)
	go func() { done <- f.service.Send(context.Background(), "first") }()

	require.Eventually(t, func() bool {
		return f.service.Snapshot().Busy
	}, time.Second, 5*time.Millisecond)
	assert.True(t, f.service.IsBusy())

	err := f.service.Send(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("send did not finish")
	}

	assert.False(t, f.service.IsBusy())
	assert.False(t, f.service.Snapshot().Busy)
	session, _ := f.service.ActiveSession()
	require.Len(t, session.Messages, 2, "rejected send should not append messages")
	assert.Equal(t, "done", session.Messages[1].Content)
}

func TestSend_EmptyMessage(t *testing.T) {
	f := newServiceFixture(t, nil)

	assert.ErrorIs(t, f.service.Send(context.Background(), ""), ErrEmptyMessage)
	assert.ErrorIs(t, f.service.Send(context.Background(), " \n\t "), ErrEmptyMessage)
	assert.Empty(t, f.service.Snapshot().Sessions)
	assert.Empty(t, f.client.Calls())
}

func TestSend_NoActiveSessionIsNoop(t *testing.T) {
	f := newServiceFixture(t, []testutils.ScriptedTurn{testutils.Reply("unused")})
	f.service.snapshot = chattypes.Snapshot{
		Sessions: []chattypes.ChatSession{{ID: "orphan", Title: "Orphan", Messages: []chattypes.Message{}}},
	}

	require.NoError(t, f.service.Send(context.Background(), "Hello"))

	snap := f.service.Snapshot()
	require.Len(t, snap.Sessions, 1)
	assert.Empty(t, snap.Sessions[0].Messages)
	assert.Empty(t, snap.ActiveID)
	assert.Empty(t, f.client.Calls())
	assert.False(t, f.service.IsBusy())
}

func TestSend_SessionDeletedMidStream(t *testing.T) {
	release := make(chan struct{})
	f := newServiceFixture(t, []testutils.ScriptedTurn{{Chunks: []string{"late"}, Release: release}})

	done := make(chan error, 1)
	go func() { done <- f.service.Send(context.Background(), "Hello") }()

	require.Eventually(t, func() bool {
		session, ok := f.service.ActiveSession()
		return ok && len(session.Messages) == 2
	}, time.Second, 5*time.Millisecond)

	active, _ := f.service.ActiveSession()
	f.service.DeleteSession(active.ID)
	close(release)

	require.NoError(t, <-done)
	assert.Empty(t, f.service.Snapshot().Sessions)
	assert.Empty(t, f.persisted(t))
}

func TestSnapshotsAreImmutable(t *testing.T) {
	f := newServiceFixture(t, []testutils.ScriptedTurn{testutils.Reply("first"), testutils.Reply("second")})

	require.NoError(t, f.service.Send(context.Background(), "one"))
	before := f.service.Snapshot()
	beforeMessages := append([]chattypes.Message(nil), before.Sessions[0].Messages...)

	require.NoError(t, f.service.Send(context.Background(), "two"))
	f.service.CreateSession()

	assert.Equal(t, beforeMessages, before.Sessions[0].Messages)
	assert.Len(t, before.Sessions, 1)
	assert.Greater(t, f.service.Snapshot().Version, before.Version)
}

func TestDeleteSession(t *testing.T) {
	t.Run("non-active session", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		older := f.service.CreateSession()
		newer := f.service.CreateSession()
		require.Equal(t, newer, f.service.Snapshot().ActiveID)

		f.service.DeleteSession(older)

		snap := f.service.Snapshot()
		require.Len(t, snap.Sessions, 1)
		assert.Equal(t, newer, snap.Sessions[0].ID)
		assert.Equal(t, newer, snap.ActiveID)
		assert.Len(t, f.persisted(t), 1)
	})

	t.Run("active session moves to first remaining", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		oldest := f.service.CreateSession()
		middle := f.service.CreateSession()
		newest := f.service.CreateSession()
		f.service.SelectSession(middle)

		f.service.DeleteSession(middle)
		assert.Equal(t, newest, f.service.Snapshot().ActiveID)

		f.service.DeleteSession(newest)
		assert.Equal(t, oldest, f.service.Snapshot().ActiveID)

		f.service.DeleteSession(oldest)
		assert.Empty(t, f.service.Snapshot().ActiveID)
		assert.Empty(t, f.service.Snapshot().Sessions)
	})

	t.Run("unknown id is ignored", func(t *testing.T) {
		f := newServiceFixture(t, nil)
		f.service.CreateSession()
		version := f.service.Snapshot().Version

		f.service.DeleteSession("missing")
		f.service.DeleteSession("missing")
		assert.Equal(t, version, f.service.Snapshot().Version)
	})
}

func TestDeleteSession_LogsOnlyRemovals(t *testing.T) {
	var logs bytes.Buffer
	logger.SetOutput(&logs)
	level := logger.Logger.GetLevel()
	logger.Logger.SetLevel(logger.ParseLevel("debug"))
	t.Cleanup(func() {
		logger.Logger.SetLevel(level)
		logger.SetOutput(os.Stderr)
	})

	f := newServiceFixture(t, nil)
	id := f.service.CreateSession()

	f.service.DeleteSession("missing")
	assert.NotContains(t, logs.String(), "Session deleted")

	f.service.DeleteSession(id)
	assert.Contains(t, logs.String(), "Session deleted")
}

func TestSelectSession(t *testing.T) {
	f := newServiceFixture(t, nil)
	first := f.service.CreateSession()
	second := f.service.CreateSession()

	f.service.SelectSession(first)
	assert.Equal(t, first, f.service.Snapshot().ActiveID)

	f.service.SelectSession("missing")
	assert.Equal(t, first, f.service.Snapshot().ActiveID)

	snap := f.service.Snapshot()
	assert.Equal(t, []string{second, first}, []string{snap.Sessions[0].ID, snap.Sessions[1].ID}, "newest first")
}

func TestLoad_RoundTrip(t *testing.T) {
	f := newServiceFixture(t, []testutils.ScriptedTurn{testutils.Reply("a"), testutils.Reply("b")})
	require.NoError(t, f.service.Send(context.Background(), "first chat"))
	f.service.CreateSession()
	require.NoError(t, f.service.Send(context.Background(), "second chat"))
	f.service.CreateSession()

	original := f.service.Snapshot().Sessions

	reloaded := NewChatSessionService(testutils.NewScriptedClient(), WithPersistence(NewPersistenceService(f.slot)))
	reloaded.Load()

	snap := reloaded.Snapshot()
	assert.Equal(t, original, snap.Sessions)
	assert.Equal(t, original[0].ID, snap.ActiveID, "newest session becomes active")
}

func TestFindSession(t *testing.T) {
	f := newServiceFixture(t, nil)
	first := f.service.CreateSession()  // 00000001-...
	second := f.service.CreateSession() // 00000002-...

	session, err := f.service.FindSession(first)
	require.NoError(t, err)
	assert.Equal(t, first, session.ID)

	session, err = f.service.FindSession("00000002")
	require.NoError(t, err)
	assert.Equal(t, second, session.ID)

	_, err = f.service.FindSession("0000000")
	assert.ErrorIs(t, err, ErrAmbiguousSession)

	_, err = f.service.FindSession("ffff")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = f.service.FindSession("")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSubscribe(t *testing.T) {
	f := newServiceFixture(t, nil)
	var seen []chattypes.Snapshot
	f.service.Subscribe(func(snap chattypes.Snapshot) { seen = append(seen, snap) })

	id := f.service.CreateSession()
	require.Len(t, seen, 1)
	assert.Equal(t, id, seen[0].ActiveID)
}
