package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/gophchat-server/internal/metrics"
	servermocks "github.com/dtroode/gophchat-server/internal/mocks"
	"github.com/dtroode/gophchat-server/internal/model"
	"github.com/dtroode/gophchat-server/internal/repository/memory"
	"github.com/dtroode/gophchat-server/internal/testutil"
)

func newTestHub(t *testing.T, store model.MessageStore) *Hub {
	t.Helper()
	return New(store, testutil.MakeNoopLogger(), metrics.New(), DefaultOptions())
}

func newMailbox(size int) *Mailbox {
	return NewMailbox(uuid.NewString(), size, nil)
}

// drain returns every event queued so far.
func drain(m *Mailbox) []model.Event {
	var events []model.Event
	for {
		select {
		case e := <-m.Events():
			events = append(events, e)
		default:
			return events
		}
	}
}

func messagesOf(events []model.Event) []model.ChatMessage {
	var out []model.ChatMessage
	for _, e := range events {
		if e.Name == model.EventChatMessage {
			out = append(out, e.Message)
		}
	}
	return out
}

func TestHub_RegisterReplaysHistory(t *testing.T) {
	ctx := context.Background()

	for _, k := range []int{0, 1, 199, 200, 250} {
		t.Run(fmt.Sprintf("%d stored", k), func(t *testing.T) {
			store := memory.NewMessageRepository()
			for i := range k {
				_, err := store.Append(ctx, model.ChatMessage{SenderLabel: "seed", Text: fmt.Sprintf("m%d", i)})
				require.NoError(t, err)
			}

			h := newTestHub(t, store)
			conn := newMailbox(8)
			require.NoError(t, h.Register(ctx, conn, model.NewAnonymousIdentity()))

			events := drain(conn)
			require.Len(t, events, 1)
			assert.Equal(t, model.EventChatHistory, events[0].Name)

			want := min(k, model.HistoryLimit)
			require.Len(t, events[0].History, want)
			require.NotNil(t, events[0].History)
			if want > 0 {
				assert.Equal(t, fmt.Sprintf("m%d", k-want), events[0].History[0].Text)
				assert.Equal(t, fmt.Sprintf("m%d", k-1), events[0].History[want-1].Text)
			}
		})
	}
}

func TestHub_HistoryGoesOnlyToJoiner(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, memory.NewMessageRepository())

	first := newMailbox(8)
	require.NoError(t, h.Register(ctx, first, model.NewAnonymousIdentity()))
	drain(first)

	second := newMailbox(8)
	require.NoError(t, h.Register(ctx, second, model.NewAnonymousIdentity()))

	assert.Empty(t, drain(first))
	assert.Len(t, drain(second), 1)
	assert.Equal(t, 2, h.Count())
}

// Two anonymous connections: A sends "hi", both receive the same record once.
func TestHub_AnonymousBroadcast(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMessageRepository()
	h := newTestHub(t, store)

	a, b := newMailbox(8), newMailbox(8)
	require.NoError(t, h.Register(ctx, a, model.NewAnonymousIdentity()))
	require.NoError(t, h.Register(ctx, b, model.NewAnonymousIdentity()))
	drain(a)
	drain(b)

	saved, err := h.Submit(ctx, a, model.InboundMessage{Text: "hi"})
	require.NoError(t, err)
	assert.Nil(t, saved.SenderID)
	assert.Equal(t, model.AnonymousLabel, saved.SenderLabel)

	gotA, gotB := messagesOf(drain(a)), messagesOf(drain(b))
	require.Len(t, gotA, 1)
	require.Len(t, gotB, 1)
	assert.Equal(t, saved, gotA[0])
	assert.Equal(t, saved, gotB[0])
	assert.Equal(t, 1, store.Len())
}

// Late joiner receives the last 200 of 250 in order, then live traffic.
func TestHub_LateJoiner(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMessageRepository()
	h := newTestHub(t, store)

	sender := newMailbox(512)
	require.NoError(t, h.Register(ctx, sender, model.NewAnonymousIdentity()))
	for i := range 250 {
		_, err := h.Submit(ctx, sender, model.InboundMessage{Text: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}

	late := newMailbox(8)
	require.NoError(t, h.Register(ctx, late, model.NewAnonymousIdentity()))
	_, err := h.Submit(ctx, sender, model.InboundMessage{Text: "live"})
	require.NoError(t, err)

	events := drain(late)
	require.Len(t, events, 2)
	require.Len(t, events[0].History, 200)
	assert.Equal(t, "m50", events[0].History[0].Text)
	assert.Equal(t, "m249", events[0].History[199].Text)
	assert.Equal(t, "live", events[1].Message.Text)
}

func TestHub_SubmitNormalisation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMessageRepository()
	h := newTestHub(t, store)

	id := uuid.New()
	conn := newMailbox(8)
	require.NoError(t, h.Register(ctx, conn, model.NewSubjectIdentity(id, "a@b.co")))
	drain(conn)

	t.Run("empty text is dropped", func(t *testing.T) {
		_, err := h.Submit(ctx, conn, model.InboundMessage{Text: "   \n\t"})
		assert.ErrorIs(t, err, ErrEmptyMessage)
		assert.Empty(t, drain(conn))
		assert.Equal(t, 0, store.Len())
	})

	t.Run("subject identity", func(t *testing.T) {
		saved, err := h.Submit(ctx, conn, model.InboundMessage{Text: "  hello  "})
		require.NoError(t, err)
		assert.Equal(t, "hello", saved.Text)
		require.NotNil(t, saved.SenderID)
		assert.Equal(t, id, *saved.SenderID)
		assert.Equal(t, "a@b.co", saved.SenderLabel)
		drain(conn)
	})

	t.Run("label override", func(t *testing.T) {
		saved, err := h.Submit(ctx, conn, model.InboundMessage{Text: "x", SenderLabelOverride: "  Bob "})
		require.NoError(t, err)
		assert.Equal(t, "Bob", saved.SenderLabel)

		saved, err = h.Submit(ctx, conn, model.InboundMessage{Text: "x", SenderLabelOverride: strings.Repeat("b", 100)})
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("b", 64), saved.SenderLabel)
		drain(conn)
	})

	t.Run("text cap", func(t *testing.T) {
		saved, err := h.Submit(ctx, conn, model.InboundMessage{Text: strings.Repeat("é", 2500)})
		require.NoError(t, err)
		assert.Equal(t, 2000, len([]rune(saved.Text)))
		drain(conn)
	})

	t.Run("unregistered connection", func(t *testing.T) {
		_, err := h.Submit(ctx, newMailbox(1), model.InboundMessage{Text: "x"})
		assert.ErrorIs(t, err, ErrNotRegistered)
	})
}

func TestHub_DeregisteredReceivesNothing(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, memory.NewMessageRepository())

	a, b := newMailbox(8), newMailbox(8)
	require.NoError(t, h.Register(ctx, a, model.NewAnonymousIdentity()))
	require.NoError(t, h.Register(ctx, b, model.NewAnonymousIdentity()))
	drain(a)
	drain(b)

	h.Deregister(b)
	h.Deregister(b)
	assert.Equal(t, 1, h.Count())

	_, err := h.Submit(ctx, a, model.InboundMessage{Text: "after"})
	require.NoError(t, err)

	assert.Empty(t, drain(b))
	assert.Len(t, drain(a), 1)

	_, err = h.Submit(ctx, b, model.InboundMessage{Text: "ghost"})
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestHub_StoreFailure(t *testing.T) {
	ctx := context.Background()
	store := servermocks.NewMessageStore(t)
	store.On("ListRecent", mock.Anything, model.HistoryLimit).Return(nil, model.ErrStoreUnavailable).Once()
	store.On("Append", mock.Anything, mock.Anything).Return(model.ChatMessage{}, model.ErrStoreUnavailable).Once()
	store.On("Append", mock.Anything, mock.Anything).Return(func(_ context.Context, m model.ChatMessage) (model.ChatMessage, error) {
		m.ID = "01J0000000000000000000000"
		m.CreatedAt = time.Now()
		return m, nil
	}).Once()

	m := metrics.New()
	h := New(store, testutil.MakeNoopLogger(), m, DefaultOptions())

	conn := newMailbox(8)
	require.NoError(t, h.Register(ctx, conn, model.NewAnonymousIdentity()))
	events := drain(conn)
	require.Len(t, events, 1)
	assert.Empty(t, events[0].History)

	_, err := h.Submit(ctx, conn, model.InboundMessage{Text: "lost"})
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
	assert.Empty(t, drain(conn))
	assert.Equal(t, 1, h.Count())

	saved, err := h.Submit(ctx, conn, model.InboundMessage{Text: "kept"})
	require.NoError(t, err)
	assert.Equal(t, "kept", saved.Text)
	assert.Len(t, drain(conn), 1)
}

func TestHub_SlowConsumerIsDisconnected(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, memory.NewMessageRepository())

	closed := make(chan struct{})
	slow := NewMailbox("slow", 2, func() { close(closed) })
	fast := newMailbox(16)
	require.NoError(t, h.Register(ctx, slow, model.NewAnonymousIdentity()))
	require.NoError(t, h.Register(ctx, fast, model.NewAnonymousIdentity()))

	for i := range 3 {
		_, err := h.Submit(ctx, fast, model.InboundMessage{Text: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}

	select {
	case <-closed:
	default:
		t.Fatal("slow connection was not closed")
	}
	assert.Equal(t, 1, h.Count())
	assert.Len(t, messagesOf(drain(fast)), 3)
}

type panickyConn struct {
	*Mailbox
}

func (p panickyConn) Enqueue(model.Event) bool {
	panic("boom")
}

func TestHub_PanicInSendIsIsolated(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, memory.NewMessageRepository())

	good := newMailbox(8)
	require.NoError(t, h.Register(ctx, good, model.NewAnonymousIdentity()))
	bad := panickyConn{newMailbox(8)}
	require.NoError(t, h.Register(ctx, bad, model.NewAnonymousIdentity()))
	assert.Equal(t, 1, h.Count())

	_, err := h.Submit(ctx, good, model.InboundMessage{Text: "still up"})
	require.NoError(t, err)
	assert.Len(t, messagesOf(drain(good)), 1)
}

// N messages from M connections: every receiver sees each record exactly
// once and in store-append order.
func TestHub_ConcurrentOrdering(t *testing.T) {
	const (
		conns   = 8
		perConn = 50
	)
	ctx := context.Background()
	store := memory.NewMessageRepository()
	h := newTestHub(t, store)

	mailboxes := make([]*Mailbox, conns)
	for i := range mailboxes {
		mailboxes[i] = newMailbox(conns*perConn + 1)
		require.NoError(t, h.Register(ctx, mailboxes[i], model.NewAnonymousIdentity()))
		drain(mailboxes[i])
	}

	var wg sync.WaitGroup
	for i := range mailboxes {
		wg.Add(1)
		go func(m *Mailbox) {
			defer wg.Done()
			for j := range perConn {
				_, err := h.Submit(ctx, m, model.InboundMessage{Text: fmt.Sprintf("%s-%d", m.ID(), j)})
				assert.NoError(t, err)
			}
		}(mailboxes[i])
	}
	wg.Wait()

	stored, err := store.ListRecent(ctx, conns*perConn)
	require.NoError(t, err)
	require.Len(t, stored, conns*perConn)

	for _, m := range mailboxes {
		got := messagesOf(drain(m))
		require.Len(t, got, conns*perConn)
		for i := range got {
			assert.Equal(t, stored[i].ID, got[i].ID)
		}
	}
}

func TestHub_RegisterDeregisterDuringBroadcast(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, memory.NewMessageRepository())

	sender := newMailbox(4096)
	require.NoError(t, h.Register(ctx, sender, model.NewAnonymousIdentity()))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			m := newMailbox(256)
			if err := h.Register(ctx, m, model.NewAnonymousIdentity()); err != nil {
				return
			}
			h.Deregister(m)
		}
	}()

	for i := range 200 {
		_, err := h.Submit(ctx, sender, model.InboundMessage{Text: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, 1, h.Count())
	assert.Len(t, messagesOf(drain(sender)), 200)
}

func TestHub_Shutdown(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, memory.NewMessageRepository())

	m := NewMailbox("c1", 4, nil)
	require.NoError(t, h.Register(ctx, m, model.NewAnonymousIdentity()))

	go func() {
		<-m.Closed()
		m.Finish()
	}()

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, h.Shutdown(shutdownCtx))
	assert.Equal(t, 0, h.Count())

	err := h.Register(ctx, newMailbox(1), model.NewAnonymousIdentity())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestHub_ShutdownTimeout(t *testing.T) {
	ctx := context.Background()
	h := newTestHub(t, memory.NewMessageRepository())
	require.NoError(t, h.Register(ctx, newMailbox(4), model.NewAnonymousIdentity()))

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.True(t, errors.Is(h.Shutdown(shutdownCtx), context.DeadlineExceeded))
}

func TestHub_History(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMessageRepository()
	h := newTestHub(t, store)

	history, err := h.History(ctx)
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)

	_, err = store.Append(ctx, model.ChatMessage{SenderLabel: "x", Text: "one"})
	require.NoError(t, err)
	history, err = h.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
