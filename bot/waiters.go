package bot

import (
	"context"

	"github.com/cirelion/narc/common/kvstore"
)

type replyKey struct {
	channelID int64
	userID    int64
}

type reactionKey struct {
	messageID int64
	userID    int64
}

// Waiters matches inbound messages and reactions against pending prompts.
// Platform implementations feed it from their event stream.
type Waiters struct {
	replies   kvstore.Map[replyKey, []chan *Message]
	reactions kvstore.Map[reactionKey, []chan Emoji]
}

func NewWaiters() *Waiters {
	return &Waiters{
		replies:   kvstore.New[replyKey, []chan *Message](),
		reactions: kvstore.New[reactionKey, []chan Emoji](),
	}
}

func (w *Waiters) AwaitReply(ctx context.Context, channelID, userID int64) (*Message, error) {
	key := replyKey{channelID: channelID, userID: userID}
	ch := make(chan *Message, 1)
	addWaiter(w.replies, key, ch)

	select {
	case m := <-ch:
		return m, nil
	case <-ctx.Done():
		removeWaiter(w.replies, key, ch)
		return nil, timeoutErr(ctx)
	}
}

// DeliverMessage hands m to every prompt waiting on its author and channel
func (w *Waiters) DeliverMessage(m *Message) bool {
	if m.Author == nil {
		return false
	}

	return deliver(w.replies, replyKey{channelID: m.ChannelID, userID: m.Author.ID}, m)
}

func (w *Waiters) AwaitReaction(ctx context.Context, messageID, userID int64) (Emoji, error) {
	key := reactionKey{messageID: messageID, userID: userID}
	ch := make(chan Emoji, 1)
	addWaiter(w.reactions, key, ch)

	select {
	case e := <-ch:
		return e, nil
	case <-ctx.Done():
		removeWaiter(w.reactions, key, ch)
		return Emoji{}, timeoutErr(ctx)
	}
}

func (w *Waiters) DeliverReaction(evt *ReactionEvent) bool {
	if !evt.Added {
		return false
	}

	return deliver(w.reactions, reactionKey{messageID: evt.MessageID, userID: evt.UserID}, evt.Emoji)
}

func addWaiter[K comparable, V any](m kvstore.Map[K, []chan V], key K, ch chan V) {
	m.Update(key, func(current []chan V, ok bool) ([]chan V, bool) {
		return append(current, ch), true
	})
}

func removeWaiter[K comparable, V any](m kvstore.Map[K, []chan V], key K, ch chan V) {
	m.Update(key, func(current []chan V, ok bool) ([]chan V, bool) {
		kept := make([]chan V, 0, len(current))
		for _, c := range current {
			if c != ch {
				kept = append(kept, c)
			}
		}
		return kept, len(kept) > 0
	})
}

func deliver[K comparable, V any](m kvstore.Map[K, []chan V], key K, v V) bool {
	var pending []chan V
	m.Update(key, func(current []chan V, ok bool) ([]chan V, bool) {
		pending = current
		return nil, false
	})

	for _, ch := range pending {
		// every channel has room for exactly one value and is only delivered to once
		ch <- v
	}

	return len(pending) > 0
}
