package eventsystem

import (
	"context"
	"runtime/debug"
	"sync"

	"emperror.dev/errors"
	"github.com/cirelion/narc/bot"
	"github.com/cirelion/narc/common"
)

type Event int

const (
	EventMessageCreate Event = iota
	EventMessageReactionAdd
	EventMessageReactionRemove
	EventGuildAvailable
	EventGuildUnavailable
	EventGuildRemove
)

var eventNames = map[Event]string{
	EventMessageCreate:         "MessageCreate",
	EventMessageReactionAdd:    "MessageReactionAdd",
	EventMessageReactionRemove: "MessageReactionRemove",
	EventGuildAvailable:        "GuildAvailable",
	EventGuildUnavailable:      "GuildUnavailable",
	EventGuildRemove:           "GuildRemove",
}

func (e Event) String() string {
	if n, ok := eventNames[e]; ok {
		return n
	}

	return "Unknown"
}

type EventData struct {
	Type         Event
	EvtInterface interface{}

	ctx context.Context
}

func NewEventData(ctx context.Context, t Event, evt interface{}) *EventData {
	return &EventData{Type: t, EvtInterface: evt, ctx: ctx}
}

func (e *EventData) Context() context.Context {
	if e.ctx == nil {
		return context.Background()
	}

	return e.ctx
}

func (e *EventData) Message() *bot.Message {
	return e.EvtInterface.(*bot.Message)
}

func (e *EventData) Reaction() *bot.ReactionEvent {
	return e.EvtInterface.(*bot.ReactionEvent)
}

func (e *EventData) Guild() *bot.GuildEvent {
	return e.EvtInterface.(*bot.GuildEvent)
}

type HandlerFunc func(evt *EventData) error

type Handler struct {
	Plugin common.Plugin
	F      HandlerFunc
}

// System fans events out to the handlers registered for them. Every handler
// runs in its own goroutine so a slow handler never blocks the gateway.
type System struct {
	mu       sync.RWMutex
	handlers map[Event][]*Handler
	wg       sync.WaitGroup
}

func NewSystem() *System {
	return &System{handlers: make(map[Event][]*Handler)}
}

func (s *System) AddHandlerAsync(p common.Plugin, f HandlerFunc, evts ...Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := &Handler{Plugin: p, F: f}
	for _, evt := range evts {
		s.handlers[evt] = append(s.handlers[evt], h)
	}
}

func (s *System) Emit(evt *EventData) {
	s.mu.RLock()
	handlers := s.handlers[evt.Type]
	s.mu.RUnlock()

	for _, h := range handlers {
		s.wg.Add(1)
		go s.run(h, evt)
	}
}

// Wait blocks until every handler started so far has returned
func (s *System) Wait() {
	s.wg.Wait()
}

func (s *System) run(h *Handler, evt *EventData) {
	defer s.wg.Done()

	l := common.GetPluginLogger(h.Plugin).WithField("evt", evt.Type.String())
	defer func() {
		if r := recover(); r != nil {
			err := errors.Errorf("panic in event handler: %v", r)
			l.WithField("stack", string(debug.Stack())).WithError(err).Error("Recovered from panic")
			common.CaptureError(err, map[string]string{"evt": evt.Type.String()})
		}
	}()

	if err := h.F(evt); err != nil {
		l.WithError(err).Error("Failed handling event")
	}
}
