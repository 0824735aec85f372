package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/cirelion/narc/bot"
	"github.com/cirelion/narc/bot/eventsystem"
)

func (p *Platform) addHandlers() {
	p.Session.AddHandler(p.handleMessageCreate)
	p.Session.AddHandler(p.handleReactionAdd)
	p.Session.AddHandler(p.handleReactionRemove)
	p.Session.AddHandler(p.handleGuildCreate)
	p.Session.AddHandler(p.handleGuildDelete)
	p.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logger.WithField("user", r.User.Username).WithField("guilds", len(r.Guilds)).Info("Connected to gateway")
	})
}

func (p *Platform) emit(t eventsystem.Event, evt interface{}) {
	if p.events == nil {
		return
	}

	p.events.Emit(eventsystem.NewEventData(context.Background(), t, evt))
}

func (p *Platform) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	msg := convertMessage(m.Message)
	p.waiters.DeliverMessage(msg)
	p.emit(eventsystem.EventMessageCreate, msg)
}

func (p *Platform) handleReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	evt := convertReaction(r.MessageReaction, true)
	p.waiters.DeliverReaction(evt)
	p.emit(eventsystem.EventMessageReactionAdd, evt)
}

func (p *Platform) handleReactionRemove(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
	p.emit(eventsystem.EventMessageReactionRemove, convertReaction(r.MessageReaction, false))
}

func (p *Platform) handleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	p.emit(eventsystem.EventGuildAvailable, &bot.GuildEvent{
		Kind:    bot.GuildAvailable,
		GuildID: parseID(g.ID),
		OwnerID: parseID(g.OwnerID),
		Name:    g.Name,
	})
}

func (p *Platform) handleGuildDelete(s *discordgo.Session, g *discordgo.GuildDelete) {
	if g.Unavailable {
		// outage, the guild will come back
		p.emit(eventsystem.EventGuildUnavailable, &bot.GuildEvent{Kind: bot.GuildUnavailable, GuildID: parseID(g.ID)})
		return
	}

	p.emit(eventsystem.EventGuildRemove, &bot.GuildEvent{Kind: bot.GuildRemoved, GuildID: parseID(g.ID)})
}
