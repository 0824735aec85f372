package discord

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cirelion/narc/bot"
	"github.com/stretchr/testify/assert"
)

func TestRemoteErrClassification(t *testing.T) {
	rest := func(code int) error {
		return &discordgo.RESTError{Response: &http.Response{StatusCode: code}}
	}

	assert.Nil(t, remoteErr("op", nil))
	assert.True(t, bot.IsRemoteErr(remoteErr("op", rest(http.StatusForbidden)), bot.RemotePermission))
	assert.True(t, bot.IsRemoteErr(remoteErr("op", rest(http.StatusNotFound)), bot.RemoteNotFound))
	assert.True(t, bot.IsRemoteErr(remoteErr("op", rest(http.StatusTooManyRequests)), bot.RemoteRateLimited))
	assert.True(t, bot.IsRemoteErr(remoteErr("op", context.DeadlineExceeded), bot.RemoteNetwork))
	assert.True(t, bot.IsRemoteErr(remoteErr("op", assert.AnError), bot.RemoteUnknown))
}

func TestRateLimitErrorIsRateLimited(t *testing.T) {
	rateLimited := &discordgo.RateLimitError{RateLimit: &discordgo.RateLimit{
		TooManyRequests: &discordgo.TooManyRequests{RetryAfter: time.Second},
		URL:             discordgo.EndpointChannelMessages("1"),
	}}

	err := remoteErr("SendMessage", rateLimited)
	assert.True(t, bot.IsRemoteErr(err, bot.RemoteRateLimited))
	assert.False(t, bot.IsRemoteErr(err, bot.RemoteUnknown))
	assert.ErrorIs(t, err, rateLimited)
}

func TestConvertReaction(t *testing.T) {
	evt := convertReaction(&discordgo.MessageReaction{
		UserID:    "1",
		MessageID: "2",
		ChannelID: "3",
		GuildID:   "",
		Emoji:     discordgo.Emoji{ID: "44", Name: "flag"},
	}, true)

	assert.True(t, evt.Added)
	assert.False(t, evt.InGuild())
	assert.Equal(t, int64(2), evt.MessageID)
	assert.Equal(t, bot.Emoji{ID: 44, Name: "flag"}, evt.Emoji)
}

func TestMessageCreateFeedsWaiters(t *testing.T) {
	p := &Platform{waiters: bot.NewWaiters()}

	done := make(chan *bot.Message, 1)
	go func() {
		m, err := p.AwaitReply(context.Background(), 10, 20)
		assert.NoError(t, err)
		done <- m
	}()

	assert.Eventually(t, func() bool {
		p.handleMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
			ID:        "1",
			ChannelID: "10",
			Content:   "#reports",
			Author:    &discordgo.User{ID: "20"},
		}})
		return len(done) == 1
	}, time.Second, 5*time.Millisecond)
}
