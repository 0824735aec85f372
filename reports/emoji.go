package reports

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cirelion/narc/bot"
)

var (
	EmojiReport  = bot.UnicodeEmoji("🚩")
	EmojiRefresh = bot.UnicodeEmoji("🔄")
	EmojiEdit    = bot.UnicodeEmoji("📝")
	EmojiClaim   = bot.UnicodeEmoji("🛄")
	EmojiReject  = bot.UnicodeEmoji("❌")
	EmojiAccept  = bot.UnicodeEmoji("✅")

	modViewReactions  = []bot.Emoji{EmojiRefresh, EmojiClaim, EmojiReject, EmojiAccept}
	userViewReactions = []bot.Emoji{EmojiRefresh, EmojiEdit}
)

var (
	customEmojiRegex    = regexp.MustCompile(`^<(a?):([A-Za-z0-9_~]+):(\d+)>$`)
	channelMentionRegex = regexp.MustCompile(`^<#(\d+)>$`)
	userMentionRegex    = regexp.MustCompile(`^<@!?(\d+)>$`)
)

// isReportEmoji matches a reaction against the guild's report emoji, conf is
// nil for unconfigured guilds.
func isReportEmoji(conf *ServerConfig, emoji bot.Emoji) bool {
	switch {
	case conf == nil:
		return !emoji.IsCustom() && emoji.Name == EmojiReport.Name
	case conf.ReportEmojiCustomID != nil:
		return emoji.ID == *conf.ReportEmojiCustomID
	case conf.ReportEmojiBuiltin != nil:
		return !emoji.IsCustom() && emoji.Name == *conf.ReportEmojiBuiltin
	}

	return false
}

func sameEmoji(a, b bot.Emoji) bool {
	if a.IsCustom() || b.IsCustom() {
		return a.ID == b.ID
	}

	return a.Name == b.Name
}

// ParseEmoji reads an emoji typed in chat, either a custom emoji
// (<:name:id>) or a unicode glyph.
func ParseEmoji(s string) (bot.Emoji, error) {
	s = strings.TrimSpace(s)

	if m := customEmojiRegex.FindStringSubmatch(s); m != nil {
		id, err := strconv.ParseInt(m[3], 10, 64)
		if err != nil {
			return bot.Emoji{}, ErrUnparseableEmoji
		}

		return bot.Emoji{ID: id, Name: m[2], Animated: m[1] == "a"}, nil
	}

	fields := strings.Fields(s)
	if len(fields) != 1 || !utf8.ValidString(fields[0]) {
		return bot.Emoji{}, ErrUnparseableEmoji
	}

	// plain text and mentions are never emoji, ascii only shows up in keycaps
	glyph := false
	for _, r := range fields[0] {
		switch {
		case r >= utf8.RuneSelf:
			glyph = true
		case r >= '0' && r <= '9', r == '#', r == '*':
		default:
			return bot.Emoji{}, ErrUnparseableEmoji
		}
	}

	if !glyph {
		return bot.Emoji{}, ErrUnparseableEmoji
	}

	return bot.UnicodeEmoji(fields[0]), nil
}

// ParseChannel accepts a channel mention or a raw id
func ParseChannel(s string) (int64, bool) {
	return parseMentionOrID(channelMentionRegex, s)
}

// ParseUser accepts a user mention or a raw id
func ParseUser(s string) (int64, bool) {
	return parseMentionOrID(userMentionRegex, s)
}

func parseMentionOrID(re *regexp.Regexp, s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if m := re.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}

	return id, true
}
