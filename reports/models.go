package reports

import (
	"time"

	"emperror.dev/errors"
	"github.com/cirelion/narc/bot"
	"github.com/jinzhu/gorm"
)

type Report struct {
	ID             int64 `gorm:"primary_key"`
	GuildID        int64 `gorm:"index"`
	AccuserUserID  int64 `gorm:"unique_index:idx_reports_accuser_message"`
	ReportedUserID int64
	Status         Status

	// set when the report was made by reacting to a message
	ChannelID *int64
	MessageID *int64 `gorm:"unique_index:idx_reports_accuser_message"`
	Reason    *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Report) TableName() string {
	return "reports"
}

func (r *Report) HasOrigin() bool {
	return r.ChannelID != nil && r.MessageID != nil
}

type ServerConfig struct {
	GuildID          int64 `gorm:"primary_key;auto_increment:false"`
	ReportsChannelID int64

	// exactly one of these is set
	ReportEmojiBuiltin  *string
	ReportEmojiCustomID *int64
	ReportEmojiName     string

	Prefix *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *ServerConfig) TableName() string {
	return "server_configuration"
}

func (c *ServerConfig) ReportEmoji() bot.Emoji {
	if c.ReportEmojiCustomID != nil {
		return bot.Emoji{ID: *c.ReportEmojiCustomID, Name: c.ReportEmojiName}
	}

	if c.ReportEmojiBuiltin != nil {
		return bot.UnicodeEmoji(*c.ReportEmojiBuiltin)
	}

	return EmojiReport
}

// UserViewRecord is the report status message in the accuser's DMs
type UserViewRecord struct {
	ReportID   int64 `gorm:"primary_key;auto_increment:false"`
	ChannelID  int64
	MessageID  int64 `gorm:"index"`
	LastStatus Status
}

func (u *UserViewRecord) TableName() string {
	return "discord_user_view"
}

// ModViewRecord is the report message in the guild's reports channel
type ModViewRecord struct {
	ReportID         int64 `gorm:"primary_key;auto_increment:false"`
	ChannelID        int64
	MessageID        int64 `gorm:"index"`
	HandlerUserID    *int64
	PreviewArchiveID *int64
}

func (m *ModViewRecord) TableName() string {
	return "discord_mod_view"
}

// MessageArchive is one version of a reported message's content
type MessageArchive struct {
	ID        int64 `gorm:"primary_key"`
	MessageID int64 `gorm:"index"`
	Content   string
	CreatedAt time.Time
}

func (m *MessageArchive) TableName() string {
	return "message_archive"
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(&Report{}, &ServerConfig{}, &UserViewRecord{}, &ModViewRecord{}, &MessageArchive{}).Error
	return errors.WrapIf(err, "reports migration")
}
