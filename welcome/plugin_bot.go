// Package welcome greets the owner of every guild the bot joins with
// instructions for setting it up.
package welcome

import (
	"github.com/cirelion/narc/bot"
	"github.com/cirelion/narc/bot/eventsystem"
	"github.com/cirelion/narc/common"
	"github.com/jinzhu/gorm"
	"github.com/jmoiron/sqlx"
)

var logger = common.GetPluginLogger(&Plugin{})

type Plugin struct {
	Platform bot.Platform
	Prefix   string

	gdb *gorm.DB
	db  *sqlx.DB
}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Welcome",
		SysName:  "welcome",
		Category: common.PluginCategoryCore,
	}
}

func New(platform bot.Platform, db *gorm.DB, prefix string) *Plugin {
	return &Plugin{
		Platform: platform,
		Prefix:   prefix,
		gdb:      db,
		db:       common.SQLX(db),
	}
}

func RegisterPlugin(p *Plugin) error {
	common.RegisterPlugin(p)
	return Migrate(p.gdb)
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&WelcomedGuild{}).Error
}

func (p *Plugin) BotInit(events *eventsystem.System) {
	events.AddHandlerAsync(p, p.HandleGuild, eventsystem.EventGuildAvailable, eventsystem.EventGuildRemove)
}
