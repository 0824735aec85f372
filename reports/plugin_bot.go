package reports

import (
	"time"

	"github.com/cirelion/narc/bot"
	"github.com/cirelion/narc/bot/eventsystem"
	"github.com/cirelion/narc/commands"
	"github.com/cirelion/narc/common"
	"github.com/cirelion/narc/common/kvstore"
	"github.com/jinzhu/gorm"
)

var logger = common.GetPluginLogger(&Plugin{})

type Plugin struct {
	Platform      bot.Platform
	Store         *Store
	Configs       *Configs
	Guard         *Guard
	Views         *Views
	Router        *Router
	PromptTimeout time.Duration
}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Reports",
		SysName:  "reports",
		Category: common.PluginCategoryModeration,
	}
}

func New(platform bot.Platform, db *gorm.DB, conf *common.CoreConfig) *Plugin {
	store := NewStore(db)
	configs := NewConfigs(db, conf.ConfigCacheSize, conf.ConfigCacheTTL)
	guard := NewGuard(kvstore.New[int64, UserState]())
	views := NewViews(platform, store, configs)

	return &Plugin{
		Platform:      platform,
		Store:         store,
		Configs:       configs,
		Guard:         guard,
		Views:         views,
		Router:        NewRouter(platform, store, configs, guard, views, conf.PromptTimeout),
		PromptTimeout: conf.PromptTimeout,
	}
}

func RegisterPlugin(p *Plugin) error {
	common.RegisterPlugin(p)
	return Migrate(p.Store.db)
}

func (p *Plugin) BotInit(events *eventsystem.System, cmds *commands.Router) {
	events.AddHandlerAsync(p, p.Router.HandleReaction, eventsystem.EventMessageReactionAdd, eventsystem.EventMessageReactionRemove)
	cmds.AddCommands(p, p.Commands()...)
}

func (p *Plugin) Stop() {
	p.Configs.Stop()
}
