package reports

import (
	"context"
	"strconv"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/jinzhu/gorm"
	"github.com/karlseguin/ccache"
)

// Configs is a read through cache of ServerConfig rows. A guild without
// configuration is cached too, as a nil config.
type Configs struct {
	db    *gorm.DB
	cache *ccache.Cache
	ttl   time.Duration

	// bumped on every write, a load that started before the bump must not
	// populate the cache
	mu          sync.RWMutex
	generations map[int64]uint64
}

type cachedConfig struct {
	conf *ServerConfig
}

func NewConfigs(db *gorm.DB, maxSize int64, ttl time.Duration) *Configs {
	return &Configs{
		db:          db,
		cache:       ccache.New(ccache.Configure().MaxSize(maxSize)),
		ttl:         ttl,
		generations: make(map[int64]uint64),
	}
}

func (c *Configs) Stop() {
	c.cache.Stop()
}

// Get returns the guild's configuration, nil if it was never set up
func (c *Configs) Get(guildID int64) (*ServerConfig, error) {
	key := cacheKey(guildID)
	if item := c.cache.Get(key); item != nil && !item.Expired() {
		return copyConfig(item.Value().(cachedConfig).conf), nil
	}

	gen := c.generation(guildID)
	conf, err := c.load(guildID)
	if err != nil {
		return nil, err
	}

	c.populate(guildID, gen, conf)
	return copyConfig(conf), nil
}

// Save replaces the guild's configuration, once committed the next Get sees it
func (c *Configs) Save(ctx context.Context, conf *ServerConfig) error {
	tx := c.db.BeginTx(ctx, nil)
	if tx.Error != nil {
		return errors.WrapIf(tx.Error, "begin tx")
	}

	if err := tx.Save(conf).Error; err != nil {
		tx.Rollback()
		return errors.WrapIf(err, "save server config")
	}

	if err := tx.Commit().Error; err != nil {
		return errors.WrapIf(err, "commit server config")
	}

	c.evict(conf.GuildID)
	return nil
}

// Prefix returns the command prefix of the guild, "" if unset
func (c *Configs) Prefix(ctx context.Context, guildID int64) (string, error) {
	conf, err := c.Get(guildID)
	if err != nil || conf == nil || conf.Prefix == nil {
		return "", err
	}

	return *conf.Prefix, nil
}

func (c *Configs) generation(guildID int64) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[guildID]
}

// populate caches conf unless a write happened since gen was read
func (c *Configs) populate(guildID int64, gen uint64, conf *ServerConfig) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.generations[guildID] == gen {
		c.cache.Set(cacheKey(guildID), cachedConfig{conf: conf}, c.ttl)
	}
}

func (c *Configs) evict(guildID int64) {
	c.mu.Lock()
	c.generations[guildID]++
	c.cache.Delete(cacheKey(guildID))
	c.mu.Unlock()
}

func (c *Configs) load(guildID int64) (*ServerConfig, error) {
	conf, err := firstOrNil[ServerConfig](c.db.Where("guild_id = ?", guildID))
	return conf, errors.WrapIf(err, "load server config")
}

func cacheKey(guildID int64) string {
	return strconv.FormatInt(guildID, 10)
}

func copyConfig(conf *ServerConfig) *ServerConfig {
	if conf == nil {
		return nil
	}

	cop := *conf
	return &cop
}
