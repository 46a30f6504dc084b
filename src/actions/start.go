package actions

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/obrc/blacklist/src/actions/moderation"
	"github.com/obrc/blacklist/src/api"
	"github.com/obrc/blacklist/src/config"
)

// StartAll wires up enabled modules and starts the manager.
func StartAll(ctx context.Context, db *gorm.DB) (*Manager, error) {
	mgr := NewManager()

	modCfg := config.LoadModerationConfig(db)
	if modCfg.Enabled {
		archiveCfg := config.LoadArchiveConfig(db)
		log.Printf("actions: moderation config - Guild: %s, Poll: %v, Sweep: %v, Redis: %v, Archive: %v",
			modCfg.Base.GuildID, modCfg.PollDuration, modCfg.SweepInterval, modCfg.RedisURL != "", archiveCfg.Enabled)
		mod, err := moderation.NewModule(&modCfg, &archiveCfg, db)
		if err != nil {
			return nil, fmt.Errorf("actions: init moderation module: %w", err)
		}
		if err := mgr.Add(mod); err != nil {
			return nil, fmt.Errorf("actions: add moderation module: %w", err)
		}
	} else {
		log.Printf("actions: moderation module disabled via configuration")
	}

	apiCfg := config.LoadAPIConfig(db)
	if apiCfg.Enabled {
		mod, err := api.NewModule(&apiCfg, db)
		if err != nil {
			return nil, fmt.Errorf("actions: init api module: %w", err)
		}
		if err := mgr.Add(mod); err != nil {
			return nil, fmt.Errorf("actions: add api module: %w", err)
		}
	} else {
		log.Printf("actions: api module disabled via configuration")
	}

	if err := mgr.Start(ctx); err != nil {
		return nil, err
	}
	return mgr, nil
}
