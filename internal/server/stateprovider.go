package server

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/strefethen/soundtouch-hub-go/internal/soundtouch/events"
)

// scheduleCachePrune drops stale device states once a minute. A ttl of zero
// keeps states forever and schedules nothing.
func scheduleCachePrune(scheduler *cron.Cron, cache *events.StateCache, ttlSec int, logger zerolog.Logger) error {
	if ttlSec <= 0 {
		return nil
	}
	_, err := scheduler.AddFunc("@every 1m", func() {
		if pruned := cache.Prune(); pruned > 0 {
			logger.Debug().Int("count", pruned).Msg("Pruned stale device states")
		}
	})
	return err
}
