package memcache_fx

import (
	"time"

	"go.uber.org/fx"

	"habitloop/pkg/memcache"
)

// How long a handled event id is remembered for dedupe.
const processedEventTTL = 24 * time.Hour

var Module = fx.Provide(provideProcessedEvents)

func provideProcessedEvents() mem.ProcessedEventStore {
	return mem.NewProcessedEvents(processedEventTTL)
}
