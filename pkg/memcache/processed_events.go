package mem

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// ProcessedEventStore remembers provider event ids that were fully handled so
// redeliveries can be acknowledged without running side effects twice.
type ProcessedEventStore interface {
	// Seen reports whether eventID was marked within the retention window.
	Seen(eventID string) bool

	// Mark records eventID as handled.
	Mark(eventID string)
}

type ProcessedEvents struct {
	c *cache.Cache
}

// NewProcessedEvents keeps ids for ttl. Expired ids are purged every ttl/2.
func NewProcessedEvents(ttl time.Duration) *ProcessedEvents {
	return &ProcessedEvents{
		c: cache.New(ttl, ttl/2),
	}
}

func (s *ProcessedEvents) Seen(eventID string) bool {
	if eventID == "" {
		return false
	}
	_, found := s.c.Get(eventID)
	return found
}

func (s *ProcessedEvents) Mark(eventID string) {
	if eventID == "" {
		return
	}
	s.c.SetDefault(eventID, struct{}{})
}
