package store

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-autoreply-backend/internal/observability"
)

// TTLSweeper deletes documents whose TTL-indexed timestamp has passed. It
// only evicts; readers must still compare expiry with the current time,
// since a sweep can lag by up to one interval.
type TTLSweeper struct {
	cron  *cron.Cron
	colls []*Collection
	// Now is the clock used for expiry comparisons.
	Now func() time.Time
}

// NewTTLSweeper watches the given collections. Collections without a TTL
// index are ignored.
func NewTTLSweeper(colls ...*Collection) *TTLSweeper {
	return &TTLSweeper{
		cron:  cron.New(cron.WithSeconds()),
		colls: colls,
		Now:   time.Now,
	}
}

// Start schedules a sweep every interval.
func (s *TTLSweeper) Start(every time.Duration) error {
	if every <= 0 {
		return fmt.Errorf("store: ttl sweep interval must be positive")
	}
	_, err := s.cron.AddFunc("@every "+every.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), every)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			log.Warn().Err(err).Msg("ttl sweep failed")
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts scheduling and returns a context done once a running sweep ends.
func (s *TTLSweeper) Stop() context.Context { return s.cron.Stop() }

// Sweep runs one eviction pass and returns the number of deleted documents.
func (s *TTLSweeper) Sweep(ctx context.Context) (int64, error) {
	now := s.Now().UTC()
	var total int64
	for _, c := range s.colls {
		path, ok := c.ttlPath()
		if !ok {
			continue
		}
		n, err := c.Delete(ctx, Lte(path, now))
		if err != nil {
			return total, fmt.Errorf("store: sweep %s: %w", c.name, err)
		}
		if n > 0 {
			observability.TTLSwept.WithLabelValues(c.name).Add(float64(n))
			log.Debug().Str("collection", c.name).Int64("deleted", n).Msg("ttl sweep")
		}
		total += n
	}
	return total, nil
}

func (c *Collection) ttlPath() (string, bool) {
	for _, idx := range c.indexes {
		if idx.TTL && len(idx.Keys) > 0 {
			return idx.Keys[0], true
		}
	}
	return "", false
}
