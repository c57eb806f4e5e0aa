package social

import (
	"context"
	"fmt"
	"time"

	"github.com/openpix/openpix"
)

// CacheTelemetry records which operations ran on a given day in cache-backed
// sets. It follows the cache's best-effort contract: a failing sink can never
// affect the outcome of the operation being measured.
type CacheTelemetry struct {
	Cache openpix.Cache
	// Retention bounds how long a day's set lives. Defaults to 48h.
	Retention time.Duration
}

var _ openpix.Telemetry = (*CacheTelemetry)(nil)

func (t *CacheTelemetry) key(day time.Time) string {
	return "telemetry:ops:" + day.UTC().Format("2006-01-02")
}

// Increment marks name as having run today.
func (t *CacheTelemetry) Increment(ctx context.Context, name string) {
	retention := t.Retention
	if retention <= 0 {
		retention = 48 * time.Hour
	}
	key := t.key(time.Now())
	t.Cache.AddToSet(ctx, key, name)
	t.Cache.Expire(ctx, key, retention)
}

// Observe records a coarse duration bucket for name.
func (t *CacheTelemetry) Observe(ctx context.Context, name string, d time.Duration) {
	t.Increment(ctx, fmt.Sprintf("%s:%s", name, bucket(d)))
}

// OpsRan lists the operations recorded for day.
func (t *CacheTelemetry) OpsRan(ctx context.Context, day time.Time) []string {
	return t.Cache.Members(ctx, t.key(day))
}

func bucket(d time.Duration) string {
	switch {
	case d < 10*time.Millisecond:
		return "lt10ms"
	case d < 100*time.Millisecond:
		return "lt100ms"
	case d < time.Second:
		return "lt1s"
	default:
		return "ge1s"
	}
}
