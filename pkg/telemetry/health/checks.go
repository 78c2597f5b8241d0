package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NenyaBit/PartialAnimationReplacer/pkg/manager"
)

// RuleSet reports the number of installed rules.
type RuleSet interface {
	Len() int
}

// SnapshotSource exposes the currently published snapshot.
type SnapshotSource interface {
	Snapshot() *manager.Snapshot
}

// Pinger is a dependency that can be probed, such as a database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RulesLoaded fails while no rule is installed.
func RulesLoaded(rules RuleSet) CheckFunc {
	return func(context.Context) error {
		if rules.Len() == 0 {
			return errors.New("no replacer rules loaded")
		}
		return nil
	}
}

// SnapshotFresh fails before the first evaluation pass and when the last
// published snapshot is older than maxAge.
func SnapshotFresh(src SnapshotSource, maxAge time.Duration) CheckFunc {
	return func(context.Context) error {
		snap := src.Snapshot()
		if snap == nil || snap.Generation == 0 {
			return errors.New("no snapshot published yet")
		}
		if age := time.Since(snap.CreatedAt); maxAge > 0 && age > maxAge {
			return fmt.Errorf("snapshot %d is %s old, limit %s",
				snap.Generation, age.Round(time.Millisecond), maxAge)
		}
		return nil
	}
}

// Reachable fails when p cannot be pinged.
func Reachable(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}
