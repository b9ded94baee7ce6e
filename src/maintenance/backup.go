package maintenance

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ryansname/drivectl/src/params"
	"github.com/ryansname/drivectl/src/toggles"
)

// BackupKeys are copied to the backup store once the clock can be trusted
var BackupKeys = []string{
	toggles.StoreKey,
	KeyMapsSelected,
	KeyPreferredSchedule,
}

// BackupToggles copies keys from src to dst. Keys missing from src are
// removed from dst so the backup mirrors the source.
func BackupToggles(ctx context.Context, src, dst params.Store, keys []string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		g.Go(func() error {
			value, ok, err := src.Get(gctx, key)
			if err != nil {
				return err
			}
			if !ok {
				return dst.Remove(gctx, key)
			}
			return dst.Put(gctx, key, value)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("backup toggles: %w", err)
	}
	return nil
}
