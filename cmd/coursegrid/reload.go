package main

import (
	"context"
	"log/slog"
	"time"
)

type roleReloader interface {
	ReloadRoles(ctx context.Context) error
}

type reloadObserver interface {
	ObserveRoleReload(ok bool)
}

// reloadRoles refreshes the role cache every interval until ctx is done, so
// role edits made by other instances reach this one. A failed reload keeps
// the previous cache.
func reloadRoles(ctx context.Context, engine roleReloader, interval time.Duration, observer reloadObserver) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := engine.ReloadRoles(ctx)
			observer.ObserveRoleReload(err == nil)
			if err != nil && ctx.Err() == nil {
				slog.Warn("periodic role reload failed", "error", err)
			}
		}
	}
}
