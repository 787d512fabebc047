package scene

import (
	"context"
	"log/slog"
	"time"
)

// RunUploadJanitor expires uploads older than ttl every interval until ctx is
// done. Uploads are normally consumed by an importmesh link request; this
// only catches the ones the connector never followed up on.
func RunUploadJanitor(ctx context.Context, store *Store, ttl, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := store.ExpireUploads(ctx, now.Add(-ttl))
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("expire staged uploads", "error", err)
				}
				continue
			}
			if removed > 0 {
				logger.Info("expired staged uploads", "count", removed, "ttl", ttl)
			}
		}
	}
}
