package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// PurgeExpiredOTPs removes one-time passwords that expired before now and
// returns how many rows went away.
func PurgeExpiredOTPs(ctx context.Context, db *sql.DB, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM otps WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge otps: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge otps: %w", err)
	}
	return removed, nil
}

// StartOTPCleaner runs PurgeExpiredOTPs every interval in its own goroutine
// until ctx is done. Verified or replaced codes are deleted by the auth
// service; this only catches codes nobody came back for.
func StartOTPCleaner(ctx context.Context, db *sql.DB, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				removed, err := PurgeExpiredOTPs(ctx, db, now)
				switch {
				case err != nil:
					log.Error("failed to clean expired otps", zap.Error(err))
				case removed > 0:
					log.Info("cleaned expired otps", zap.Int64("removed", removed))
				}
			}
		}
	}()
}
