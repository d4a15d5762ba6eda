package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// LockReport holds the regeneration lock of a survey. The returned release is
// always safe to call. When the lock stays busy past reportLockWait the
// caller gets a no-op release and renders anyway.
func (l *Limiter) LockReport(ctx context.Context, surveyID int64) (func(), error) {
	noop := func() {}
	if !l.Enabled() {
		return noop, nil
	}

	key := fmt.Sprintf(keyReportLock, surveyID)
	token := ulid.Make().String()
	ok, err := l.waitReportLock(ctx, key, token)
	if err != nil {
		return noop, fmt.Errorf("report lock %d: %w", surveyID, err)
	}
	if !ok {
		l.log.Warn("report lock busy, rendering anyway", zap.Int64("survey_id", surveyID))
		return noop, nil
	}

	return func() {
		// the request context may already be canceled
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := l.release.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.log.Warn("report lock release failed", zap.Int64("survey_id", surveyID), zap.Error(err))
		}
	}, nil
}

func (l *Limiter) waitReportLock(ctx context.Context, key, token string) (bool, error) {
	deadline := time.NewTimer(reportLockWait)
	defer deadline.Stop()
	ticker := time.NewTicker(reportLockPoll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, reportLockTTL).Result()
		if err != nil || ok {
			return ok, err
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-ticker.C:
		}
	}
}
