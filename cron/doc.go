// Package cron runs in-process maintenance on cron schedules.
//
// Schedules use the standard five-field syntax or the @hourly style
// descriptors understood by robfig/cron. The engine registers the DLQ
// retention purge here; callers may register their own entries before
// Start.
//
//	s := cron.NewScheduler(logger)
//	err := s.Register("dlq-purge", "@hourly", func(ctx context.Context) error {
//	    _, err := dlqService.Purge(ctx, 14*24*time.Hour)
//	    return err
//	})
//
// Entries can be enabled or disabled at runtime through the admin API
// (POST /v1/crons/{name}/enable and POST /v1/crons/{name}/disable). Every
// process fires its own entries; the jobs registered here are idempotent,
// so several replicas purging the same table is harmless.
package cron
