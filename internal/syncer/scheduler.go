package syncer

import (
	"context"
	"log"
	"time"

	"github.com/mainstreethq/inboxd/internal/models"
	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the duration
// until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}

// RunScheduler fires sync passes on the given cron expression until the
// context is cancelled. A pass that fails fatally is logged; the schedule
// keeps running so a transient primary-store outage self-heals on the next
// fire.
func (o *Orchestrator) RunScheduler(ctx context.Context, expr string) {
	d := nextCronDuration(expr)
	if d <= 0 {
		log.Printf("syncer: invalid cron expression %q; scheduler disabled", expr)
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if _, err := o.RunPass(ctx, models.TriggerScheduled); err != nil {
				log.Printf("syncer: scheduled pass: %v", err)
			}
			if d := nextCronDuration(expr); d > 0 {
				timer.Reset(d)
			} else {
				return
			}
		}
	}
}
