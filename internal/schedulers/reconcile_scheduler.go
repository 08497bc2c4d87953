package schedulers

import (
	"context"
	"time"

	"refledger/internal/config"
	"refledger/internal/services"

	"github.com/robfig/cron/v3"
)

var log = config.InitLogger()

// ReconcilePendingWithdrawals finishes withdrawals left pending by a
// confirmation timeout or a crash between debit and submission.
func ReconcilePendingWithdrawals(ds *services.DrawingService, timeout time.Duration) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if _, err := ds.ReconcilePending(ctx); err != nil {
			log.Error("Failed to reconcile pending withdrawals: ", err)
		}
	}
}

// Start runs job on spec until the returned cron is stopped. Runs of the
// same job never overlap.
func Start(spec string, job func()) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, job); err != nil {
		log.Errorf("Invalid schedule %q: %v", spec, err)
		return nil, err
	}
	c.Start()
	log.Infof("Scheduler started: %s", spec)
	return c, nil
}
