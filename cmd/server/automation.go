package main

import (
	"context"
	"log"
	"time"
)

type verificationPruner interface {
	CleanupVerificationsBefore(before time.Time) (int64, error)
}

type automationOptions struct {
	Store      verificationPruner
	Interval   time.Duration
	HistoryTTL time.Duration
}

func startAutomation(ctx context.Context, opts automationOptions) {
	if opts.Store == nil || opts.Interval <= 0 || opts.HistoryTTL <= 0 {
		return
	}
	log.Printf("Starting retention loop: interval=%s historyTTL=%s", opts.Interval, opts.HistoryTTL)
	ticker := time.NewTicker(opts.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runAutomationSweep(opts, time.Now().UTC())
			}
		}
	}()
}

func runAutomationSweep(opts automationOptions, now time.Time) int64 {
	removed, err := opts.Store.CleanupVerificationsBefore(now.Add(-opts.HistoryTTL))
	if err != nil {
		log.Printf("automation: verification cleanup failed: %v", err)
		return 0
	}
	if removed > 0 {
		log.Printf("automation: purged %d verification records", removed)
	}
	return removed
}
