package coordinator

import (
	"context"
	"time"

	"github.com/luxfi/agentsync/obs"
)

// Intervals bundles the background-loop periods the coordinator drives.
// Gossip and AntiEntropy mirror the gossip engine's own
// config.Gossip tuning; they are passed in separately because the engine
// does not expose its config (it is the coordinator's job to keep the
// two in step, not the engine's to schedule itself — spec §4.9 names the
// coordinator as the thing that drives "every gossip round").
type Intervals struct {
	Gossip      time.Duration
	AntiEntropy time.Duration
	Promotion   time.Duration
	Snapshot    time.Duration
}

// Start brings up the coordinator's background loops: periodic gossip
// rounds, anti-entropy, backend promotion, and snapshotting (spec §4.9's
// start()). It returns immediately; Stop drains and disposes.
func (c *Coordinator) Start(ctx context.Context, intervals Intervals) {
	c.stopCh = make(chan struct{})
	runLoop := func(interval time.Duration, fn func(context.Context)) {
		if interval <= 0 {
			return
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-c.stopCh:
					return
				case <-ticker.C:
					fn(ctx)
				}
			}
		}()
	}

	runLoop(intervals.Gossip, func(ctx context.Context) {
		if err := c.engine.RunRound(ctx); err != nil {
			c.log.Debug("gossip round skipped", obs.Err(err))
		}
	})
	runLoop(intervals.AntiEntropy, func(ctx context.Context) {
		if err := c.engine.RunAntiEntropy(ctx); err != nil {
			c.log.Debug("anti-entropy round skipped", obs.Err(err))
		}
	})
	runLoop(intervals.Promotion, func(ctx context.Context) {
		if err := c.Promote(ctx); err != nil {
			c.log.Warn("backend promotion failed", obs.Err(err))
		}
	})
	if intervals.Snapshot > 0 {
		runLoop(intervals.Snapshot, func(ctx context.Context) {
			if c.cfg.SnapshotDir == "" {
				return
			}
			if err := c.SaveSnapshot(c.cfg.SnapshotDir); err != nil {
				c.log.Warn("periodic snapshot failed", obs.Err(err))
			}
		})
	}
}

// Stop drains the background loops and, if a snapshot directory is
// configured, writes a final snapshot before returning (spec §4.9's
// stop() and §6's "snapshot on graceful shutdown").
func (c *Coordinator) Stop() error {
	if c.stopCh != nil {
		close(c.stopCh)
	}
	c.wg.Wait()
	if c.cfg.SnapshotDir != "" {
		return c.SaveSnapshot(c.cfg.SnapshotDir)
	}
	return nil
}
