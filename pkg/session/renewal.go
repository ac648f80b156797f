package session

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/aichef/pkg/slogx"
)

// renewalTimeout bounds one shared provider round-trip.
const renewalTimeout = 30 * time.Second

var errUndecodable = errors.New("access token is not a decodable JWT")

// Renew refreshes the credentials. Concurrent callers, the timer included,
// share one in-flight renewal. A failed renewal signs the session out and
// the classified error is returned to every waiting caller. ctx only bounds
// how long this caller waits.
func (c *Controller) Renew(ctx context.Context, trigger Trigger) error {
	if c.closed.Load() {
		return ErrClosed
	}

	res := c.renewals.DoChan("renew", func() (any, error) {
		rctx, cancel := context.WithTimeout(c.loopCtx, renewalTimeout)
		defer cancel()
		return nil, c.renew(rctx, trigger)
	})

	select {
	case r := <-res:
		return r.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) renew(ctx context.Context, trigger Trigger) error {
	c.mu.RLock()
	ch, gen, st := c.ch, c.gen, c.status
	c.mu.RUnlock()

	if st != StatusAuthenticated || ch == nil {
		return ErrNotAuthenticated
	}

	log := c.log.With("source", ch.source().String(), "trigger", trigger.String())

	pair, changed, err := ch.renew(ctx, trigger, c.creds.Pair())
	c.cfg.Metrics.Renewal(ch.source().String(), trigger.String(), err)

	if err != nil {
		// Close cancelled the call, the session itself is fine.
		if c.closed.Load() {
			return ErrClosed
		}

		serr := &Error{Kind: ch.renewKind(), Source: ch.source(), Err: err}
		log.Warn("renewal failed, signing out", slogx.Err(err))
		c.endSession(ctx, gen, serr)
		return serr
	}

	if !changed {
		log.Debug("token still valid, renewal skipped")
		return nil
	}

	profile, decodeErr := c.decode(ch, pair.AccessToken)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		log.Debug("session changed during renewal, result dropped")
		return nil
	}
	c.creds.Set(pair)
	c.profile = profile
	c.lastErr = decodeErr
	snap := c.snapshotLocked()
	c.mu.Unlock()

	log.Debug("credentials renewed", slogx.Token("access_token", pair.AccessToken))
	c.notify(snap)
	return nil
}

func (c *Controller) startLoop() {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	if c.closed.Load() {
		return
	}
	c.loopRunning = true
	go c.runRenewals()
	c.log.Info("renewal worker started", "interval", c.cfg.RenewalInterval)
}

// runRenewals is the background renewal worker.
func (c *Controller) runRenewals() {
	defer close(c.doneCh)

	ticks := c.cfg.Ticks
	if ticks == nil {
		ticker := time.NewTicker(c.cfg.RenewalInterval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for {
		select {
		case <-ticks:
			c.tick()
		case <-c.stopCh:
			return
		}
	}
}

// tick renews only an authenticated session; everything else waits for an
// explicit login.
func (c *Controller) tick() {
	if !c.Snapshot().IsAuthenticated() {
		return
	}

	err := c.Renew(c.loopCtx, TriggerTimer)
	if err != nil && !errors.Is(err, ErrClosed) {
		c.log.Debug("scheduled renewal ended the session", slogx.Err(err))
	}
}
