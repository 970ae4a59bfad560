package supervisor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	logx "taskpanel/pkg/logx"
)

// A run that lasted at least this long resets the backoff.
const stableRun = 30 * time.Second

type RestartOption func(*restartPolicy)

type restartPolicy struct {
	backoff         backoff
	stopOnCleanExit bool
	publishErr      bool
}

// WithRestartBackoff bounds the exponential delay between restarts.
func WithRestartBackoff(minDelay, maxDelay time.Duration) RestartOption {
	return func(p *restartPolicy) {
		if minDelay > 0 {
			p.backoff.min = minDelay
		}
		if maxDelay > 0 {
			p.backoff.max = maxDelay
		}
	}
}

// WithPublishFirstError records the first failure as Err while still
// restarting.
func WithPublishFirstError(enabled bool) RestartOption {
	return func(p *restartPolicy) { p.publishErr = enabled }
}

// WithStopOnCleanExit controls whether a nil return ends the loop
// (default) or counts as a failure to restart from.
func WithStopOnCleanExit(enabled bool) RestartOption {
	return func(p *restartPolicy) { p.stopOnCleanExit = enabled }
}

// GoRestart runs fn and restarts it after an error or panic, with jittered
// exponential backoff, until the context is cancelled.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, opts ...RestartOption) {
	if fn == nil {
		return
	}
	p := restartPolicy{
		backoff:         backoff{min: 250 * time.Millisecond, max: 30 * time.Second},
		stopOnCleanExit: true,
	}
	for _, o := range opts {
		o(&p)
	}
	p.backoff.max = max(p.backoff.max, p.backoff.min)
	p.backoff.reset()

	s.Go0(name, func(ctx context.Context) {
		for {
			began := time.Now()
			err := s.protect(name, fn)
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			if err == nil {
				if p.stopOnCleanExit {
					return
				}
				err = errors.New("exited")
			}
			if p.publishErr {
				s.record(fmt.Errorf("%s: %w", name, err))
			}
			if time.Since(began) >= stableRun {
				p.backoff.reset()
			}

			wait := p.backoff.next()
			s.log.Warn("goroutine restarting", logx.String("name", name), logx.Duration("backoff", wait), logx.Err(err))
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
	})
}

type backoff struct {
	min, max, cur time.Duration
}

func (b *backoff) reset() { b.cur = b.min }

// next returns the current delay plus up to 20% jitter and doubles the
// base for the following call.
func (b *backoff) next() time.Duration {
	d := b.cur
	if j := int64(d) / 5; j > 0 {
		d += time.Duration(rand.Int64N(j + 1))
	}
	b.cur = min(b.cur*2, b.max)
	return d
}
