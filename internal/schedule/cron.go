package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/cronexpr"
)

// Cron is a parsed cron expression.
type Cron struct {
	raw  string
	expr *cronexpr.Expression
}

func ParseCron(raw string) (*Cron, error) {
	expr, err := cronexpr.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return &Cron{raw: raw, expr: expr}, nil
}

func ValidateCron(raw string) error {
	_, err := ParseCron(raw)
	return err
}

func (c *Cron) String() string {
	return c.raw
}

// Upcoming returns the next n times after the given time. n must be positive.
func (c *Cron) Upcoming(after time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, fmt.Errorf("count must be greater than 0")
	}
	return c.expr.NextN(after, uint(n)), nil
}

// Run calls fn at every time matched by c until ctx is done. It blocks, so
// callers usually start it on its own goroutine.
func (c *Cron) Run(ctx context.Context, fn func(ctx context.Context)) error {
	for {
		next := c.expr.Next(time.Now())
		if next.IsZero() {
			return fmt.Errorf("cron expression %q has no upcoming run", c.raw)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			fn(ctx)
		}
	}
}

// RunCron parses raw and runs fn on it. See Cron.Run.
func RunCron(ctx context.Context, raw string, fn func(ctx context.Context)) error {
	c, err := ParseCron(raw)
	if err != nil {
		return err
	}
	return c.Run(ctx, fn)
}
