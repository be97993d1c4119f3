package crm

import (
  "context"
  "fmt"
  "time"
)

// RetryPolicy runs a call once per delay, sleeping before every
// attempt, the first included: amoCRM needs a moment to materialize
// the contact before the first write lands.
type RetryPolicy struct {
  Delays []time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
  return RetryPolicy{
    Delays: []time.Duration{1500 * time.Millisecond, 2 * time.Second, 2 * time.Second},
  }
}

func (p RetryPolicy) Do(ctx context.Context, call func(ctx context.Context) error) error {
  var err error

  for _, delay := range p.Delays {
    select {
    case <-ctx.Done():
      return fmt.Errorf("ctx.Done: %w", ctx.Err())
    case <-time.After(delay):
    }

    if err = call(ctx); err == nil {
      return nil
    }
  }

  return err
}
