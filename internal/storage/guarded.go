// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package storage

import (
	"context"
	"time"

	"github.com/ManuGH/spcut/internal/resilience"
)

// GuardedPublisher fails fast while the object store keeps rejecting uploads.
type GuardedPublisher struct {
	next    Publisher
	breaker *resilience.CircuitBreaker
}

var _ Publisher = (*GuardedPublisher)(nil)

// NewGuardedPublisher wraps next with a circuit breaker. A non-positive
// threshold returns next unchanged.
func NewGuardedPublisher(next Publisher, threshold int, reset time.Duration) Publisher {
	if threshold <= 0 {
		return next
	}
	return &GuardedPublisher{
		next:    next,
		breaker: resilience.NewCircuitBreaker("storage", threshold, reset),
	}
}

func (g *GuardedPublisher) Publish(ctx context.Context, bucket, key, path string, ttl time.Duration) (string, error) {
	var url string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		url, err = g.next.Publish(ctx, bucket, key, path, ttl)
		return err
	})
	return url, err
}
