// Package hashing implements the password hasher on top of bcrypt.
package hashing

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Runner executes fn on a bounded worker pool. *queue.Pool satisfies it.
type Runner interface {
	Do(ctx context.Context, fn func()) error
}

// DurationObserver records how long a hash or verify took.
type DurationObserver func(op string, d time.Duration)

// Bcrypt hashes passwords with bcrypt. The salt is embedded in the output,
// and comparison is constant time.
type Bcrypt struct {
	cost    int
	runner  Runner
	observe DurationObserver
}

// Option configures a Bcrypt hasher.
type Option func(*Bcrypt)

// WithRunner offloads hashing to r instead of the calling goroutine.
func WithRunner(r Runner) Option {
	return func(b *Bcrypt) { b.runner = r }
}

// WithObserver reports hash and verify durations.
func WithObserver(o DurationObserver) Option {
	return func(b *Bcrypt) { b.observe = o }
}

// NewBcrypt returns a hasher with the given cost. Costs outside bcrypt's
// range fall back to bcrypt.DefaultCost.
func NewBcrypt(cost int, opts ...Option) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b := &Bcrypt{cost: cost, observe: func(string, time.Duration) {}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bcrypt) Hash(ctx context.Context, plaintext string) (string, error) {
	var (
		out []byte
		err error
	)
	runErr := b.run(ctx, "hash", func() {
		out, err = bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	})
	if runErr != nil {
		return "", fmt.Errorf("hash password: %w", runErr)
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(out), nil
}

func (b *Bcrypt) Verify(ctx context.Context, plaintext, hash string) bool {
	var err error
	runErr := b.run(ctx, "verify", func() {
		err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	})
	return runErr == nil && err == nil
}

func (b *Bcrypt) run(ctx context.Context, op string, fn func()) error {
	timed := func() {
		start := time.Now()
		fn()
		b.observe(op, time.Since(start))
	}
	if b.runner == nil {
		timed()
		return nil
	}
	return b.runner.Do(ctx, timed)
}
