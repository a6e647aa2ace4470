// Package fallback runs an ordered chain of providers with one policy:
// try the next provider on a retryable error, stop and report on a fatal one.
//
// The same policy drives the KYC vendor chain, transport retries inside the
// document protocol and webhook delivery across brokers.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"idv/pkg/platform/circuit"
)

// ErrAllProvidersFailed is returned when every provider failed with a
// retryable error or was skipped by an open breaker.
var ErrAllProvidersFailed = errors.New("all providers failed")

// Provider is one candidate in the chain.
type Provider[T any] struct {
	Name string
	Call func(ctx context.Context) (T, error)
	// Breaker is optional. An open breaker skips the provider.
	Breaker *circuit.Breaker
}

// Attempt records what happened to one provider.
type Attempt struct {
	Provider string
	Err      error
	Skipped  bool
}

// Report is the per-provider trace of a Run.
type Report struct {
	Attempts []Attempt
	// Used names the provider whose result was returned, empty on failure.
	Used string
}

// Policy classifies errors for the chain.
type Policy struct {
	// Retryable reports whether the next provider may be tried after err.
	// Nil treats every error as retryable.
	Retryable func(error) bool
	Logger    *slog.Logger
}

func (p Policy) retryable(err error) bool {
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// Run calls providers in order until one succeeds.
func Run[T any](ctx context.Context, p Policy, providers []Provider[T]) (T, Report, error) {
	var (
		zero    T
		report  Report
		lastErr error
	)
	for _, provider := range providers {
		if err := ctx.Err(); err != nil {
			return zero, report, err
		}
		if provider.Breaker != nil && provider.Breaker.IsOpen() {
			report.Attempts = append(report.Attempts, Attempt{Provider: provider.Name, Skipped: true})
			continue
		}

		result, err := provider.Call(ctx)
		if err == nil {
			if provider.Breaker != nil {
				if _, change := provider.Breaker.RecordSuccess(); change.Closed && p.Logger != nil {
					p.Logger.InfoContext(ctx, "provider circuit closed", "provider", provider.Name)
				}
			}
			report.Attempts = append(report.Attempts, Attempt{Provider: provider.Name})
			report.Used = provider.Name
			return result, report, nil
		}

		report.Attempts = append(report.Attempts, Attempt{Provider: provider.Name, Err: err})
		if provider.Breaker != nil {
			if _, change := provider.Breaker.RecordFailure(); change.Opened && p.Logger != nil {
				p.Logger.WarnContext(ctx, "provider circuit opened", "provider", provider.Name)
			}
		}
		if !p.retryable(err) {
			return zero, report, err
		}
		if p.Logger != nil {
			p.Logger.DebugContext(ctx, "provider failed, trying next", "provider", provider.Name, "error", err)
		}
		lastErr = err
	}

	if lastErr == nil {
		return zero, report, ErrAllProvidersFailed
	}
	return zero, report, fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
}

// Repeat builds a chain that calls the same provider up to n times.
func Repeat[T any](provider Provider[T], n int) []Provider[T] {
	if n < 1 {
		n = 1
	}
	chain := make([]Provider[T], n)
	for i := range chain {
		chain[i] = provider
	}
	return chain
}
