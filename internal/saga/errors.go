package saga

import (
	"context"
	"errors"
	"net"

	"github.com/chefstream/harvester/internal/discovery"
	"github.com/chefstream/harvester/internal/extract"
	"github.com/chefstream/harvester/internal/fetcher"
	"github.com/chefstream/harvester/internal/providers"
)

// ErrorClass groups failures by how the orchestrator reacts to them.
type ErrorClass string

const (
	// ClassTransient failures are retried with exponential backoff up to
	// the provider's configured retry count.
	ClassTransient ErrorClass = "transient"
	// ClassPermanent failures are recorded and never retried; the item is
	// skipped and the batch continues.
	ClassPermanent ErrorClass = "permanent"
	// ClassConfiguration failures abort before any work starts. No batch
	// record is created for them.
	ClassConfiguration ErrorClass = "configuration"
	// ClassFatal failures carry no classification signal. They are treated
	// like permanent failures for the current item and logged loudly.
	ClassFatal ErrorClass = "fatal"
)

// ConfigurationError wraps a provider setup problem so callers can
// distinguish "never started" from "started and failed".
type ConfigurationError struct {
	ProviderID string
	Err        error
}

func (e *ConfigurationError) Error() string {
	return "configuration error for provider " + e.ProviderID + ": " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Classify buckets an error into its handling class. Typed errors from
// the fetcher and discovery layers carry their own transient flag;
// network timeouts are transient; everything unrecognized is fatal.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}

	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return ClassConfiguration
	}
	if errors.Is(err, providers.ErrProviderNotFound) {
		return ClassConfiguration
	}

	var fetchErr *fetcher.FetchError
	if errors.As(err, &fetchErr) {
		if fetchErr.Transient {
			return ClassTransient
		}
		return ClassPermanent
	}

	if errors.Is(err, extract.ErrNoRecipe) {
		return ClassPermanent
	}

	var discErr *discovery.Error
	if errors.As(err, &discErr) {
		if discErr.Transient {
			return ClassTransient
		}
		return ClassPermanent
	}

	// A deadline on the per-request context is a timeout; retrying may
	// succeed. Cancellation of the run context is handled by the caller
	// before classification.
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}

	return ClassFatal
}

// Retryable reports whether the class calls for another attempt.
func (c ErrorClass) Retryable() bool {
	return c == ClassTransient
}
