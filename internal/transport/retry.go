// go-se05x
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-se05x.
//
// go-se05x is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-se05x is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-se05x; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package transport provides bounded retry helpers shared by the link layers.
package transport

import (
	"errors"
	"time"
)

// ErrRetriesExhausted is returned by WithRetry when no Exhausted error is configured.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryOperation represents a function that can be retried
// Returns: data, shouldRetry, error
// - data: the result if successful
// - shouldRetry: true if the attempt hit a transient condition
// - error: any permanent error that should stop retries
type RetryOperation[T any] func() (T, bool, error)

// RetryConfig configures retry behavior
type RetryConfig struct {
	// OnRetry runs between two attempts, after a transient failure.
	OnRetry func() error
	// OnRetryFailed runs once when every attempt failed transiently.
	OnRetryFailed func() error
	// Exhausted is returned when every attempt failed transiently.
	Exhausted error
	// Sleep replaces time.Sleep for RetryDelay.
	Sleep       func(time.Duration)
	Description string
	// MaxAttempts bounds the total number of calls to the operation.
	MaxAttempts int
	RetryDelay  time.Duration
}

// WithRetry calls operation up to MaxAttempts times, stopping at the first
// success or permanent error.
func WithRetry[T any](config RetryConfig, operation RetryOperation[T]) (T, error) {
	var zero T

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result, shouldRetry, err := operation()
		if err != nil {
			return zero, err
		}

		if !shouldRetry {
			return result, nil
		}

		if attempt == config.MaxAttempts {
			break
		}

		if err := executeRetryCallback(config); err != nil {
			return zero, err
		}

		if config.RetryDelay > 0 {
			sleep := config.Sleep
			if sleep == nil {
				sleep = time.Sleep
			}
			sleep(config.RetryDelay)
		}
	}

	return handleRetriesExhausted[T](config)
}

func executeRetryCallback(config RetryConfig) error {
	if config.OnRetry != nil {
		return config.OnRetry()
	}
	return nil
}

func handleRetriesExhausted[T any](config RetryConfig) (T, error) {
	var zero T

	if config.OnRetryFailed != nil {
		if failErr := config.OnRetryFailed(); failErr != nil {
			return zero, failErr
		}
	}

	if config.Exhausted != nil {
		return zero, config.Exhausted
	}
	if config.Description != "" {
		return zero, errors.Join(ErrRetriesExhausted, errors.New(config.Description))
	}
	return zero, ErrRetriesExhausted
}
