// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "errors"

var (
	// ErrUnknownConfigField marks a YAML key that has no AppConfig field.
	ErrUnknownConfigField = errors.New("unknown config field")

	// ErrInvalidConfig wraps every Validate failure returned by Loader.Load.
	// A Holder keeps the previous configuration when a reload fails with it.
	ErrInvalidConfig = errors.New("invalid configuration")
)
