// Package apperr holds the sentinel errors shared across sitesmith packages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrConfiguration marks fatal setup problems (missing credentials,
	// unusable registry). Never retried.
	ErrConfiguration = errors.New("configuration error")
	ErrEmptyRegistry = fmt.Errorf("%w: component registry is empty", ErrConfiguration)

	// ErrTransient marks a single failed network/API call. Callers log it and
	// carry on with sibling operations.
	ErrTransient = errors.New("transient io error")

	// ErrBuild wraps failures raised by a build callback.
	ErrBuild = errors.New("build failed")

	ErrUnknownCollection = errors.New("unknown collection")
)
