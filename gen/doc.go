// Package gen orchestrates asynchronous media generation across multiple
// vendor APIs. It provides a uniform submit/poll contract over providers
// with very different wire formats, a static registry mapping (capability,
// model) pairs to provider adapters, a bounded parallel poller, and retail
// and actual cost resolution for generated artifacts.
//
// The package itself contains no vendor code. Concrete adapters live under
// gen/providers and are wired into a Registry by the root mediaflow package.
package gen
