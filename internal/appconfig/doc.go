// Package appconfig collects the environment-variable configuration
// helpers shared by the three command binaries (shardcontroller,
// kvserver, shardkv-cli).
//
// This consolidates the getenv/mustGetenv/duration-parsing helpers that
// cmd/coordinator and cmd/node each hand-rolled locally into a single
// shared package, since three binaries now need the same
// string/duration/int lookups instead of two.
//
// Named appconfig, not config, to avoid colliding with
// github.com/dreamware/torua/internal/config, which is the domain
// Configuration type (placement map), not process configuration.
package appconfig
