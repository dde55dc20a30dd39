// Package redis provides a Redis-backed implementation of every storage
// interface, for multi-instance deployments where grants must survive
// restarts and redemption must be atomic across processes. Expiring
// artifacts are stored with a key TTL matching their expiry, so Redis
// reclaims abandoned grants on its own.
package redis
