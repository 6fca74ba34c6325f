// Package redisconn establishes the Redis connection backing the shared
// throttle counter store.
package redisconn
