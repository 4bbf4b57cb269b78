// Package retry retries cluster writes that fail transiently.
//
// [WithExponentialBackoff] is the generic loop. [API] wraps a write so that
// only conflict, throttling and server-timeout responses are retried; any
// other error stops the loop at once.
package retry
