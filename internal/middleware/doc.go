// Package middleware provides HTTP middleware for the streaming server.
//
// It includes:
//   - Structured access logging through the shared zerolog logger
//   - Prometheus request metrics with player and track ids collapsed
//
// Both wrappers forward Flush so long-running audio streams are not
// buffered.
package middleware
