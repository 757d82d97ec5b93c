// Package server exposes the live transcript over HTTP and WebSocket.
package server

import "time"

const (
	// Per-IP rate limiting of inbound WebSocket messages and API calls.
	IPRateLimitMessages        = 30               // Max messages per IP per window
	IPRateLimitWindow          = time.Second      // Sliding window duration
	IPRateLimitCleanupInterval = 5 * time.Minute  // How often to purge stale IP entries
	IPRateLimitEntryTTL        = 10 * time.Minute // TTL for inactive IP entries

	// WriteTimeout bounds a single WebSocket write so one slow client cannot stall a broadcast.
	WriteTimeout = 5 * time.Second

	// MaxSummarizeBody caps the POST /api/summarize request body.
	MaxSummarizeBody = 4 << 20
)
