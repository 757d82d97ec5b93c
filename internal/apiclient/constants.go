package apiclient

import "time"

// Client configuration defaults
const (
	// Whole-request ceiling; uploads near the payload limit take a while.
	DefaultTimeout = 2 * time.Minute

	DefaultBaseURL = "https://api.openai.com/v1"
)
