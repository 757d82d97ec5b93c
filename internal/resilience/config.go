package resilience

import "time"

// Circuit breaker configuration constants
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3

	// Speech-to-text uploads are large and slow; trip later, probe sooner.
	TranscriptionThreshold         = 8
	TranscriptionResetTimeout      = 20 * time.Second
	TranscriptionHalfOpenSuccesses = 1

	// Completion calls are serial, so a single probe is enough to close.
	CompletionThreshold         = 5
	CompletionResetTimeout      = 30 * time.Second
	CompletionHalfOpenSuccesses = 1
)

// Config holds circuit breaker settings.
type Config struct {
	Name              string        // used in log lines
	Threshold         int           // failures before opening
	ResetTimeout      time.Duration // wait before half-open attempt
	HalfOpenSuccesses int           // successes needed to close
}

// DefaultConfig returns general-purpose defaults.
func DefaultConfig() Config {
	return Config{
		Name:              "default",
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// TranscriptionConfig returns settings for the speech-to-text boundary.
func TranscriptionConfig() Config {
	return Config{
		Name:              "transcription",
		Threshold:         TranscriptionThreshold,
		ResetTimeout:      TranscriptionResetTimeout,
		HalfOpenSuccesses: TranscriptionHalfOpenSuccesses,
	}
}

// CompletionConfig returns settings for the chat completion boundary.
func CompletionConfig() Config {
	return Config{
		Name:              "completion",
		Threshold:         CompletionThreshold,
		ResetTimeout:      CompletionResetTimeout,
		HalfOpenSuccesses: CompletionHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}
