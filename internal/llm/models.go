// Package llm calls an OpenAI-compatible chat completion endpoint.
package llm

import "sort"

// contextSizes maps each supported chat model to its context window in tokens.
var contextSizes = map[string]int{
	"gpt-3.5-turbo": 4096,
	"gpt-4":         8192,
	"gpt-4-32k":     32768,
}

// ContextSize returns the token window of a known model.
func ContextSize(model string) (int, bool) {
	n, ok := contextSizes[model]
	return n, ok
}

// Models lists the supported model names in sorted order.
func Models() []string {
	out := make([]string, 0, len(contextSizes))
	for m := range contextSizes {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
