package chunker

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	apperrors "github.com/GriffinCanCode/scribe/internal/errors"
)

// DefaultEncoding is the BPE used by the chat and speech models.
const DefaultEncoding = "cl100k_base"

var loaderOnce sync.Once

// TiktokenTokenizer is a BPE tokenizer backed by embedded vocabulary files.
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding without touching the network.
func NewTiktoken(encoding string) (*TiktokenTokenizer, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "load token encoding").WithMetadata("encoding", encoding)
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

// Encode treats special-token text as ordinary text.
func (t *TiktokenTokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *TiktokenTokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// Count returns the number of tokens in text.
func (t *TiktokenTokenizer) Count(text string) int {
	return len(t.Encode(text))
}
