package scanner

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tkloader "github.com/pkoukk/tiktoken-go-loader"
)

const (
	// CharsPerToken is the heuristic ratio used by CharEstimator
	CharsPerToken = 4
	// DefaultEncoding is the BPE vocabulary shared by current OpenAI models
	DefaultEncoding = "cl100k_base"
	// EstimateEncoding selects CharEstimator instead of a BPE vocabulary
	EstimateEncoding = "estimate"
)

// Tokenizer counts model tokens in a text
type Tokenizer interface {
	Count(text string) int
}

// BPETokenizer counts tokens with a tiktoken byte-pair encoding. Special
// token markers in source files are counted as ordinary text.
type BPETokenizer struct {
	name string
	enc  *tiktoken.Tiktoken
}

var (
	loaderOnce sync.Once

	encodingsMu sync.Mutex
	encodings   = map[string]*BPETokenizer{}
)

// NewBPETokenizer loads the named encoding from the vocabularies compiled
// into the binary; nothing is downloaded. Loaded encodings are shared.
func NewBPETokenizer(encoding string) (*BPETokenizer, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tkloader.NewOfflineLoader())
	})

	encodingsMu.Lock()
	defer encodingsMu.Unlock()
	if t, ok := encodings[encoding]; ok {
		return t, nil
	}

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: token encoding %q: %v", ErrInvalidConfig, encoding, err)
	}
	t := &BPETokenizer{name: encoding, enc: enc}
	encodings[encoding] = t
	return t, nil
}

// Count implements Tokenizer
func (t *BPETokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.EncodeOrdinary(text))
}

// Encoding returns the vocabulary name
func (t *BPETokenizer) Encoding() string {
	return t.name
}

// NewTokenizer returns the tokenizer for a configured encoding name.
// EstimateEncoding selects CharEstimator; an empty name uses DefaultEncoding.
func NewTokenizer(encoding string) (Tokenizer, error) {
	switch encoding {
	case EstimateEncoding:
		return CharEstimator{}, nil
	case "":
		encoding = DefaultEncoding
	}
	return NewBPETokenizer(encoding)
}

// CharEstimator approximates one token per four bytes of text.
// Non-empty text always counts as at least one token.
type CharEstimator struct{}

// Count implements Tokenizer
func (CharEstimator) Count(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / CharsPerToken
	if n == 0 {
		return 1
	}
	return n
}

// TokenizerFunc adapts a function to Tokenizer
type TokenizerFunc func(text string) int

// Count implements Tokenizer
func (f TokenizerFunc) Count(text string) int {
	return f(text)
}
