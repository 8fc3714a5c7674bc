package llm

import "strings"

// DefaultFlushThreshold is the buffered length above which tokens are flushed
const DefaultFlushThreshold = 20

// TokenBuffer batches streamed tokens so the sink sees fewer, larger writes.
// It flushes once the buffer is longer than the threshold or a token
// contains a newline. Flush must be called after the last token.
type TokenBuffer struct {
	sink      Sink
	threshold int
	buf       strings.Builder
	full      strings.Builder
}

// NewTokenBuffer wraps sink. A non-positive threshold uses DefaultFlushThreshold.
func NewTokenBuffer(sink Sink, threshold int) *TokenBuffer {
	if threshold <= 0 {
		threshold = DefaultFlushThreshold
	}
	return &TokenBuffer{sink: sink, threshold: threshold}
}

// Write adds one token
func (b *TokenBuffer) Write(token string) error {
	b.full.WriteString(token)
	b.buf.WriteString(token)
	if b.buf.Len() > b.threshold || strings.Contains(token, "\n") {
		return b.Flush()
	}
	return nil
}

// Flush sends whatever is buffered
func (b *TokenBuffer) Flush() error {
	if b.buf.Len() == 0 {
		return nil
	}
	chunk := b.buf.String()
	b.buf.Reset()
	if b.sink == nil {
		return nil
	}
	return b.sink(chunk)
}

// String returns every token written so far, flushed or not
func (b *TokenBuffer) String() string {
	return b.full.String()
}
