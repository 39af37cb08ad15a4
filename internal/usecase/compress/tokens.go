package compress

import (
	"github.com/pkoukk/tiktoken-go"
)

// encodingName is the BPE used for budget accounting. cl100k covers the
// embedding models this system pairs with.
const encodingName = "cl100k_base"

// TokenCounter measures text against a token budget.
type TokenCounter interface {
	Count(text string) int
}

// tiktokenCounter counts with a real BPE, falling back to a rough
// 4-chars-per-token estimate when the encoding is unavailable (e.g. no
// network to fetch the BPE ranks).
type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter returns the default tiktoken-backed counter.
func NewTokenCounter() TokenCounter {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return &tiktokenCounter{}
	}
	return &tiktokenCounter{enc: enc}
}

func (c *tiktokenCounter) Count(text string) int {
	if c.enc == nil {
		return len(text) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}
