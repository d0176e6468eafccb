package tokens

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// Estimator counts tokens in exchanged text using the cl100k encoding,
// for usage accounting in exchange logs.
type Estimator struct {
	codec tokenizer.Codec
}

// NewEstimator loads the cl100k codec.
func NewEstimator() (*Estimator, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer encoding: %w", err)
	}
	return &Estimator{codec: codec}, nil
}

// Count returns the token count of text. Empty text counts zero.
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	ids, _, err := e.codec.Encode(text)
	if err != nil {
		return 0
	}
	return len(ids)
}
