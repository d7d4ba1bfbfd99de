// Package tiktoken counts tokens for the history reducer threshold.
package tiktoken

import (
	"github.com/pkoukk/tiktoken-go"
	"github.com/sweetpotato0/ai-devteam/message"
)

// DefaultEncoding is used when the model name is unknown to tiktoken.
const DefaultEncoding = "cl100k_base"

// perMessageOverhead approximates the role and separator tokens chat models
// add around every message.
const perMessageOverhead = 4

type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// New resolves an encoding by model name, then by encoding name, then falls
// back to DefaultEncoding.
func New(name string) (*Tokenizer, error) {
	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		enc, err = tiktoken.GetEncoding(name)
	}
	if err != nil {
		enc, err = tiktoken.GetEncoding(DefaultEncoding)
		if err != nil {
			return nil, err
		}
	}
	return &Tokenizer{enc: enc}, nil
}

func (t *Tokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *Tokenizer) Decode(ids []int) string {
	return t.enc.Decode(ids)
}

// Count returns the number of tokens in text.
func (t *Tokenizer) Count(text string) int {
	return len(t.Encode(text))
}

// CountMessages estimates the prompt size of msgs.
func (t *Tokenizer) CountMessages(msgs []*message.Message) int {
	total := 0
	for _, m := range msgs {
		total += perMessageOverhead + t.Count(m.Author) + t.Count(m.Content)
	}
	return total
}
