// File path: internal/tokens/tokens.go
package tokens

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
)

// tokenPattern matches lowercase alphanumeric runs; everything else is a
// separator. Inputs are lowered before matching.
var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// Tokenize returns every alphanumeric token of text in order, lowercased.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// TokenSet returns the distinct tokens of text.
func TokenSet(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range Tokenize(text) {
		out[tok] = struct{}{}
	}
	return out
}

// Vocabulary is a set of curated tokens for one corpus type.
type Vocabulary map[string]struct{}

// NewVocabulary builds a vocabulary from explicit tokens.
func NewVocabulary(toks ...string) Vocabulary {
	v := make(Vocabulary, len(toks))
	for _, tok := range toks {
		tok = strings.TrimSpace(strings.ToLower(tok))
		if tok != "" {
			v[tok] = struct{}{}
		}
	}
	return v
}

// LoadVocabulary reads a newline-delimited token list file. A missing file
// yields an empty vocabulary rather than an error so a corpus without a
// curated list still starts.
func LoadVocabulary(path string) (Vocabulary, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Vocabulary{}, nil
		}
		return nil, fmt.Errorf("open token list: %w", err)
	}
	defer file.Close()
	vocab := Vocabulary{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		tok := strings.TrimSpace(strings.ToLower(scanner.Text()))
		if tok != "" {
			vocab[tok] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read token list: %w", err)
	}
	return vocab, nil
}

// Contains reports whether tok is in the vocabulary.
func (v Vocabulary) Contains(tok string) bool {
	_, ok := v[tok]
	return ok
}

// Clone returns an independent copy of the vocabulary.
func (v Vocabulary) Clone() Vocabulary {
	out := make(Vocabulary, len(v))
	for tok := range v {
		out[tok] = struct{}{}
	}
	return out
}

// Union returns a new vocabulary holding every token of v and other.
func (v Vocabulary) Union(other Vocabulary) Vocabulary {
	out := v.Clone()
	for tok := range other {
		out[tok] = struct{}{}
	}
	return out
}
