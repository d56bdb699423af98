package chessbin

import (
	"fmt"
	"strings"
)

// Tokenizer encodes sample text into vocabulary indices and back.
//
// Encode and Decode are not inverses: Encode inserts padding around start and
// outcome markers and splits moves into two square tokens, and Decode joins
// symbols without separators.
type Tokenizer struct {
	vocab   *Vocabulary
	padding int32
	start   int32
	empty   int32
}

// NewTokenizer returns a tokenizer over v. The vocabulary must contain the
// padding, start and empty-square symbols.
func NewTokenizer(v *Vocabulary) (*Tokenizer, error) {
	padding, err := v.Index(PaddingSymbol)
	if err != nil {
		return nil, err
	}
	start, err := v.Index(StartSymbol)
	if err != nil {
		return nil, err
	}
	empty, err := v.Index(EmptySquare)
	if err != nil {
		return nil, err
	}
	return &Tokenizer{vocab: v, padding: padding, start: start, empty: empty}, nil
}

// Vocabulary returns the vocabulary the tokenizer encodes against.
func (t *Tokenizer) Vocabulary() *Vocabulary {
	return t.vocab
}

type wordKind int

const (
	wordUnknown wordKind = iota
	wordPadding
	wordStart
	wordMarker
	wordSymbol
	wordMove
	wordPosition
)

// classify tags a word with the first encode rule that applies to it.
func (t *Tokenizer) classify(word string) wordKind {
	switch {
	case word == PaddingSymbol:
		return wordPadding
	case word == StartSymbol:
		return wordStart
	case t.vocab.Contains(word):
		if isBracketed(word) {
			return wordMarker
		}
		return wordSymbol
	case isMoveLike(word):
		return wordMove
	case strings.Contains(word, RankSeparator):
		return wordPosition
	default:
		return wordUnknown
	}
}

func isBracketed(word string) bool {
	return len(word) >= 2 && word[0] == '<' && word[len(word)-1] == '>'
}

func isMoveLike(word string) bool {
	switch len(word) {
	case 4:
		return true
	case 5:
		return strings.IndexByte(promotionPieces, word[4]) >= 0
	default:
		return false
	}
}

// Encode converts a string of symbols separated by single spaces into
// tokens. An empty word, from a doubled or edge space, is an unknown symbol.
func (t *Tokenizer) Encode(input string) ([]int32, error) {
	words := strings.Split(input, " ")
	tokens := make([]int32, 0, len(words)*2)
	for _, word := range words {
		var err error
		tokens, err = t.appendWord(tokens, word)
		if err != nil {
			return nil, err
		}
	}
	return tokens, nil
}

// EncodeSample encodes one extracted sample.
func (t *Tokenizer) EncodeSample(s Sample) ([]int32, error) {
	return t.Encode(s.String())
}

func (t *Tokenizer) appendWord(tokens []int32, word string) ([]int32, error) {
	switch t.classify(word) {
	case wordPadding:
		return append(tokens, t.padding), nil
	case wordStart:
		return append(tokens, t.padding, t.start), nil
	case wordMarker:
		index, err := t.vocab.Index(word)
		if err != nil {
			return nil, err
		}
		return append(tokens, index, t.padding), nil
	case wordSymbol:
		index, err := t.vocab.Index(word)
		if err != nil {
			return nil, err
		}
		return append(tokens, index), nil
	case wordMove:
		from, err := t.vocab.Index(word[:2])
		if err != nil {
			return nil, fmt.Errorf("move %q: %w", word, err)
		}
		to, err := t.vocab.Index(word[2:])
		if err != nil {
			return nil, fmt.Errorf("move %q: %w", word, err)
		}
		return append(tokens, from, to), nil
	case wordPosition:
		for _, r := range word {
			if r >= '0' && r <= '9' {
				for i := 0; i < int(r-'0'); i++ {
					tokens = append(tokens, t.empty)
				}
				continue
			}
			index, err := t.vocab.Index(string(r))
			if err != nil {
				return nil, fmt.Errorf("position field %q: %w", word, err)
			}
			tokens = append(tokens, index)
		}
		return tokens, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSymbol, word)
	}
}

// Decode concatenates the symbols of tokens without separators.
func (t *Tokenizer) Decode(tokens []int32) (string, error) {
	var b strings.Builder
	for _, token := range tokens {
		symbol, err := t.vocab.Symbol(token)
		if err != nil {
			return "", err
		}
		b.WriteString(symbol)
	}
	return b.String(), nil
}
