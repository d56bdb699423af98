package chessbin

import "fmt"

// Symbols with a structural role in encoding and sample extraction.
const (
	PaddingSymbol   = "_"
	StartSymbol     = "<s>"
	MaskSymbol      = "?"
	EmptySquare     = "."
	RankSeparator   = "/"
	NoRightsSymbol  = "-"
	VocabularySize  = 226
	promotionPieces = "qrbn"
)

// Outcome markers in the order they are registered.
var outcomeSymbols = []string{"<1-0>", "<0-1>", "<1/2-1/2>", "<*>"}

var castlingRights = []string{
	"-",
	"K",
	"Q",
	"KQ",
	"k",
	"Kk",
	"Qk",
	"KQk",
	"q",
	"Kq",
	"Qq",
	"KQq",
	"kq",
	"Kkq",
	"Qkq",
	"KQkq",
}

// Vocabulary maps symbols to token indices in first-insertion order.
type Vocabulary struct {
	symbolToIndex map[string]int32
	indexToSymbol []string
}

// NewVocabulary returns a vocabulary holding only the padding symbol at index 0.
func NewVocabulary(padding string) *Vocabulary {
	v := &Vocabulary{symbolToIndex: make(map[string]int32)}
	v.Add(padding)
	return v
}

// Add registers symbol with the next free index. Known symbols are left alone.
func (v *Vocabulary) Add(symbol string) {
	if _, ok := v.symbolToIndex[symbol]; ok {
		return
	}
	v.symbolToIndex[symbol] = int32(len(v.indexToSymbol))
	v.indexToSymbol = append(v.indexToSymbol, symbol)
}

func (v *Vocabulary) Index(symbol string) (int32, error) {
	index, ok := v.symbolToIndex[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownSymbol, symbol)
	}
	return index, nil
}

func (v *Vocabulary) Symbol(index int32) (string, error) {
	if index < 0 || int(index) >= len(v.indexToSymbol) {
		return "", fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return v.indexToSymbol[index], nil
}

func (v *Vocabulary) Contains(symbol string) bool {
	_, ok := v.symbolToIndex[symbol]
	return ok
}

func (v *Vocabulary) Len() int {
	return len(v.indexToSymbol)
}

// DefaultVocabulary builds the chess vocabulary. The registration order fixes
// every token index, so it must not be reordered.
func DefaultVocabulary() *Vocabulary {
	v := NewVocabulary(PaddingSymbol)
	v.Add(StartSymbol)
	for _, outcome := range outcomeSymbols {
		v.Add(outcome)
	}
	for _, piece := range "rnbqkpRNBQKP" {
		v.Add(string(piece))
	}
	v.Add(EmptySquare)
	v.Add(RankSeparator)
	v.Add("w")
	v.Add("b")
	v.Add(NoRightsSymbol)
	for _, rights := range castlingRights {
		v.Add(rights)
	}
	for _, file := range "abcdefgh" {
		for _, rank := range "12345678" {
			v.Add(string(file) + string(rank))
		}
	}
	for _, file := range "abcdefgh" {
		for _, piece := range promotionPieces {
			lower := string(piece)
			upper := string(piece - 'a' + 'A')
			v.Add(string(file) + "1" + lower)
			v.Add(string(file) + "8" + lower)
			v.Add(string(file) + "1" + upper)
			v.Add(string(file) + "8" + upper)
		}
	}
	v.Add(MaskSymbol)
	return v
}

// OutcomeSymbol returns the bracketed marker for a game result string.
func OutcomeSymbol(result string) (string, error) {
	symbol := "<" + result + ">"
	for _, known := range outcomeSymbols {
		if symbol == known {
			return symbol, nil
		}
	}
	return "", fmt.Errorf("%w: unknown result %q", ErrMalformedGame, result)
}
