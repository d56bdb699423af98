package chessbin

import "errors"

var (
	// ErrUnknownSymbol is returned when a word has no vocabulary entry and
	// matches none of the structural encode rules.
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrIndexOutOfRange is returned when a token index is not in the vocabulary.
	ErrIndexOutOfRange = errors.New("token index out of range")
	// ErrMalformedGame is returned when a game cannot provide a usable move
	// list, outcome or position sequence.
	ErrMalformedGame = errors.New("malformed game")
)
