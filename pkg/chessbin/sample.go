package chessbin

import (
	"fmt"
	"strings"
)

// Board is a position cursor owned by one extractor. The chess rules behind
// it are provided by the caller.
type Board interface {
	// Play advances the position by one UCI move.
	Play(move string) error
	// FEN returns the current position in full FEN.
	FEN() string
}

// Game is one decoded game ready for sample extraction.
type Game struct {
	ID      string
	Tags    map[string]string
	Moves   []string
	Outcome string
	Board   Board
}

// Sample is one training window: past moves, the trimmed position and
// future moves.
type Sample struct {
	Before   []string
	Position []string
	After    []string
}

func (s Sample) Words() []string {
	words := make([]string, 0, len(s.Before)+len(s.Position)+len(s.After))
	words = append(words, s.Before...)
	words = append(words, s.Position...)
	return append(words, s.After...)
}

func (s Sample) String() string {
	return strings.Join(s.Words(), " ")
}

type phase int

const (
	phaseFill phase = iota
	phaseSlide
	phaseDrain
	phaseDone
)

func (p phase) String() string {
	switch p {
	case phaseFill:
		return "fill"
	case phaseSlide:
		return "slide"
	case phaseDrain:
		return "drain"
	default:
		return "done"
	}
}

// Extractor walks a game once and yields len(moves)+windowSize samples.
// It is not restartable; build a new one per game.
type Extractor struct {
	game       Game
	windowSize int
	outcome    string

	before []string
	after  []string
	// pending counts the real moves at the head of after.
	pending int

	phase     phase
	next      int
	drainStep int

	sample Sample
	err    error
}

// NewExtractor validates g and prepares the move windows.
func NewExtractor(g Game, windowSize int) (*Extractor, error) {
	if windowSize < 1 {
		return nil, fmt.Errorf("window size must be >= 1, got %d", windowSize)
	}
	if g.Board == nil {
		return nil, fmt.Errorf("%w: %s: no board", ErrMalformedGame, g.ID)
	}
	outcome, err := OutcomeSymbol(g.Outcome)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", g.ID, err)
	}
	for i, move := range g.Moves {
		if !isMoveLike(move) {
			return nil, fmt.Errorf("%w: %s: move %d: invalid notation %q", ErrMalformedGame, g.ID, i+1, move)
		}
	}
	before := make([]string, 0, windowSize)
	for i := 0; i < windowSize-1; i++ {
		before = append(before, PaddingSymbol)
	}
	before = append(before, StartSymbol)
	return &Extractor{
		game:       g,
		windowSize: windowSize,
		outcome:    outcome,
		before:     before,
		after:      make([]string, 0, windowSize),
	}, nil
}

// Next advances to the next sample. It returns false when the game is
// drained or an error occurred.
func (e *Extractor) Next() bool {
	if e.err != nil || e.phase == phaseDone {
		return false
	}
	if e.next >= len(e.game.Moves) && e.phase != phaseDrain {
		e.phase = phaseDrain
	}
	switch e.phase {
	case phaseFill:
		e.fill()
	case phaseSlide:
		if err := e.slide(); err != nil {
			e.fail(err)
			return false
		}
	case phaseDrain:
		if e.drainStep >= e.windowSize {
			e.phase = phaseDone
			return false
		}
		if err := e.drain(); err != nil {
			e.fail(err)
			return false
		}
	}
	if err := e.emit(); err != nil {
		e.fail(err)
		return false
	}
	return true
}

func (e *Extractor) Sample() Sample {
	return e.sample
}

func (e *Extractor) Err() error {
	return e.err
}

func (e *Extractor) fail(err error) {
	e.err = err
	e.phase = phaseDone
}

func (e *Extractor) fill() {
	e.after = append(e.after, e.game.Moves[e.next])
	e.pending++
	e.next++
	if len(e.after) == e.windowSize {
		e.phase = phaseSlide
	}
}

func (e *Extractor) slide() error {
	incoming := e.game.Moves[e.next]
	e.next++
	if err := e.playHead(); err != nil {
		return err
	}
	e.after = append(e.after, incoming)
	e.pending++
	return nil
}

// drain plays or discards the head of after and refills the tail with the
// outcome marker on the first step and padding afterwards. When the game has
// fewer moves than the window, the marker reaches the head before the last
// step and is discarded, so the final samples carry only padding.
func (e *Extractor) drain() error {
	if e.pending > 0 {
		if err := e.playHead(); err != nil {
			return err
		}
	} else if len(e.after) > 0 {
		e.after = e.after[1:]
	}
	tail := PaddingSymbol
	if e.drainStep == 0 {
		tail = e.outcome
	}
	e.after = append(e.after, tail)
	e.drainStep++
	return nil
}

// playHead applies the oldest lookahead move and shifts it into before.
func (e *Extractor) playHead() error {
	move := e.after[0]
	e.after = e.after[1:]
	e.pending--
	if err := e.game.Board.Play(move); err != nil {
		return fmt.Errorf("%w: %s: %s: play %s: %v", ErrMalformedGame, e.game.ID, e.phase, move, err)
	}
	e.before = append(e.before[1:], move)
	return nil
}

func (e *Extractor) emit() error {
	position, err := trimFEN(e.game.Board.FEN())
	if err != nil {
		return fmt.Errorf("%s: %w", e.game.ID, err)
	}
	before := make([]string, len(e.before))
	copy(before, e.before)
	after := make([]string, e.windowSize)
	n := copy(after, e.after)
	for i := n; i < e.windowSize; i++ {
		after[i] = PaddingSymbol
	}
	e.sample = Sample{Before: before, Position: position, After: after}
	return nil
}

// trimFEN keeps placement, side to move, castling rights and en passant.
func trimFEN(fen string) ([]string, error) {
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return nil, fmt.Errorf("%w: short position %q", ErrMalformedGame, fen)
	}
	return fields[:4], nil
}

// Extract runs a fresh extractor over g and collects every sample.
func Extract(g Game, windowSize int) ([]Sample, error) {
	e, err := NewExtractor(g, windowSize)
	if err != nil {
		return nil, err
	}
	samples := make([]Sample, 0, len(g.Moves)+windowSize)
	for e.Next() {
		samples = append(samples, e.Sample())
	}
	if err := e.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

// EncodeGame extracts and encodes every sample of g. Nothing is returned
// unless the whole game encodes, so callers never write a partial game.
func EncodeGame(t *Tokenizer, g Game, windowSize int) ([][]int32, error) {
	e, err := NewExtractor(g, windowSize)
	if err != nil {
		return nil, err
	}
	encoded := make([][]int32, 0, len(g.Moves)+windowSize)
	for e.Next() {
		tokens, err := t.EncodeSample(e.Sample())
		if err != nil {
			return nil, fmt.Errorf("%s: sample %d: %w", g.ID, len(encoded), err)
		}
		encoded = append(encoded, tokens)
	}
	if err := e.Err(); err != nil {
		return nil, err
	}
	return encoded, nil
}
