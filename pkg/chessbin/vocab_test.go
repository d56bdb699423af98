package chessbin_test

import (
	"errors"
	"testing"

	"chessbin/pkg/chessbin"
)

func TestDefaultVocabularySize(t *testing.T) {
	vocab := chessbin.DefaultVocabulary()
	if vocab.Len() != 226 {
		t.Fatalf("unexpected vocabulary size: got %d want 226", vocab.Len())
	}
	if vocab.Len() != chessbin.VocabularySize {
		t.Fatalf("VocabularySize constant is stale: got %d want %d", chessbin.VocabularySize, vocab.Len())
	}
}

func TestDefaultVocabularyIsDeterministic(t *testing.T) {
	a := chessbin.DefaultVocabulary()
	b := chessbin.DefaultVocabulary()
	if a.Len() != b.Len() {
		t.Fatalf("size mismatch: %d vs %d", a.Len(), b.Len())
	}
	for i := 0; i < a.Len(); i++ {
		sa, err := a.Symbol(int32(i))
		if err != nil {
			t.Fatalf("symbol %d: %v", i, err)
		}
		sb, err := b.Symbol(int32(i))
		if err != nil {
			t.Fatalf("symbol %d: %v", i, err)
		}
		if sa != sb {
			t.Fatalf("index %d differs: %q vs %q", i, sa, sb)
		}
	}
}

func TestDefaultVocabularyOrder(t *testing.T) {
	vocab := chessbin.DefaultVocabulary()
	want := map[string]int32{
		"_":         0,
		"<s>":       1,
		"<1-0>":     2,
		"<0-1>":     3,
		"<1/2-1/2>": 4,
		"<*>":       5,
		"r":         6,
		"P":         17,
		".":         18,
		"/":         19,
		"w":         20,
		"b":         8, // bishop letter doubles as black to move
		"-":         21,
		"KQ":        22,
		"KQkq":      32,
		"a1":        33,
		"e2":        66,
		"e4":        68,
		"h8":        96,
		"a1q":       97,
		"a8q":       98,
		"a1Q":       99,
		"a8Q":       100,
		"a1r":       101,
		"h8N":       224,
		"?":         225,
	}
	for symbol, index := range want {
		got, err := vocab.Index(symbol)
		if err != nil {
			t.Fatalf("index of %q: %v", symbol, err)
		}
		if got != index {
			t.Fatalf("unexpected index for %q: got %d want %d", symbol, got, index)
		}
	}
}

func TestVocabularyAddIsIdempotent(t *testing.T) {
	vocab := chessbin.NewVocabulary("_")
	vocab.Add("x")
	vocab.Add("x")
	vocab.Add("_")
	if vocab.Len() != 2 {
		t.Fatalf("unexpected size: got %d want 2", vocab.Len())
	}
	if !vocab.Contains("x") || vocab.Contains("y") {
		t.Fatal("Contains disagrees with Add")
	}
}

func TestVocabularyLookupErrors(t *testing.T) {
	vocab := chessbin.DefaultVocabulary()
	if _, err := vocab.Index("e9"); !errors.Is(err, chessbin.ErrUnknownSymbol) {
		t.Fatalf("expected ErrUnknownSymbol, got %v", err)
	}
	for _, index := range []int32{-1, int32(vocab.Len())} {
		if _, err := vocab.Symbol(index); !errors.Is(err, chessbin.ErrIndexOutOfRange) {
			t.Fatalf("index %d: expected ErrIndexOutOfRange, got %v", index, err)
		}
	}
}

func TestOutcomeSymbol(t *testing.T) {
	for _, result := range []string{"1-0", "0-1", "1/2-1/2", "*"} {
		symbol, err := chessbin.OutcomeSymbol(result)
		if err != nil {
			t.Fatalf("outcome %s: %v", result, err)
		}
		if symbol != "<"+result+">" {
			t.Fatalf("unexpected marker: got %s", symbol)
		}
	}
	if _, err := chessbin.OutcomeSymbol("2-0"); !errors.Is(err, chessbin.ErrMalformedGame) {
		t.Fatalf("expected ErrMalformedGame, got %v", err)
	}
}
