package chessbin_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"

	"chessbin/pkg/chessbin"
)

func readTestGames(t *testing.T, name string) []chessbin.GameText {
	t.Helper()
	var games []chessbin.GameText
	err := chessbin.ReadGames(filepath.Join("testdata", name), chessbin.EncodingAuto, func(g chessbin.GameText) error {
		games = append(games, g)
		return nil
	})
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return games
}

func loadSimpleGame(t *testing.T) chessbin.Game {
	t.Helper()
	games := readTestGames(t, "simple.pgn")
	if len(games) != 1 {
		t.Fatalf("unexpected game count: got %d want 1", len(games))
	}
	game, err := chessbin.ParseGame(games[0].ID, games[0].Text)
	if err != nil {
		t.Fatalf("failed to parse game: %v", err)
	}
	return game
}

func TestParseGameSimple(t *testing.T) {
	game := loadSimpleGame(t)
	if game.ID != "simple.pgn#1" {
		t.Fatalf("unexpected id: got %s want simple.pgn#1", game.ID)
	}
	if len(game.Moves) != 50 {
		t.Fatalf("unexpected move count: got %d want 50", len(game.Moves))
	}
	wantHead := []string{"e2e4", "e7e5", "b1c3", "g8f6", "d2d4", "e5d4"}
	if !reflect.DeepEqual(game.Moves[:len(wantHead)], wantHead) {
		t.Fatalf("unexpected first moves: got %v want %v", game.Moves[:len(wantHead)], wantHead)
	}
	if got := game.Moves[32]; got != "e1c1" {
		t.Fatalf("queenside castling: got %s want e1c1", got)
	}
	if got := game.Moves[49]; got != "c6a5" {
		t.Fatalf("last move: got %s want c6a5", got)
	}
	if game.Outcome != "0-1" {
		t.Fatalf("unexpected outcome: got %s want 0-1", game.Outcome)
	}
	if game.Tags["Date"] != "2024.01.23" {
		t.Fatalf("unexpected date tag: got %q", game.Tags["Date"])
	}
	want := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	if got := game.Board.FEN(); got != want {
		t.Fatalf("unexpected start position: got %s want %s", got, want)
	}
}

func TestEncodeGameSimple(t *testing.T) {
	tok := newTokenizer(t)
	game := loadSimpleGame(t)
	samples, err := chessbin.Extract(game, 5)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(samples) != 55 {
		t.Fatalf("unexpected sample count: got %d want 55", len(samples))
	}
	for i, s := range samples {
		if n := len(s.Words()); n != 14 {
			t.Fatalf("sample %d: got %d words want 14", i, n)
		}
	}
	if got := samples[54].After[0]; got != "<0-1>" {
		t.Fatalf("last sample should open with the outcome, got %s", got)
	}
	if got, want := samples[54].Before, game.Moves[45:]; !reflect.DeepEqual(got, want) {
		t.Fatalf("last sample before: got %v want %v", got, want)
	}

	// Encoding consumes the board again, so parse a fresh copy.
	game = loadSimpleGame(t)
	encoded, err := chessbin.EncodeGame(tok, game, 5)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(encoded) != 55 {
		t.Fatalf("unexpected encoded count: got %d want 55", len(encoded))
	}
	if got := len(encoded[0]); got != 86 {
		t.Fatalf("first sample tokens: got %d want 86", got)
	}
	if got := len(encoded[10]); got != 94 {
		t.Fatalf("steady sample tokens: got %d want 94", got)
	}
	decoded, err := tok.Decode(encoded[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := "_____<s>rnbqkbnr/pppppppp/......../......../......../......../PPPPPPPP/RNBQKBNRwKQkq-e2e4____"
	if decoded != want {
		t.Fatalf("unexpected first sample:\n got %s\nwant %s", decoded, want)
	}
}

func TestReadGamesMulti(t *testing.T) {
	games := readTestGames(t, "multi.pgn")
	if len(games) != 3 {
		t.Fatalf("unexpected game count: got %d want 3", len(games))
	}
	for i, g := range games {
		if want := "multi.pgn#" + string(rune('1'+i)); g.ID != want {
			t.Fatalf("game %d id: got %s want %s", i, g.ID, want)
		}
		if !strings.HasPrefix(g.Text, "[Event") {
			t.Fatalf("game %d should start with its tags: %q", i, g.Text)
		}
	}

	draw, err := chessbin.ParseGame(games[0].ID, games[0].Text)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if want := []string{"g1f3", "g8f6", "f3g1", "f6g8"}; !reflect.DeepEqual(draw.Moves, want) {
		t.Fatalf("draw moves: got %v want %v", draw.Moves, want)
	}
	row := chessbin.NewManifestRow(draw)
	if row.White != "Alpha" || row.Black != "Beta" || row.WhiteElo != 2100 || row.BlackElo != 2050 {
		t.Fatalf("unexpected manifest row: %+v", row)
	}
	if row.Result != "1/2-1/2" || row.MoveCount != 4 {
		t.Fatalf("unexpected manifest row: %+v", row)
	}

	if _, err := chessbin.ParseGame(games[1].ID, games[1].Text); !errors.Is(err, chessbin.ErrMalformedGame) {
		t.Fatalf("broken game: expected ErrMalformedGame, got %v", err)
	}

	promo, err := chessbin.ParseGame(games[2].ID, games[2].Text)
	if err != nil {
		t.Fatalf("promotion: %v", err)
	}
	if want := []string{"a7a8q", "h7g6"}; !reflect.DeepEqual(promo.Moves, want) {
		t.Fatalf("promotion moves: got %v want %v", promo.Moves, want)
	}
	tok := newTokenizer(t)
	if _, err := chessbin.EncodeGame(tok, promo, 3); err != nil {
		t.Fatalf("promotion game should encode: %v", err)
	}
}

func TestSplitGamesWithoutBlankLines(t *testing.T) {
	text := "[Event \"a\"]\n1. e4 e5 1-0\n[Event \"b\"]\n[Result \"*\"]\n1. d4 *\n"
	var got []string
	if err := chessbin.SplitGames(strings.NewReader(text), func(game string) error {
		got = append(got, game)
		return nil
	}); err != nil {
		t.Fatalf("split: %v", err)
	}
	want := []string{
		"[Event \"a\"]\n1. e4 e5 1-0",
		"[Event \"b\"]\n[Result \"*\"]\n1. d4 *",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected games: got %q want %q", got, want)
	}
}

func TestOpenPGNWindows1252(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latin.pgn")
	text := "[White \"Ren\xe9\"]\n[Black \"M\xfcller\"]\n[Result \"1-0\"]\n\n1. e4 e5 1-0\n"
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var games []chessbin.GameText
	if err := chessbin.ReadGames(path, chessbin.EncodingAuto, func(g chessbin.GameText) error {
		games = append(games, g)
		return nil
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("unexpected game count: got %d want 1", len(games))
	}
	game, err := chessbin.ParseGame(games[0].ID, games[0].Text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if game.Tags["White"] != "René" || game.Tags["Black"] != "Müller" {
		t.Fatalf("unexpected names: %q %q", game.Tags["White"], game.Tags["Black"])
	}
}

func TestOpenPGNRejectsUnknownEncoding(t *testing.T) {
	if _, err := chessbin.OpenPGN(filepath.Join("testdata", "simple.pgn"), "ebcdic"); err == nil {
		t.Fatal("unknown encoding should be rejected")
	}
}

func writeCompressed(t *testing.T, path string, data []byte, wrap func(io.Writer) (io.WriteCloser, error)) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	w, err := wrap(f)
	if err != nil {
		t.Fatalf("compressor for %s: %v", path, err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}
}

func TestOpenPGNCompressed(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "multi.pgn"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	dir := t.TempDir()
	writeCompressed(t, filepath.Join(dir, "games.pgn.zst"), data, func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w)
	})
	writeCompressed(t, filepath.Join(dir, "games.pgn.bz2"), data, func(w io.Writer) (io.WriteCloser, error) {
		return bzip2.NewWriter(w, nil)
	})
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a game"), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}

	files, err := chessbin.CollectPGN(dir)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	want := []string{filepath.Join(dir, "games.pgn.bz2"), filepath.Join(dir, "games.pgn.zst")}
	if !reflect.DeepEqual(files, want) {
		t.Fatalf("unexpected files: got %v want %v", files, want)
	}

	for _, path := range files {
		r, err := chessbin.OpenPGN(path, chessbin.EncodingAuto)
		if err != nil {
			t.Fatalf("open %s: %v", path, err)
		}
		text, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if string(text) != string(data) {
			t.Fatalf("%s: decompressed text differs from the fixture", path)
		}
		if r.BytesRead() == 0 {
			t.Fatalf("%s: no bytes counted", path)
		}
		if err := r.Close(); err != nil {
			t.Fatalf("close %s: %v", path, err)
		}
	}
}
