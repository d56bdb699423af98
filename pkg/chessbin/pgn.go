package chessbin

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
	"github.com/notnil/chess"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Input encodings accepted by OpenPGN.
const (
	EncodingAuto        = "auto"
	EncodingUTF8        = "utf-8"
	EncodingWindows1252 = "windows-1252"
	EncodingLatin1      = "iso-8859-1"
)

const sniffSize = 64 * 1024

var pgnExts = []string{".pgn", ".pgn.bz2", ".pgn.zst"}

func isPGNPath(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range pgnExts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// CollectPGN returns root itself when it is a file, or every PGN file under
// it in lexical order.
func CollectPGN(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}
	var files []string
	if err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if isPGNPath(path) {
			files = append(files, path)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// PGNReader is a decoded PGN text stream over a possibly compressed file.
type PGNReader struct {
	io.Reader
	raw     *countingReader
	closers []func() error
}

// BytesRead reports how many bytes of the underlying file were consumed.
func (r *PGNReader) BytesRead() int64 {
	return r.raw.n.Load()
}

func (r *PGNReader) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// OpenPGN opens a .pgn, .pgn.bz2 or .pgn.zst file and decodes its text to
// UTF-8 according to encoding.
func OpenPGN(path, encoding string) (*PGNReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	raw := &countingReader{r: f}
	pr := &PGNReader{raw: raw, closers: []func() error{f.Close}}

	var src io.Reader = raw
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".zst"):
		dec, err := zstd.NewReader(raw)
		if err != nil {
			pr.Close()
			return nil, fmt.Errorf("open zstd %s: %w", path, err)
		}
		pr.closers = append(pr.closers, func() error {
			dec.Close()
			return nil
		})
		src = dec
	case strings.HasSuffix(lower, ".bz2"):
		dec, err := bzip2.NewReader(raw, nil)
		if err != nil {
			pr.Close()
			return nil, fmt.Errorf("open bzip2 %s: %w", path, err)
		}
		pr.closers = append(pr.closers, dec.Close)
		src = dec
	}

	text, err := decodeText(src, encoding)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	pr.Reader = text
	return pr, nil
}

func decodeText(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(encoding) {
	case EncodingUTF8:
		return stripBOM(bufio.NewReader(r)), nil
	case EncodingWindows1252:
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	case EncodingLatin1:
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "", EncodingAuto:
		br := stripBOM(bufio.NewReaderSize(r, sniffSize))
		head, _ := br.Peek(sniffSize)
		if utf8.Valid(trimPartialRune(head)) {
			return br, nil
		}
		return transform.NewReader(br, charmap.Windows1252.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}

func stripBOM(br *bufio.Reader) *bufio.Reader {
	if head, err := br.Peek(3); err == nil && bytes.Equal(head, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	return br
}

// trimPartialRune drops an incomplete UTF-8 sequence cut off at the end of b.
func trimPartialRune(b []byte) []byte {
	for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
		if utf8.RuneStart(b[len(b)-i]) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			break
		}
	}
	return b
}

// SplitGames cuts a PGN stream into per-game texts. A tag line that follows
// move text starts a new game.
func SplitGames(r io.Reader, fn func(text string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var b strings.Builder
	seenMoves := false
	flush := func() error {
		text := strings.TrimSpace(b.String())
		b.Reset()
		seenMoves = false
		if text == "" {
			return nil
		}
		return fn(text)
	}
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trim := strings.TrimSpace(line)
		if strings.HasPrefix(trim, "[") && seenMoves {
			if err := flush(); err != nil {
				return err
			}
		}
		if trim != "" && !strings.HasPrefix(trim, "[") {
			seenMoves = true
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return flush()
}

// ParseGame decodes one game's PGN text into UCI moves, tags, outcome and a
// board cursor at the starting position.
func ParseGame(id, text string) (Game, error) {
	opt, err := chess.PGN(strings.NewReader(text))
	if err != nil {
		return Game{}, fmt.Errorf("%w: %s: %v", ErrMalformedGame, id, err)
	}
	game := chess.NewGame(opt)
	positions := game.Positions()
	moves := game.Moves()
	if len(positions) != len(moves)+1 {
		return Game{}, fmt.Errorf("%w: %s: %d positions for %d moves", ErrMalformedGame, id, len(positions), len(moves))
	}
	uci := make([]string, len(moves))
	for i, move := range moves {
		uci[i] = chess.UCINotation{}.Encode(positions[i], move)
	}
	tags := make(map[string]string)
	for _, pair := range game.TagPairs() {
		tags[pair.Key] = pair.Value
	}
	outcome := tags["Result"]
	if outcome == "" {
		outcome = string(game.Outcome())
	}
	return Game{
		ID:      id,
		Tags:    tags,
		Moves:   uci,
		Outcome: outcome,
		Board:   &chessBoard{pos: positions[0]},
	}, nil
}

// chessBoard advances a notnil/chess position one UCI move at a time.
type chessBoard struct {
	pos *chess.Position
}

func (b *chessBoard) Play(move string) error {
	m, err := chess.UCINotation{}.Decode(b.pos, move)
	if err != nil {
		return err
	}
	b.pos = b.pos.Update(m)
	return nil
}

func (b *chessBoard) FEN() string {
	return b.pos.String()
}

// GameText is one undecoded game with its identifier.
type GameText struct {
	ID   string
	Text string
}

// ReadGames streams every game of the file at path to fn. Game IDs are the
// file base name followed by the game ordinal.
func ReadGames(path, encoding string, fn func(GameText) error) error {
	r, err := OpenPGN(path, encoding)
	if err != nil {
		return err
	}
	defer r.Close()
	return ScanGames(r, filepath.Base(path), fn)
}

// ScanGames splits r into games named after name.
func ScanGames(r io.Reader, name string, fn func(GameText) error) error {
	n := 0
	return SplitGames(r, func(text string) error {
		n++
		return fn(GameText{ID: fmt.Sprintf("%s#%d", name, n), Text: text})
	})
}
