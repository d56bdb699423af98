// pgn2bin reads PGN games and appends their tokenized training windows to
// train/eval record files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/inhies/go-bytesize"

	"chessbin/pkg/chessbin"
)

type gameResult struct {
	id      string
	game    chessbin.Game
	samples [][]int32
	err     error
}

type options struct {
	pgnPath      string
	trainPath    string
	evalPath     string
	manifestPath string
	configPath   string
	workers      int
	window       int
	ratio        float64
	seed         uint64
	encoding     string
	strict       bool
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stopCh)
	go func() {
		select {
		case <-stopCh:
			fmt.Fprintln(os.Stderr, "stop requested, finishing games in flight")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := run(ctx, opts, os.Stderr); err != nil {
		fatal(err)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("pgn2bin", flag.ContinueOnError)
	fs.StringVar(&opts.pgnPath, "pgn", "", "input PGN file or directory (.pgn, .pgn.bz2, .pgn.zst)")
	fs.StringVar(&opts.trainPath, "train", "train.bin", "train output file (appended)")
	fs.StringVar(&opts.evalPath, "eval", "eval.bin", "eval output file (appended)")
	fs.StringVar(&opts.manifestPath, "manifest", "", "optional parquet manifest of written games")
	fs.StringVar(&opts.configPath, "config", "", "path to config.json (default: search upward from cwd)")
	fs.IntVar(&opts.workers, "workers", 0, "number of parallel workers (0=config)")
	fs.IntVar(&opts.window, "window", 0, "window size (0=config)")
	fs.Float64Var(&opts.ratio, "ratio", -1, "train split probability (<0=config)")
	fs.Uint64Var(&opts.seed, "seed", 0, "random seed for the split (0=config or time)")
	fs.StringVar(&opts.encoding, "encoding", "", "input encoding: auto, utf-8, windows-1252, iso-8859-1")
	fs.BoolVar(&opts.strict, "strict", false, "abort on the first malformed game instead of skipping it")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.pgnPath == "" {
		return options{}, errors.New("-pgn is required")
	}
	return opts, nil
}

func resolveConfig(opts options) (chessbin.Config, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return chessbin.Config{}, err
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if opts.window > 0 {
		cfg.WindowSize = opts.window
	}
	if opts.ratio >= 0 {
		cfg.TrainRatio = opts.ratio
	}
	if opts.seed != 0 {
		cfg.Seed = opts.seed
	}
	if opts.encoding != "" {
		cfg.Encoding = opts.encoding
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}
	return cfg, cfg.Validate()
}

// run converts every game under opts.pgnPath and reports progress to logw.
// Cancelling ctx stops reading input; games already decoded are still written.
func run(ctx context.Context, opts options, logw io.Writer) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	files, err := chessbin.CollectPGN(opts.pgnPath)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no PGN files found in %s", opts.pgnPath)
	}

	tokenizer, err := chessbin.NewTokenizer(chessbin.DefaultVocabulary())
	if err != nil {
		return err
	}
	corpus, err := chessbin.OpenCorpus(opts.trainPath, opts.evalPath, cfg.TrainRatio, cfg.Seed)
	if err != nil {
		return err
	}
	defer corpus.Close()

	fmt.Fprintf(logw, "files: %d, workers: %d, window: %d, train ratio: %.2f\n",
		len(files), cfg.Workers, cfg.WindowSize, cfg.TrainRatio)
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var readBytes atomic.Int64
	jobs := make(chan chessbin.GameText, cfg.Workers*4)
	feedErr := make(chan error, 1)
	go func() {
		defer close(jobs)
		feedErr <- feedGames(ctx, files, cfg.Encoding, jobs, &readBytes)
	}()

	results := make(chan gameResult, cfg.Workers*4)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results <- processGame(tokenizer, job, cfg.WindowSize)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()
	// On an early return the feeder is cancelled and the workers drain out.
	defer func() {
		cancel()
		for range results {
		}
	}()

	manifest, err := startManifest(opts.manifestPath, cfg.Workers)
	if err != nil {
		return err
	}
	defer manifest.abort()

	var games, skipped, samples int
	for res := range results {
		if res.err != nil {
			if opts.strict {
				return res.err
			}
			skipped++
			fmt.Fprintf(logw, "skip %s: %v\n", res.id, res.err)
			continue
		}
		row := chessbin.NewManifestRow(res.game)
		for _, tokens := range res.samples {
			if samples == 0 {
				fmt.Fprintf(logw, "sample tokens length: %d\n", len(tokens))
			}
			split, err := corpus.Write(cfg.WindowSize, tokens)
			if err != nil {
				return err
			}
			if split == chessbin.SplitTrain {
				row.TrainSamples++
			} else {
				row.EvalSamples++
			}
			row.TokenCount += int64(len(tokens))
			samples++
		}
		row.SampleCount = int32(len(res.samples))
		if err := manifest.add(row); err != nil {
			return err
		}
		games++
		if games%cfg.LogEvery == 0 {
			fmt.Fprintf(logw, "  games %d (skipped %d), samples %d, read %s\n",
				games, skipped, samples, bytesize.New(float64(readBytes.Load())))
		}
	}
	if err := <-feedErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if err := manifest.finish(); err != nil {
		return err
	}
	if err := corpus.Close(); err != nil {
		return err
	}

	stats := corpus.Stats()
	fmt.Fprintf(logw, "games %d (skipped %d), samples %d, read %s in %v\n",
		games, skipped, samples, bytesize.New(float64(readBytes.Load())), time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(logw, "total tokens persisted to %s: %d (%d records, %s)\n",
		opts.trainPath, stats.Train.Tokens, stats.Train.Records, bytesize.New(float64(stats.Train.Bytes)))
	fmt.Fprintf(logw, "total tokens persisted to %s: %d (%d records, %s)\n",
		opts.evalPath, stats.Eval.Tokens, stats.Eval.Records, bytesize.New(float64(stats.Eval.Bytes)))
	return nil
}

// manifestSink feeds rows to a WriteManifest goroutine. A nil sink ignores
// rows.
type manifestSink struct {
	rows   chan chessbin.ManifestRow
	errCh  chan error
	closed bool
}

func startManifest(path string, workers int) (*manifestSink, error) {
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	m := &manifestSink{
		rows:  make(chan chessbin.ManifestRow, workers),
		errCh: make(chan error, 1),
	}
	go func() {
		m.errCh <- chessbin.WriteManifest(path, m.rows, int64(workers))
	}()
	return m, nil
}

// add hands row to the writer, or returns the writer's error if it already
// stopped.
func (m *manifestSink) add(row chessbin.ManifestRow) error {
	if m == nil {
		return nil
	}
	select {
	case m.rows <- row:
		return nil
	case err := <-m.errCh:
		m.close()
		if err == nil {
			err = errors.New("manifest writer stopped early")
		}
		return err
	}
}

func (m *manifestSink) finish() error {
	if m == nil {
		return nil
	}
	m.close()
	return <-m.errCh
}

func (m *manifestSink) abort() {
	if m != nil {
		m.close()
	}
}

func (m *manifestSink) close() {
	if !m.closed {
		close(m.rows)
		m.closed = true
	}
}

func loadConfig(path string) (chessbin.Config, error) {
	if path != "" {
		return chessbin.LoadConfig(path)
	}
	found, err := chessbin.FindConfigPath(".")
	if err != nil {
		return chessbin.DefaultConfig(), nil
	}
	return chessbin.LoadConfig(found)
}

// feedGames streams every game of every file into jobs until ctx is done.
func feedGames(ctx context.Context, files []string, encoding string, jobs chan<- chessbin.GameText, readBytes *atomic.Int64) error {
	var done int64
	for _, path := range files {
		r, err := chessbin.OpenPGN(path, encoding)
		if err != nil {
			return err
		}
		err = chessbin.ScanGames(r, filepath.Base(path), func(game chessbin.GameText) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case jobs <- game:
			}
			readBytes.Store(done + r.BytesRead())
			return nil
		})
		done += r.BytesRead()
		readBytes.Store(done)
		if closeErr := r.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func processGame(tokenizer *chessbin.Tokenizer, job chessbin.GameText, windowSize int) gameResult {
	game, err := chessbin.ParseGame(job.ID, job.Text)
	if err != nil {
		return gameResult{id: job.ID, err: err}
	}
	samples, err := chessbin.EncodeGame(tokenizer, game, windowSize)
	if err != nil {
		return gameResult{id: job.ID, err: err}
	}
	return gameResult{id: job.ID, game: game, samples: samples}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
