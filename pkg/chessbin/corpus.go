package chessbin

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
)

// DefaultTrainRatio is the share of samples routed to the train output.
const DefaultTrainRatio = 0.8

// Split names the destination of a written record.
type Split int

const (
	SplitTrain Split = iota
	SplitEval
)

func (s Split) String() string {
	if s == SplitEval {
		return "eval"
	}
	return "train"
}

// SplitStats counts what was written to one destination.
type SplitStats struct {
	Records int64
	Tokens  int64
	Bytes   int64
}

// CorpusStats holds the running counters of a Corpus.
type CorpusStats struct {
	Train SplitStats
	Eval  SplitStats
}

// Corpus routes each record to the train or eval stream by an independent
// random draw. It is not safe for concurrent use.
type Corpus struct {
	train      io.Writer
	eval       io.Writer
	trainRatio float64
	rng        *rand.Rand
	stats      CorpusStats
	closers    []io.Closer
}

// NewCorpus wraps two writers. trainRatio must lie in [0, 1].
func NewCorpus(train, eval io.Writer, trainRatio float64, seed uint64) (*Corpus, error) {
	if train == nil || eval == nil {
		return nil, errors.New("corpus: train and eval writers are required")
	}
	if trainRatio < 0 || trainRatio > 1 {
		return nil, fmt.Errorf("corpus: train ratio must be within [0, 1], got %v", trainRatio)
	}
	return &Corpus{
		train:      train,
		eval:       eval,
		trainRatio: trainRatio,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

// OpenCorpus opens both outputs in append mode so repeated runs accumulate.
func OpenCorpus(trainPath, evalPath string, trainRatio float64, seed uint64) (*Corpus, error) {
	train, err := openAppend(trainPath)
	if err != nil {
		return nil, err
	}
	eval, err := openAppend(evalPath)
	if err != nil {
		train.Close()
		return nil, err
	}
	c, err := NewCorpus(train, eval, trainRatio, seed)
	if err != nil {
		train.Close()
		eval.Close()
		return nil, err
	}
	c.closers = []io.Closer{train, eval}
	return c, nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// Write frames tokens and appends them to the destination picked for this
// sample.
func (c *Corpus) Write(windowSize int, tokens []int32) (Split, error) {
	split := SplitEval
	if c.rng.Float64() < c.trainRatio {
		split = SplitTrain
	}
	w, stats := c.eval, &c.stats.Eval
	if split == SplitTrain {
		w, stats = c.train, &c.stats.Train
	}
	if err := WriteRecord(w, windowSize, tokens); err != nil {
		return split, fmt.Errorf("write %s record: %w", split, err)
	}
	stats.Records++
	stats.Tokens += int64(len(tokens))
	stats.Bytes += FrameSize(len(tokens))
	return split, nil
}

func (c *Corpus) Stats() CorpusStats {
	return c.stats
}

// Close closes the files opened by OpenCorpus.
func (c *Corpus) Close() error {
	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
