// bininspect reads a record file written by pgn2bin and reports its contents.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/inhies/go-bytesize"

	"chessbin/pkg/chessbin"
)

type recordStats struct {
	records     int
	tokens      int64
	minTokens   int
	maxTokens   int
	windowSizes map[int32]int
}

func (rs *recordStats) Add(rec chessbin.Record) {
	n := len(rec.Tokens)
	if rs.records == 0 || n < rs.minTokens {
		rs.minTokens = n
	}
	if n > rs.maxTokens {
		rs.maxTokens = n
	}
	rs.records++
	rs.tokens += int64(n)
	rs.windowSizes[rec.WindowSize]++
}

func main() {
	inPath := flag.String("in", "", "record file to inspect")
	limit := flag.Int("limit", 3, "number of records to print with -decode")
	decode := flag.Bool("decode", false, "print decoded symbols of the first records")
	manifestPath := flag.String("manifest", "", "optional parquet manifest to summarize")
	parallel := flag.Int64("parallel", 4, "parquet read parallelism")
	flag.Parse()

	if *inPath == "" && *manifestPath == "" {
		fatal(errors.New("specify -in and/or -manifest"))
	}
	if *inPath != "" {
		if err := inspectRecords(*inPath, *limit, *decode); err != nil {
			fatal(err)
		}
	}
	if *manifestPath != "" {
		if err := inspectManifest(*manifestPath, *parallel); err != nil {
			fatal(err)
		}
	}
}

func inspectRecords(path string, limit int, decode bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	tokenizer, err := chessbin.NewTokenizer(chessbin.DefaultVocabulary())
	if err != nil {
		return err
	}
	r := bufio.NewReader(f)
	stats := &recordStats{windowSizes: make(map[int32]int)}
	for {
		rec, err := chessbin.ReadRecord(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", stats.records, err)
		}
		if decode && stats.records < limit {
			text, err := tokenizer.Decode(rec.Tokens)
			if err != nil {
				return fmt.Errorf("record %d: %w", stats.records, err)
			}
			fmt.Printf("#%d window=%d tokens=%d\n  %s\n", stats.records, rec.WindowSize, len(rec.Tokens), text)
		}
		stats.Add(rec)
	}

	fmt.Printf("%s: %s, %d records, %d tokens\n", path, bytesize.New(float64(info.Size())), stats.records, stats.tokens)
	if stats.records == 0 {
		return nil
	}
	fmt.Printf("tokens per record: min %d, max %d, mean %.1f\n",
		stats.minTokens, stats.maxTokens, float64(stats.tokens)/float64(stats.records))
	sizes := make([]int, 0, len(stats.windowSizes))
	for ws := range stats.windowSizes {
		sizes = append(sizes, int(ws))
	}
	sort.Ints(sizes)
	for _, ws := range sizes {
		fmt.Printf("window %d: %d records\n", ws, stats.windowSizes[int32(ws)])
	}
	return nil
}

func inspectManifest(path string, parallel int64) error {
	rows, err := chessbin.ReadManifest(path, parallel)
	if err != nil {
		return err
	}
	results := make(map[string]int)
	var moves, samples, train, eval int64
	for _, row := range rows {
		results[row.Result]++
		moves += int64(row.MoveCount)
		samples += int64(row.SampleCount)
		train += int64(row.TrainSamples)
		eval += int64(row.EvalSamples)
	}
	fmt.Printf("%s: %d games, %d moves, %d samples (train %d, eval %d)\n", path, len(rows), moves, samples, train, eval)
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("result %s: %d\n", k, results[k])
	}
	return nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
