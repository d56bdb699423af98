package chessbin

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// ManifestRow describes one game written to the corpus.
type ManifestRow struct {
	GameID       string `parquet:"name=game_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	White        string `parquet:"name=white, type=BYTE_ARRAY, convertedtype=UTF8"`
	Black        string `parquet:"name=black, type=BYTE_ARRAY, convertedtype=UTF8"`
	WhiteElo     int32  `parquet:"name=white_elo, type=INT32"`
	BlackElo     int32  `parquet:"name=black_elo, type=INT32"`
	Result       string `parquet:"name=result, type=BYTE_ARRAY, convertedtype=UTF8"`
	MoveCount    int32  `parquet:"name=move_count, type=INT32"`
	SampleCount  int32  `parquet:"name=sample_count, type=INT32"`
	TrainSamples int32  `parquet:"name=train_samples, type=INT32"`
	EvalSamples  int32  `parquet:"name=eval_samples, type=INT32"`
	TokenCount   int64  `parquet:"name=token_count, type=INT64"`
}

// NewManifestRow fills the game columns of a row from g's tags.
func NewManifestRow(g Game) ManifestRow {
	return ManifestRow{
		GameID:    g.ID,
		White:     g.Tags["White"],
		Black:     g.Tags["Black"],
		WhiteElo:  parseInt32(g.Tags["WhiteElo"]),
		BlackElo:  parseInt32(g.Tags["BlackElo"]),
		Result:    g.Outcome,
		MoveCount: int32(len(g.Moves)),
	}
}

func parseInt32(raw string) int32 {
	var value int
	_, _ = fmt.Sscanf(strings.TrimSpace(raw), "%d", &value)
	return int32(value)
}

// WriteManifest drains rows into a snappy-compressed parquet file at path.
func WriteManifest(path string, rows <-chan ManifestRow, parallel int64) error {
	fileWriter, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("manifest %s: %w", path, err)
	}
	defer fileWriter.Close()

	parquetWriter, err := writer.NewParquetWriter(fileWriter, new(ManifestRow), parallel)
	if err != nil {
		return err
	}
	parquetWriter.CompressionType = parquet.CompressionCodec_SNAPPY

	for row := range rows {
		if err := parquetWriter.Write(row); err != nil {
			return err
		}
	}
	if err := parquetWriter.WriteStop(); err != nil {
		return err
	}
	return fileWriter.Close()
}

// ReadManifest loads every row of a manifest file.
func ReadManifest(path string, parallel int64) ([]ManifestRow, error) {
	absPath := path
	if !filepath.IsAbs(path) {
		if resolved, err := filepath.Abs(path); err == nil {
			absPath = resolved
		}
	}
	fileReader, err := local.NewLocalFileReader(absPath)
	if err != nil {
		return nil, err
	}
	defer fileReader.Close()

	parquetReader, err := reader.NewParquetReader(fileReader, new(ManifestRow), parallel)
	if err != nil {
		return nil, err
	}
	defer parquetReader.ReadStop()

	num := int(parquetReader.GetNumRows())
	rows := make([]ManifestRow, 0, num)
	batchSize := 1024
	for offset := 0; offset < num; offset += batchSize {
		if remain := num - offset; remain < batchSize {
			batchSize = remain
		}
		batch := make([]ManifestRow, batchSize)
		if err := parquetReader.Read(&batch); err != nil {
			return nil, err
		}
		rows = append(rows, batch...)
	}
	return rows, nil
}
