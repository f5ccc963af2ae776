package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/brensch/snekcore/eval"
	"github.com/brensch/snekcore/game"
	"github.com/brensch/snekcore/store"
)

const trainingSchema = "training_x_row_v3"

// TrainingXRow is one (position, ego snake) example. X is the encoded board
// as little-endian float32 in [XC, XH, XW] order.
type TrainingXRow struct {
	GameID string `parquet:"game_id,dict"`
	Turn   int32  `parquet:"turn"`
	EgoID  string `parquet:"ego_id,dict"`

	X []byte `parquet:"x"`

	Policy int32 `parquet:"policy"`
	// One column per direction; some readers struggle with LIST<FLOAT>.
	PolicyP0 float32 `parquet:"policy_p0"`
	PolicyP1 float32 `parquet:"policy_p1"`
	PolicyP2 float32 `parquet:"policy_p2"`
	PolicyP3 float32 `parquet:"policy_p3"`
	Value    float32 `parquet:"value"`

	XC int32 `parquet:"x_c"`
	XH int32 `parquet:"x_h"`
	XW int32 `parquet:"x_w"`

	Source string `parquet:"source,dict"`
}

// examples expands one archive row into an example per snake with a
// recorded move. Boards other than 11x11 do not fit the encoder.
func examples(row *store.ArchiveTurnRow) []TrainingXRow {
	if row.Width != eval.Width || row.Height != eval.Height {
		return nil
	}
	b := row.Board()

	var out []TrainingXRow
	for _, ego := range row.Snakes {
		if !ego.Alive || ego.Policy < 0 || int(ego.Policy) >= len(game.Directions) {
			continue
		}
		x := encodeBytes(&game.Game{Board: b, YouID: ego.ID})

		var probs [4]float32
		probs[ego.Policy] = 1
		out = append(out, TrainingXRow{
			GameID:   row.GameID,
			Turn:     row.Turn,
			EgoID:    ego.ID,
			X:        x,
			Policy:   ego.Policy,
			PolicyP0: probs[0],
			PolicyP1: probs[1],
			PolicyP2: probs[2],
			PolicyP3: probs[3],
			Value:    ego.Value,
			XC:       eval.Channels,
			XH:       eval.Height,
			XW:       eval.Width,
			Source:   row.Source,
		})
	}
	return out
}

func encodeBytes(g *game.Game) []byte {
	ptr := eval.Encode(g)
	defer eval.PutBuffer(ptr)
	x := make([]byte, len(*ptr)*4)
	for i, v := range *ptr {
		binary.LittleEndian.PutUint32(x[i*4:], math.Float32bits(v))
	}
	return x
}

// convertOne streams inPath into a training shard at outPath. No file is
// left behind when nothing converts.
func convertOne(inPath, outPath string) (int, error) {
	inF, err := os.Open(inPath)
	if err != nil {
		return 0, err
	}
	defer inF.Close()

	reader := parquet.NewGenericReader[store.ArchiveTurnRow](inF)
	defer reader.Close()

	outTmp := outPath + ".tmp"
	_ = os.Remove(outTmp)
	outF, err := os.OpenFile(outTmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	writer := parquet.NewGenericWriter[TrainingXRow](outF,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", trainingSchema),
	)

	n, err := copyRows(reader, writer)
	closeErr := writer.Close()
	_ = outF.Sync()
	fileErr := outF.Close()
	if err == nil {
		err = errors.Join(closeErr, fileErr)
	}
	if err != nil || n == 0 {
		_ = os.Remove(outTmp)
		return 0, err
	}
	if err := os.Rename(outTmp, outPath); err != nil {
		_ = os.Remove(outTmp)
		return 0, err
	}
	return n, nil
}

func copyRows(reader *parquet.GenericReader[store.ArchiveTurnRow], writer *parquet.GenericWriter[TrainingXRow]) (int, error) {
	buf := make([]store.ArchiveTurnRow, 256)
	outBuf := make([]TrainingXRow, 0, 2048)
	written := 0

	flush := func() error {
		if len(outBuf) == 0 {
			return nil
		}
		if _, err := writer.Write(outBuf); err != nil {
			return fmt.Errorf("write training rows: %w", err)
		}
		written += len(outBuf)
		outBuf = outBuf[:0]
		return nil
	}

	for {
		n, err := reader.Read(buf)
		for i := 0; i < n; i++ {
			outBuf = append(outBuf, examples(&buf[i])...)
			if len(outBuf) >= 2048 {
				if err := flush(); err != nil {
					return written, err
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return written, fmt.Errorf("read archive rows: %w", err)
		}
	}
	return written, flush()
}
