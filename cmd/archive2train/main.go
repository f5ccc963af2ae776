// Command archive2train turns archived games into encoded training shards.
package main

import (
	"flag"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/brensch/snekcore/logging"
)

func main() {
	inDir := flag.String("in-dir", "", "Directory containing archive parquet shards")
	outDir := flag.String("out-dir", "", "Output directory for training parquet shards")
	flag.Parse()

	if _, err := logging.Setup(logging.Config{Pretty: true}); err != nil {
		log.Fatal().Err(err).Msg("logging")
	}
	if *inDir == "" || *outDir == "" {
		log.Fatal().Msg("-in-dir and -out-dir are required")
	}

	absIn, _ := filepath.Abs(*inDir)
	absOut, _ := filepath.Abs(*outDir)
	if absIn == absOut {
		log.Fatal().Msg("out-dir must be different from in-dir")
	}
	if err := os.MkdirAll(absOut, 0o755); err != nil {
		log.Fatal().Err(err).Msg("create out-dir")
	}

	inputs := findInputs(absIn)
	if len(inputs) == 0 {
		log.Fatal().Str("in_dir", absIn).Msg("no parquet inputs found")
	}

	converted, total := 0, 0
	for _, inPath := range inputs {
		base := filepath.Base(inPath)
		outPath := filepath.Join(absOut, strings.TrimSuffix(base, filepath.Ext(base))+".train.parquet")
		n, err := convertOne(inPath, outPath)
		if err != nil {
			log.Error().Err(err).Str("input", inPath).Msg("convert failed")
			continue
		}
		if n > 0 {
			converted++
			total += n
		}
	}
	if converted == 0 {
		log.Fatal().Msg("no output written (no convertible rows)")
	}
	log.Info().Int("files", converted).Int("examples", total).Msg("conversion complete")
}

// findInputs lists archive shards below dir, skipping in-flight tmp files.
func findInputs(dir string) []string {
	var inputs []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == "tmp" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), ".parquet") {
			inputs = append(inputs, path)
		}
		return nil
	})
	return inputs
}
