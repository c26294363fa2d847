package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-alda/aldago"
)

// logger is the package-wide structured logger. initLogger wires it (and
// the stdlib log package) to a handler matching -debug.
var logger = slog.Default()

func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

func main() {
	var (
		inPath  = flag.String("in", "", "path to an Alda source file")
		outPath = flag.String("out", "out.mid", "output SMF path")
		bpm     = flag.Float64("bpm", 120, "default tempo in BPM")
		tpq     = flag.Int("tpq", 480, "ticks per quarter note")
		debug   = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()
	initLogger(*debug)

	if *inPath == "" {
		logger.Error("missing required -in flag")
		os.Exit(1)
	}

	source, err := os.ReadFile(*inPath)
	if err != nil {
		logger.Error("reading source file", "path", *inPath, "error", err)
		os.Exit(1)
	}

	root, err := aldago.Parse(string(source), *inPath)
	if err != nil {
		logger.Error("parse failed", "error", err)
		os.Exit(1)
	}
	logger.Debug("parsed source", "top-level nodes", len(root.Children))

	seq, err := aldago.Generate(root, aldago.GenerateOptions{BPM: *bpm, TicksPerQuarter: *tpq})
	if err != nil {
		logger.Error("generation failed", "error", err)
		os.Exit(1)
	}
	logger.Info("generated sequence", "notes", len(seq.Notes), "tempoChanges", len(seq.TempoChanges))

	data, err := aldago.WriteSMF(seq, *tpq)
	if err != nil {
		logger.Error("SMF write failed", "error", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*outPath, data, 0o644); err != nil {
		logger.Error("writing output file", "path", *outPath, "error", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %d bytes to %s\n", len(data), *outPath)
}
