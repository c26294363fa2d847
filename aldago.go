// Package aldago implements the Alda music notation pipeline: scanning
// source text to tokens, parsing tokens to an AST, lowering the AST to a
// timed MIDI event sequence, and serializing that sequence to (and reading
// it back from) Standard MIDI File bytes.
package aldago

import (
	"github.com/go-alda/aldago/internal/ast"
	"github.com/go-alda/aldago/internal/midi"
	"github.com/go-alda/aldago/internal/parser"
	"github.com/go-alda/aldago/internal/scanner"
	"github.com/go-alda/aldago/internal/smf"
	"github.com/go-alda/aldago/internal/token"
)

// Scan turns source into a token stream. filename is attached to every
// token's position for diagnostic reporting and need not refer to a real
// file on disk.
func Scan(source, filename string) ([]token.Token, error) {
	return scanner.Scan(source, filename)
}

// Parse scans and parses source into an AST in one call.
func Parse(source, filename string) (*ast.Root, error) {
	return parser.Parse(source, filename)
}

// GenerateOptions configures the initial generator state before any
// in-source attribute form overrides it.
type GenerateOptions struct {
	BPM             float64
	TicksPerQuarter int
	DefaultDenom    int
	DefaultOctave   int
}

func (o GenerateOptions) toDefaults() midi.Defaults {
	d := midi.DefaultDefaults()
	if o.BPM > 0 {
		d.BPM = o.BPM
	}
	if o.TicksPerQuarter > 0 {
		d.TicksPerQuarter = o.TicksPerQuarter
	}
	if o.DefaultDenom > 0 {
		d.DefaultDenom = o.DefaultDenom
	}
	if o.DefaultOctave != 0 {
		d.DefaultOctave = o.DefaultOctave
	}
	return d
}

// Generate lowers root into a timed MIDI event sequence.
func Generate(root *ast.Root, opts GenerateOptions) (*midi.Sequence, error) {
	return midi.Generate(root, opts.toDefaults())
}

// WriteSMF serializes seq as a format-1 Standard MIDI File.
func WriteSMF(seq *midi.Sequence, ticksPerQuarter int) ([]byte, error) {
	return smf.Write(seq, ticksPerQuarter)
}

// ReadSMF decodes SMF bytes back into a timed event sequence and the tempo
// map recovered from its tempo track.
func ReadSMF(data []byte) (*midi.Sequence, *smf.TempoMap, error) {
	return smf.Read(data)
}

// ToASTOptions configures the MIDI-to-AST reverse lowering.
type ToASTOptions struct {
	// QuantizeGrid is a beat-grid size for rounding note onsets/durations
	// (0.25 = sixteenth notes). Zero selects the 0.25 default; a negative
	// value disables quantization.
	QuantizeGrid float64
	// DefaultBPM is used when seq carries no tempo changes.
	DefaultBPM float64
}

// ToAST reverse-lowers seq into an AST, synthesizing one part per channel.
func ToAST(seq *midi.Sequence, opts ToASTOptions) (*ast.Root, error) {
	grid := opts.QuantizeGrid
	if grid == 0 {
		grid = 0.25
	}
	bpm := opts.DefaultBPM
	if bpm == 0 {
		bpm = 120
	}
	return midi.ToAST(seq, grid, bpm), nil
}
