package midi

import (
	"fmt"
	"strings"

	"github.com/go-alda/aldago/internal/ast"
	"github.com/go-alda/aldago/internal/diag"
	"github.com/go-alda/aldago/internal/token"
)

// Defaults configures the initial generator state (spec §4.3's
// "defaults" parameter to generate).
type Defaults struct {
	BPM             float64
	TicksPerQuarter int
	DefaultDenom    int
	DefaultOctave   int
}

func DefaultDefaults() Defaults {
	return Defaults{BPM: 120, TicksPerQuarter: 480, DefaultDenom: 4, DefaultOctave: 4}
}

// partState is the per-part generator state described in spec §3.
// defaultDuration is kept in beats (quarter note = 1.0), matching how a
// cram's per-event share is most naturally expressed — a denom/dots pair
// cannot represent an arbitrary 1/N fraction of an outer duration.
type partState struct {
	octave          int
	quant           float64 // 0.0-1.0
	volume          int     // 0-127
	pan             int
	program         int
	channel         int
	percussion      bool
	currentTime     float64
	defaultDuration float64 // beats
	tempo           float64
	keySignature    map[byte]int // letter -> semitone adjustment
	transpose       int
}

func newPartState(d Defaults) *partState {
	return &partState{
		octave:          d.DefaultOctave,
		quant:           0.9,
		volume:          80,
		program:         0,
		defaultDuration: 4.0 / float64(d.DefaultDenom),
		tempo:           d.BPM,
		keySignature:    map[byte]int{},
	}
}

// Generator performs the stateful single-pass AST-to-MIDI lowering.
type Generator struct {
	defaults Defaults
	seq      *Sequence

	globalTempo float64
	variables   map[string][]ast.Node
	markers     map[string]float64
	parts       map[string]*partState
	currentPart string
	nextChannel int
	repNumber   int
}

// Generate lowers root into a timed event sequence using defaults for the
// initial tempo, resolution, default note length and octave.
func Generate(root *ast.Root, defaults Defaults) (*Sequence, error) {
	g := &Generator{
		defaults:    defaults,
		seq:         &Sequence{},
		globalTempo: defaults.BPM,
		variables:   map[string][]ast.Node{},
		markers:     map[string]float64{},
		parts:       map[string]*partState{},
		repNumber:   1,
	}

	g.seq.TempoChanges = append(g.seq.TempoChanges, TempoChange{BPM: g.globalTempo, Time: 0})

	for _, child := range root.Children {
		if err := g.processNode(child); err != nil {
			return nil, err
		}
	}

	g.seq.Sort()
	return g.seq, nil
}

func (g *Generator) errf(pos token.Pos, format string, args ...interface{}) error {
	return diag.New(diag.Semantic, fmt.Sprintf(format, args...), diag.Pos{
		Filename: pos.Filename, Line: pos.Line, Column: pos.Column,
	}, "")
}

func (g *Generator) part() *partState {
	if g.currentPart == "" {
		g.currentPart = "_default"
		p := newPartState(g.defaults)
		p.channel = g.allocateChannel(false)
		g.parts[g.currentPart] = p
	}
	return g.parts[g.currentPart]
}

// allocateChannel assigns channels in declaration order, skipping channel 9
// (0-based; MIDI channel 10) unless the part is percussion, wrapping at 16.
func (g *Generator) allocateChannel(percussion bool) int {
	if percussion {
		return 9
	}
	ch := g.nextChannel
	if ch == 9 {
		ch++
	}
	g.nextChannel = (ch + 1) % 16
	return ch % 16
}

func (g *Generator) processNode(node ast.Node) error {
	switch n := node.(type) {
	case *ast.PartDecl:
		return g.processPartDecl(n)
	case *ast.EventSeq:
		return g.processEventSeq(n.Events)
	case *ast.Note:
		_, err := g.processNote(n, false)
		return err
	case *ast.Rest:
		return g.processRest(n)
	case *ast.Chord:
		return g.processChord(n)
	case *ast.OctaveSet:
		g.part().octave = n.Octave
		return g.checkOctave(n.Pos(), n.Octave)
	case *ast.OctaveUp:
		p := g.part()
		p.octave++
		return g.checkOctave(n.Pos(), p.octave)
	case *ast.OctaveDown:
		p := g.part()
		p.octave--
		return g.checkOctave(n.Pos(), p.octave)
	case *ast.Barline:
		return nil
	case *ast.LispList:
		return g.processLispList(n)
	case *ast.VarDef:
		g.variables[n.Name] = n.Events
		return nil
	case *ast.VarRef:
		events, ok := g.variables[n.Name]
		if !ok {
			return g.errf(n.Pos(), "undefined variable %q", n.Name)
		}
		return g.processEventSeq(events)
	case *ast.Marker:
		g.markers[n.Name] = g.part().currentTime
		return nil
	case *ast.AtMarker:
		t, ok := g.markers[n.Name]
		if !ok {
			return g.errf(n.Pos(), "undefined marker %q", n.Name)
		}
		g.part().currentTime = t
		return nil
	case *ast.VoiceGroup:
		return g.processVoiceGroup(n)
	case *ast.Cram:
		return g.processCram(n)
	case *ast.BracketSeq:
		return g.processEventSeq(n.Events)
	case *ast.Repeat:
		return g.processRepeat(n)
	case *ast.OnReps:
		return g.processOnReps(n)
	}
	return nil
}

func (g *Generator) checkOctave(pos token.Pos, octave int) error {
	if octave < 0 || octave > 10 {
		return g.errf(pos, "octave %d out of range 0-10", octave)
	}
	return nil
}

func (g *Generator) processPartDecl(n *ast.PartDecl) error {
	partName := n.Alias
	if partName == "" && len(n.Names) > 0 {
		partName = n.Names[0]
	}

	if _, exists := g.parts[partName]; !exists {
		if len(n.Names) > 0 && !knownInstrument(n.Names) {
			return g.errf(n.Pos(), "unknown instrument %q", n.Names[0])
		}
		program, percussion := ProgramForName(n.Names)

		p := newPartState(g.defaults)
		p.program = program
		p.percussion = percussion
		p.channel = g.allocateChannel(percussion)
		p.tempo = g.globalTempo
		g.parts[partName] = p

		g.seq.ProgramChanges = append(g.seq.ProgramChanges, ProgramChange{
			Program: program, Time: 0, Channel: p.channel,
		})
	}

	g.currentPart = partName
	return nil
}

func knownInstrument(names []string) bool {
	for _, name := range names {
		normalized := strings.ToLower(strings.ReplaceAll(name, "_", "-"))
		if _, ok := instrumentPrograms[normalized]; ok || percussionNames[normalized] {
			return true
		}
	}
	return false
}

func (g *Generator) processEventSeq(events []ast.Node) error {
	for _, e := range events {
		if err := g.processNode(e); err != nil {
			return err
		}
	}
	return nil
}

// noteToMIDI maps a letter + octave + accidentals/key-signature/transpose to
// a MIDI pitch number, C4 = 60.
func (g *Generator) noteToMIDI(letter byte, accidentals string, p *partState) int {
	offsets := map[byte]int{'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11}
	base := (p.octave+1)*12 + offsets[letter]

	sawNatural := strings.ContainsRune(accidentals, '_')
	adjust := 0
	if !sawNatural {
		adjust = p.keySignature[letter]
	}
	for i := 0; i < len(accidentals); i++ {
		switch accidentals[i] {
		case '+':
			adjust++
		case '-':
			adjust--
		}
	}

	return base + adjust + p.transpose
}

// dotMultiplier returns (2 - 2^-dots), the augmentation factor for a run of
// trailing dots (dots=0 -> 1).
func dotMultiplier(dots int) float64 {
	factor := 1.0
	half := 1.0
	for i := 0; i < dots; i++ {
		half /= 2
		factor += half
	}
	return factor
}

func (g *Generator) calculateDurationBeats(dur *ast.Duration, p *partState) float64 {
	if dur == nil {
		return p.defaultDuration
	}

	var beats float64
	for _, c := range dur.Components {
		switch comp := c.(type) {
		case *ast.NoteLength:
			beats += (4.0 / float64(comp.Denominator)) * dotMultiplier(comp.Dots)
		case *ast.NoteLengthMs:
			beats += (float64(comp.Ms) / 1000.0) * (p.tempo / 60.0)
		case *ast.NoteLengthS:
			beats += comp.Seconds * (p.tempo / 60.0)
		}
	}
	return beats
}

func beatsToSeconds(beats, tempo float64) float64 {
	return beats * 60.0 / tempo
}

func (g *Generator) processNote(n *ast.Note, isChord bool) (float64, error) {
	p := g.part()

	pitch := g.noteToMIDI(n.Letter, n.Accidentals, p)
	if pitch < 0 || pitch > 127 {
		return 0, g.errf(n.Pos(), "pitch %d outside 0-127", pitch)
	}

	beats := g.calculateDurationBeats(n.Duration, p)
	durSecs := beatsToSeconds(beats, p.tempo)

	actual := durSecs * p.quant
	if n.Slurred {
		actual = durSecs
	}

	g.seq.Notes = append(g.seq.Notes, Note{
		Pitch: pitch, Velocity: p.volume, StartTime: p.currentTime,
		Duration: actual, Channel: p.channel,
	})

	if n.Duration != nil {
		p.defaultDuration = beats
	}

	if !isChord {
		p.currentTime += durSecs
	}
	return durSecs, nil
}

func (g *Generator) processRest(n *ast.Rest) error {
	p := g.part()
	beats := g.calculateDurationBeats(n.Duration, p)
	durSecs := beatsToSeconds(beats, p.tempo)
	if n.Duration != nil {
		p.defaultDuration = beats
	}
	p.currentTime += durSecs
	return nil
}

func (g *Generator) processChord(n *ast.Chord) error {
	p := g.part()
	start := p.currentTime
	maxDur := 0.0

	for _, item := range n.Notes {
		switch note := item.(type) {
		case *ast.Note:
			d, err := g.processNote(note, true)
			if err != nil {
				return err
			}
			if d > maxDur {
				maxDur = d
			}
		case *ast.Rest:
			beats := g.calculateDurationBeats(note.Duration, p)
			d := beatsToSeconds(beats, p.tempo)
			if d > maxDur {
				maxDur = d
			}
		}
	}

	p.currentTime = start + maxDur
	return nil
}

func (g *Generator) processLispList(n *ast.LispList) error {
	if len(n.Elements) == 0 {
		return nil
	}
	sym, ok := n.Elements[0].(*ast.LispSymbol)
	if !ok {
		return nil
	}
	funcName := strings.ToLower(sym.Name)
	args := n.Elements[1:]
	p := g.part()

	firstNumberArg := func() (float64, bool) {
		if len(args) == 0 {
			return 0, false
		}
		if num, ok := args[0].(*ast.LispNumber); ok {
			return num.Value, true
		}
		return 0, false
	}

	switch funcName {
	case "tempo", "tempo!":
		v, ok := firstNumberArg()
		if !ok {
			return nil
		}
		if funcName == "tempo!" {
			g.globalTempo = v
			for _, other := range g.parts {
				other.tempo = v
			}
		} else {
			p.tempo = v
		}
		g.seq.TempoChanges = append(g.seq.TempoChanges, TempoChange{BPM: v, Time: p.currentTime})
	case "vol", "volume", "vol!", "volume!":
		if v, ok := firstNumberArg(); ok {
			p.volume = clamp(int(v*127/100), 0, 127)
		}
	case "quant", "quantize", "quantization":
		if v, ok := firstNumberArg(); ok {
			p.quant = clampF(v/100.0, 0, 1)
		}
	case "panning":
		if v, ok := firstNumberArg(); ok {
			pan := clamp(int(v*127/100), 0, 127)
			p.pan = pan
			g.seq.ControlChanges = append(g.seq.ControlChanges, ControlChange{
				Controller: 10, Value: pan, Time: p.currentTime, Channel: p.channel,
			})
		}
	case "octave", "octave!":
		if v, ok := firstNumberArg(); ok {
			p.octave = int(v)
			if err := g.checkOctave(n.Pos(), p.octave); err != nil {
				return err
			}
		}
	case "transpose":
		if v, ok := firstNumberArg(); ok {
			p.transpose = int(v)
		}
	default:
		if v, ok := dynamicsTable[funcName]; ok {
			p.volume = v
		} else {
			return g.errf(n.Pos(), "unknown attribute %q", funcName)
		}
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (g *Generator) processVoiceGroup(n *ast.VoiceGroup) error {
	p := g.part()
	start := p.currentTime
	maxEnd := start

	for _, voice := range n.Voices {
		p.currentTime = start
		if err := g.processEventSeq(voice.Events); err != nil {
			return err
		}
		if p.currentTime > maxEnd {
			maxEnd = p.currentTime
		}
	}

	p.currentTime = maxEnd
	return nil
}

func (g *Generator) processCram(n *ast.Cram) error {
	p := g.part()

	var totalBeats float64
	if n.Duration != nil {
		totalBeats = g.calculateDurationBeats(n.Duration, p)
	} else {
		totalBeats = p.defaultDuration
	}
	totalSecs := beatsToSeconds(totalBeats, p.tempo)

	count := countSoundingEvents(n.Events)
	if count == 0 {
		return nil
	}

	start := p.currentTime
	saved := p.defaultDuration
	p.defaultDuration = totalBeats / float64(count)

	if err := g.processEventSeq(n.Events); err != nil {
		return err
	}

	p.defaultDuration = saved
	p.currentTime = start + totalSecs
	return nil
}

// countSoundingEvents counts the events that participate in a cram's
// equal division of its outer duration: notes, rests, chords, and crams
// each count as one; bracket sequences recurse; a repeat counts its inner
// sounding events once per repetition.
func countSoundingEvents(events []ast.Node) int {
	count := 0
	for _, e := range events {
		switch ev := e.(type) {
		case *ast.Note, *ast.Rest, *ast.Chord, *ast.Cram:
			count++
		case *ast.BracketSeq:
			count += countSoundingEvents(ev.Events)
		case *ast.Repeat:
			inner := 1
			if bs, ok := ev.Event.(*ast.BracketSeq); ok {
				inner = countSoundingEvents(bs.Events)
			}
			count += inner * ev.Count
		}
	}
	return count
}

func (g *Generator) processRepeat(n *ast.Repeat) error {
	for i := 0; i < n.Count; i++ {
		g.repNumber = i + 1
		if err := g.processNode(n.Event); err != nil {
			return err
		}
	}
	g.repNumber = 1
	return nil
}

func (g *Generator) processOnReps(n *ast.OnReps) error {
	for _, r := range n.Reps {
		if r.Contains(g.repNumber) {
			return g.processNode(n.Event)
		}
	}
	if len(n.Reps) == 0 {
		// Absent specifier means "all repetitions" per the on-repetitions
		// grammar's documented default.
		return g.processNode(n.Event)
	}
	return nil
}
