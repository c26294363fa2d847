// Package ast defines the abstract syntax tree produced by the parser and
// consumed by the MIDI generator.
//
// Each node variant is a concrete Go type implementing Node; children are
// held in slices rather than the sibling-linked lists of the reference
// implementation — Go's garbage collector removes the need for manual
// ownership tracking, and a slice gives the same traversal order with
// simpler indexing.
package ast

import "github.com/go-alda/aldago/internal/token"

// Node is implemented by every AST node variant.
type Node interface {
	Pos() token.Pos
}

type base struct {
	pos token.Pos
}

func (b base) Pos() token.Pos { return b.pos }

// Root is the top of every parsed document: a flat sequence of top-level
// events — part declarations and the event sequences that follow them.
type Root struct {
	base
	Children []Node
}

// PartDecl names the instrument(s) that subsequent events in the same
// top-level sequence belong to. It is a declaration, not a container: the
// events that follow it (up to the next PartDecl or end of input) are
// siblings in the parent Root/EventSeq, not its children.
type PartDecl struct {
	base
	Names []string
	Alias string
}

// EventSeq groups a run of events under one lexical scope, used for the
// children of Cram, BracketSeq, Voice, and VarDef.
type EventSeq struct {
	base
	Events []Node
}

// Note is a single pitched note event.
type Note struct {
	base
	Letter      byte // 'a'..'g'
	Accidentals string // any run of '+' / '-' / '_'
	Duration    *Duration
	Slurred     bool // trailing '~' tie/slur marker
}

// Rest is a silent event.
type Rest struct {
	base
	Duration *Duration
}

// Chord is a group of notes sounding simultaneously, written letter/letter/...
type Chord struct {
	base
	Notes []Node // Note or Rest
}

// Barline is a purely cosmetic measure separator.
type Barline struct{ base }

// Duration wraps one or more tied duration components (NoteLength /
// NoteLengthMs / NoteLengthS), summed when more than one is present.
type Duration struct {
	base
	Components []Node
}

// NoteLength is a beat-fraction duration: 4 -> quarter note, with Dots
// trailing '.' characters applied.
type NoteLength struct {
	base
	Denominator int
	Dots        int
}

// NoteLengthMs is an absolute duration in milliseconds, bypassing tempo.
type NoteLengthMs struct {
	base
	Ms int
}

// NoteLengthS is an absolute duration in seconds, bypassing tempo.
type NoteLengthS struct {
	base
	Seconds float64
}

// OctaveSet sets the current octave to an absolute value.
type OctaveSet struct {
	base
	Octave int
}

// OctaveUp/OctaveDown adjust the current octave by one.
type OctaveUp struct{ base }
type OctaveDown struct{ base }

// LispList is a parenthesized S-expression attribute form, e.g. (tempo! 120).
type LispList struct {
	base
	Elements []Node
}

type LispSymbol struct {
	base
	Name string
}

type LispNumber struct {
	base
	Value float64
}

type LispString struct {
	base
	Value string
}

// VarDef stores an event sequence under a name for later expansion at
// VarRef sites; it does not itself emit sound.
type VarDef struct {
	base
	Name   string
	Events []Node
}

// VarRef expands the event sequence stored under Name at the point of
// reference (lazy: evaluated against whatever VarDef last stored).
type VarRef struct {
	base
	Name string
}

// Marker records the current time under Name; AtMarker jumps back to it.
type Marker struct {
	base
	Name string
}

type AtMarker struct {
	base
	Name string
}

// VoiceGroup holds parallel Voice streams that rejoin at the latest voice's
// end time.
type VoiceGroup struct {
	base
	Voices []*Voice
}

type Voice struct {
	base
	Number int
	Events []Node
}

// Cram rescales its events' total duration to fit Duration (or the
// enclosing default duration, if Duration is nil).
type Cram struct {
	base
	Events   []Node
	Duration *Duration
}

// BracketSeq groups events for Repeat/OnReps postfix application.
type BracketSeq struct {
	base
	Events []Node
}

// Repeat plays Event Count times in sequence.
type Repeat struct {
	base
	Event Node
	Count int
}

// OnReps restricts Event to sounding only on the given 1-based repetition
// numbers, within an enclosing Repeat.
type OnReps struct {
	base
	Event Node
	Reps  []RepRange
}

// RepRange is one comma-separated component of an on-repetitions spec:
// "N" parses to {From: N, To: N}; "N-M" parses to {From: N, To: M}.
type RepRange struct {
	From int
	To   int
}

// Contains reports whether rep (1-based) falls within the range.
func (r RepRange) Contains(rep int) bool { return rep >= r.From && rep <= r.To }

func newBase(pos token.Pos) base { return base{pos: pos} }

func NewRoot(pos token.Pos, children ...Node) *Root { return &Root{base: newBase(pos), Children: children} }
func NewPartDecl(pos token.Pos, names []string, alias string) *PartDecl {
	return &PartDecl{base: newBase(pos), Names: names, Alias: alias}
}
func NewEventSeq(pos token.Pos, events []Node) *EventSeq { return &EventSeq{base: newBase(pos), Events: events} }
func NewNote(pos token.Pos, letter byte, accidentals string, dur *Duration, slurred bool) *Note {
	return &Note{base: newBase(pos), Letter: letter, Accidentals: accidentals, Duration: dur, Slurred: slurred}
}
func NewRest(pos token.Pos, dur *Duration) *Rest { return &Rest{base: newBase(pos), Duration: dur} }
func NewChord(pos token.Pos, notes []Node) *Chord { return &Chord{base: newBase(pos), Notes: notes} }
func NewBarline(pos token.Pos) *Barline           { return &Barline{base: newBase(pos)} }
func NewDuration(pos token.Pos, components []Node) *Duration {
	return &Duration{base: newBase(pos), Components: components}
}
func NewNoteLength(pos token.Pos, denom, dots int) *NoteLength {
	return &NoteLength{base: newBase(pos), Denominator: denom, Dots: dots}
}
func NewNoteLengthMs(pos token.Pos, ms int) *NoteLengthMs { return &NoteLengthMs{base: newBase(pos), Ms: ms} }
func NewNoteLengthS(pos token.Pos, sec float64) *NoteLengthS {
	return &NoteLengthS{base: newBase(pos), Seconds: sec}
}
func NewOctaveSet(pos token.Pos, octave int) *OctaveSet { return &OctaveSet{base: newBase(pos), Octave: octave} }
func NewOctaveUp(pos token.Pos) *OctaveUp               { return &OctaveUp{base: newBase(pos)} }
func NewOctaveDown(pos token.Pos) *OctaveDown           { return &OctaveDown{base: newBase(pos)} }
func NewLispList(pos token.Pos, elements []Node) *LispList {
	return &LispList{base: newBase(pos), Elements: elements}
}
func NewLispSymbol(pos token.Pos, name string) *LispSymbol { return &LispSymbol{base: newBase(pos), Name: name} }
func NewLispNumber(pos token.Pos, value float64) *LispNumber {
	return &LispNumber{base: newBase(pos), Value: value}
}
func NewLispString(pos token.Pos, value string) *LispString {
	return &LispString{base: newBase(pos), Value: value}
}
func NewVarDef(pos token.Pos, name string, events []Node) *VarDef {
	return &VarDef{base: newBase(pos), Name: name, Events: events}
}
func NewVarRef(pos token.Pos, name string) *VarRef { return &VarRef{base: newBase(pos), Name: name} }
func NewMarker(pos token.Pos, name string) *Marker { return &Marker{base: newBase(pos), Name: name} }
func NewAtMarker(pos token.Pos, name string) *AtMarker {
	return &AtMarker{base: newBase(pos), Name: name}
}
func NewVoiceGroup(pos token.Pos, voices []*Voice) *VoiceGroup {
	return &VoiceGroup{base: newBase(pos), Voices: voices}
}
func NewVoice(pos token.Pos, number int, events []Node) *Voice {
	return &Voice{base: newBase(pos), Number: number, Events: events}
}
func NewCram(pos token.Pos, events []Node, dur *Duration) *Cram {
	return &Cram{base: newBase(pos), Events: events, Duration: dur}
}
func NewBracketSeq(pos token.Pos, events []Node) *BracketSeq {
	return &BracketSeq{base: newBase(pos), Events: events}
}
func NewRepeat(pos token.Pos, event Node, count int) *Repeat {
	return &Repeat{base: newBase(pos), Event: event, Count: count}
}
func NewOnReps(pos token.Pos, event Node, reps []RepRange) *OnReps {
	return &OnReps{base: newBase(pos), Event: event, Reps: reps}
}
