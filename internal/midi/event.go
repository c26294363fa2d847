// Package midi lowers an AST into a timed MIDI event sequence (the
// Generator) and parses that sequence back from decoded SMF bytes into an
// AST (the reverse, MIDI-to-AST conversion).
package midi

import "sort"

// Note is a fully-resolved NoteOn/NoteOff pair: one sounding pitch with a
// start time and gated duration.
type Note struct {
	Pitch     int
	Velocity  int
	StartTime float64
	Duration  float64
	Channel   int
}

func (n Note) EndTime() float64 { return n.StartTime + n.Duration }

// ProgramChange selects the GM instrument for a channel at a given time.
type ProgramChange struct {
	Program int
	Time    float64
	Channel int
}

// ControlChange is a single MIDI CC event (e.g. controller 10 for pan).
type ControlChange struct {
	Controller int
	Value      int
	Time       float64
	Channel    int
}

// TempoChange records a tempo-map breakpoint: BPM from Time onward.
type TempoChange struct {
	BPM  float64
	Time float64
}

// Sequence is the generator's output: every resolved event, unsorted
// relative to each other across categories until Sort is called.
type Sequence struct {
	Notes          []Note
	ProgramChanges []ProgramChange
	ControlChanges []ControlChange
	TempoChanges   []TempoChange
}

// Sort orders each event category by time, matching the generator's final
// pass before returning its sequence.
func (s *Sequence) Sort() {
	sort.SliceStable(s.Notes, func(i, j int) bool { return s.Notes[i].StartTime < s.Notes[j].StartTime })
	sort.SliceStable(s.ProgramChanges, func(i, j int) bool { return s.ProgramChanges[i].Time < s.ProgramChanges[j].Time })
	sort.SliceStable(s.ControlChanges, func(i, j int) bool { return s.ControlChanges[i].Time < s.ControlChanges[j].Time })
	sort.SliceStable(s.TempoChanges, func(i, j int) bool { return s.TempoChanges[i].Time < s.TempoChanges[j].Time })
}
