package midi

import (
	"sort"

	"github.com/go-alda/aldago/internal/ast"
	"github.com/go-alda/aldago/internal/token"
)

// pitchClassToNote maps a MIDI pitch class (0-11) to a note letter and its
// accidentals, using sharps exclusively for the black keys.
var pitchClassToNote = [12]struct {
	letter byte
	acc    string
}{
	{'c', ""}, {'c', "+"}, {'d', ""}, {'d', "+"}, {'e', ""}, {'f', ""},
	{'f', "+"}, {'g', ""}, {'g', "+"}, {'a', ""}, {'a', "+"}, {'b', ""},
}

// durationValues pairs an Alda note-length denominator with its length in
// quarter notes, used to find the closest notation for an arbitrary beat
// duration recovered from MIDI.
var durationValues = []struct {
	denom  int
	length float64
}{
	{1, 4.0}, {2, 2.0}, {4, 1.0}, {6, 2.0 / 3.0}, {8, 0.5}, {12, 1.0 / 3.0},
	{16, 0.25}, {20, 0.2}, {24, 1.0 / 6.0}, {32, 0.125}, {40, 0.1},
	{48, 1.0 / 12.0}, {64, 0.0625}, {80, 0.05},
}

var dottedDurationValues = []struct {
	denom  int
	dots   int
	length float64
}{
	{1, 1, 6.0}, {2, 1, 3.0}, {4, 1, 1.5}, {8, 1, 0.75},
	{12, 1, 0.5}, {16, 1, 0.375}, {24, 1, 0.25},
}

func pitchToNote(pitch int) (letter byte, octave int, acc string) {
	octave = pitch/12 - 1
	entry := pitchClassToNote[((pitch%12)+12)%12]
	return entry.letter, octave, entry.acc
}

func secondsToBeats(seconds, bpm float64) float64 { return seconds * bpm / 60.0 }

func quantizeToGrid(value, grid float64) float64 {
	if grid <= 0 {
		return value
	}
	return roundFloat(value/grid) * grid
}

func roundFloat(v float64) float64 {
	if v < 0 {
		return -roundFloat(-v)
	}
	whole := float64(int64(v))
	if v-whole >= 0.5 {
		return whole + 1
	}
	return whole
}

// beatsToDuration finds the closest Alda note-length denominator and dot
// count for a beat value, preferring exact matches and falling back to
// nearest distance.
func beatsToDuration(beats float64) (denom, dots int) {
	if beats <= 0 {
		return 4, 0
	}

	const epsilon = 0.01
	for _, v := range durationValues {
		if absFloat(beats-v.length) < epsilon {
			return v.denom, 0
		}
	}
	for _, v := range dottedDurationValues {
		if absFloat(beats-v.length) < epsilon {
			return v.denom, v.dots
		}
	}

	bestDenom, bestDots := 4, 0
	bestDiff := -1.0
	for _, v := range durationValues {
		diff := absFloat(beats - v.length)
		if bestDiff < 0 || diff < bestDiff {
			bestDiff, bestDenom, bestDots = diff, v.denom, 0
		}
	}
	for _, v := range dottedDurationValues {
		diff := absFloat(beats - v.length)
		if diff < bestDiff {
			bestDiff, bestDenom, bestDots = diff, v.denom, v.dots
		}
	}
	return bestDenom, bestDots
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func makeDurationNode(denom, dots int) *ast.Duration {
	return ast.NewDuration(token.Pos{}, []ast.Node{ast.NewNoteLength(token.Pos{}, denom, dots)})
}

func makeTempoNode(bpm float64, global bool) *ast.LispList {
	name := "tempo"
	if global {
		name = "tempo!"
	}
	return ast.NewLispList(token.Pos{}, []ast.Node{
		ast.NewLispSymbol(token.Pos{}, name),
		ast.NewLispNumber(token.Pos{}, roundFloat(bpm)),
	})
}

type quantizedNote struct {
	pitch          int
	velocity       int
	startBeat      float64
	durationBeats  float64
	channel        int
	startSeconds   float64
}

// ToAST reverse-lowers a decoded MIDI sequence into an AST, synthesizing one
// part per channel, inserting rests for gaps, grouping simultaneous onsets
// into chords, and re-emitting tempo changes as (tempo ...)/(tempo! ...)
// forms. quantizeGrid is a beat-grid size (0.25 = sixteenth notes); pass 0
// to disable quantization.
func ToAST(seq *Sequence, quantizeGrid, defaultBPM float64) *ast.Root {
	tempoChanges := append([]TempoChange{}, seq.TempoChanges...)
	sort.SliceStable(tempoChanges, func(i, j int) bool { return tempoChanges[i].Time < tempoChanges[j].Time })

	bpm := defaultBPM
	var perPartTempos []TempoChange
	if len(tempoChanges) > 0 {
		bpm = tempoChanges[0].BPM
		perPartTempos = tempoChanges[1:]
	}

	channels := map[int][]Note{}
	for _, n := range seq.Notes {
		channels[n.Channel] = append(channels[n.Channel], n)
	}

	channelPrograms := map[int]int{}
	for _, pc := range seq.ProgramChanges {
		if _, ok := channelPrograms[pc.Channel]; !ok {
			channelPrograms[pc.Channel] = pc.Program
		}
	}

	var children []ast.Node
	if absFloat(bpm-120.0) > 0.1 {
		children = append(children, makeTempoNode(bpm, true))
	}

	var chs []int
	for ch := range channels {
		chs = append(chs, ch)
	}
	sort.Ints(chs)

	for _, ch := range chs {
		notes := channels[ch]
		if len(notes) == 0 {
			continue
		}
		program := channelPrograms[ch]
		instrument := InstrumentForProgram(program)

		children = append(children, ast.NewPartDecl(token.Pos{}, []string{instrument}, ""))

		quantized := quantizeNotes(notes, bpm, quantizeGrid)
		events := notesToEvents(quantized, perPartTempos)
		if len(events) > 0 {
			children = append(children, ast.NewEventSeq(token.Pos{}, events))
		}
	}

	return ast.NewRoot(token.Pos{}, children...)
}

func quantizeNotes(notes []Note, bpm, grid float64) []quantizedNote {
	result := make([]quantizedNote, 0, len(notes))
	for _, n := range notes {
		startBeats := quantizeToGrid(secondsToBeats(n.StartTime, bpm), grid)
		durBeats := secondsToBeats(n.Duration, bpm)
		durBeats = quantizeToGrid(durBeats, grid)
		if durBeats < grid {
			durBeats = grid
		}
		result = append(result, quantizedNote{
			pitch: n.Pitch, velocity: n.Velocity, startBeat: startBeats,
			durationBeats: durBeats, channel: n.Channel, startSeconds: n.StartTime,
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].startBeat != result[j].startBeat {
			return result[i].startBeat < result[j].startBeat
		}
		return result[i].pitch < result[j].pitch
	})
	return result
}

func notesToEvents(notes []quantizedNote, tempoEvents []TempoChange) []ast.Node {
	if len(notes) == 0 {
		return nil
	}

	var events []ast.Node
	currentBeat := 0.0
	currentOctave := 4
	tempoIdx := 0

	emitDueTempos := func(upToSeconds float64) {
		for tempoIdx < len(tempoEvents) && tempoEvents[tempoIdx].Time <= upToSeconds+1e-4 {
			events = append(events, makeTempoNode(tempoEvents[tempoIdx].BPM, false))
			tempoIdx++
		}
	}

	i := 0
	for i < len(notes) {
		note := notes[i]
		emitDueTempos(note.startSeconds)

		if gap := note.startBeat - currentBeat; gap > 0.01 {
			denom, dots := beatsToDuration(gap)
			events = append(events, ast.NewRest(token.Pos{}, makeDurationNode(denom, dots)))
			currentBeat = note.startBeat
		}

		j := i + 1
		for j < len(notes) && absFloat(notes[j].startBeat-note.startBeat) < 0.01 {
			j++
		}
		chordNotes := notes[i:j]

		if len(chordNotes) > 1 {
			denom, dots := beatsToDuration(chordNotes[0].durationBeats)
			_, octave0, _ := pitchToNote(chordNotes[0].pitch)
			if octave0 != currentOctave {
				events = append(events, ast.NewOctaveSet(token.Pos{}, octave0))
				currentOctave = octave0
			}

			var elements []ast.Node
			for idx, cn := range chordNotes {
				letter, _, acc := pitchToNote(cn.pitch)
				var dur *ast.Duration
				if idx == 0 {
					dur = makeDurationNode(denom, dots)
				}
				elements = append(elements, ast.NewNote(token.Pos{}, letter, acc, dur, false))
			}
			events = append(events, ast.NewChord(token.Pos{}, elements))
			currentBeat = note.startBeat + chordNotes[0].durationBeats
			i = j
			continue
		}

		letter, octave, acc := pitchToNote(note.pitch)
		if octave != currentOctave {
			events = append(events, ast.NewOctaveSet(token.Pos{}, octave))
			currentOctave = octave
		}
		denom, dots := beatsToDuration(note.durationBeats)
		events = append(events, ast.NewNote(token.Pos{}, letter, acc, makeDurationNode(denom, dots), false))
		currentBeat = note.startBeat + note.durationBeats
		i++
	}

	emitDueTempos(1e18)
	return events
}
