// Package smf encodes a timed MIDI event sequence into a Standard MIDI File
// (format 1) and decodes SMF bytes back into the same sequence shape.
package smf

import "sort"

const defaultTempoMicros = 500000 // 120 BPM

// tempoMap converts absolute seconds to MIDI ticks given a sequence of
// tempo changes, accounting for every change that preceded the target time.
// It is shared between the tempo track and every channel track so that a
// note's tick position and its governing tempo-change's tick position agree
// exactly.
type tempoMap struct {
	ticksPerQuarter int
	points          []tempoPoint // sorted by time, points[0].time == 0
}

type tempoPoint struct {
	time       float64
	microsPerQ int
	tick       int
}

func bpmToMicros(bpm float64) int {
	if bpm <= 0 {
		return defaultTempoMicros
	}
	return int(60000000.0 / bpm)
}

func secondsToTicksAtTempo(seconds float64, ticksPerQuarter, microsPerQuarter int) int {
	beats := (seconds * 1000000.0) / float64(microsPerQuarter)
	return int(beats * float64(ticksPerQuarter))
}

// newTempoMap builds a tempo map from an unsorted list of (time, bpm) pairs.
// An implicit point at time 0 is inserted at the default tempo when the
// caller's own list does not start there.
func newTempoMap(ticksPerQuarter int, changes []struct {
	Time float64
	BPM  float64
}) *tempoMap {
	sorted := append([]struct {
		Time float64
		BPM  float64
	}{}, changes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	tm := &tempoMap{ticksPerQuarter: ticksPerQuarter}

	if len(sorted) == 0 {
		tm.points = []tempoPoint{{time: 0, microsPerQ: defaultTempoMicros, tick: 0}}
		return tm
	}

	currentTick := 0
	currentTime := 0.0
	currentMicros := defaultTempoMicros

	for _, c := range sorted {
		if c.Time > currentTime {
			currentTick += secondsToTicksAtTempo(c.Time-currentTime, ticksPerQuarter, currentMicros)
		}
		currentMicros = bpmToMicros(c.BPM)
		tm.points = append(tm.points, tempoPoint{time: c.Time, microsPerQ: currentMicros, tick: currentTick})
		currentTime = c.Time
	}

	if tm.points[0].time > 0 {
		tm.points = append([]tempoPoint{{time: 0, microsPerQ: defaultTempoMicros, tick: 0}}, tm.points...)
	}

	return tm
}

// SecondsToTicks converts an absolute time to its tick position.
func (tm *tempoMap) SecondsToTicks(seconds float64) int {
	if seconds <= 0 {
		return 0
	}

	last := tm.points[0]
	for _, p := range tm.points {
		if p.time > seconds {
			break
		}
		last = p
	}

	remaining := seconds - last.time
	return last.tick + secondsToTicksAtTempo(remaining, tm.ticksPerQuarter, last.microsPerQ)
}
