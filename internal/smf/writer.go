package smf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/go-alda/aldago/internal/midi"
)

// trackEvent is one timed, already-encoded MIDI or meta message awaiting
// delta-time framing.
type trackEvent struct {
	tick int
	kind int // sort priority when ticks tie: lower sorts first
	data []byte
}

const (
	priorityProgramChange = 0
	priorityControlChange = 1
	priorityNoteOff       = 2
	priorityNoteOn        = 3
	priorityMeta          = 0
)

// Write encodes seq as a format-1 Standard MIDI File: a tempo track first,
// followed by one track per channel in ascending channel order.
func Write(seq *midi.Sequence, ticksPerQuarter int) ([]byte, error) {
	if ticksPerQuarter <= 0 {
		return nil, fmt.Errorf("smf: ticks per quarter note must be positive, got %d", ticksPerQuarter)
	}

	changes := make([]struct {
		Time float64
		BPM  float64
	}, len(seq.TempoChanges))
	for i, tc := range seq.TempoChanges {
		changes[i] = struct {
			Time float64
			BPM  float64
		}{tc.Time, tc.BPM}
	}
	tm := newTempoMap(ticksPerQuarter, changes)

	channels := map[int]bool{}
	for _, n := range seq.Notes {
		channels[n.Channel] = true
	}
	for _, pc := range seq.ProgramChanges {
		channels[pc.Channel] = true
	}
	for _, cc := range seq.ControlChanges {
		channels[cc.Channel] = true
	}

	var channelList []int
	for ch := range channels {
		channelList = append(channelList, ch)
	}
	sort.Ints(channelList)

	tracks := [][]byte{buildTempoTrack(seq, tm)}
	for _, ch := range channelList {
		tracks = append(tracks, buildChannelTrack(seq, ch, tm))
	}

	var out bytes.Buffer
	if err := writeHeader(&out, len(tracks), ticksPerQuarter); err != nil {
		return nil, err
	}
	for _, t := range tracks {
		if err := writeTrackChunk(&out, t); err != nil {
			return nil, err
		}
	}
	return out.Bytes(), nil
}

func writeHeader(out *bytes.Buffer, numTracks, ticksPerQuarter int) error {
	out.WriteString("MThd")
	if err := binary.Write(out, binary.BigEndian, uint32(6)); err != nil {
		return err
	}
	if err := binary.Write(out, binary.BigEndian, uint16(1)); err != nil { // format 1
		return err
	}
	if err := binary.Write(out, binary.BigEndian, uint16(numTracks)); err != nil {
		return err
	}
	return binary.Write(out, binary.BigEndian, uint16(ticksPerQuarter))
}

func writeTrackChunk(out *bytes.Buffer, trackData []byte) error {
	out.WriteString("MTrk")
	if err := binary.Write(out, binary.BigEndian, uint32(len(trackData))); err != nil {
		return err
	}
	_, err := out.Write(trackData)
	return err
}

// writeVariableLength encodes value as a MIDI variable-length quantity.
func writeVariableLength(out *bytes.Buffer, value int) {
	if value < 0 {
		value = 0
	}
	if value == 0 {
		out.WriteByte(0)
		return
	}

	var buf []byte
	for value > 0 {
		buf = append(buf, byte(value&0x7f))
		value >>= 7
	}
	for i := len(buf) - 1; i >= 0; i-- {
		b := buf[i]
		if i != 0 {
			b |= 0x80
		}
		out.WriteByte(b)
	}
}

func buildTempoTrack(seq *midi.Sequence, tm *tempoMap) []byte {
	var events []trackEvent

	if len(seq.TempoChanges) == 0 {
		events = append(events, trackEvent{tick: 0, kind: priorityMeta, data: setTempoMeta(defaultTempoMicros)})
	} else {
		sorted := append([]midi.TempoChange{}, seq.TempoChanges...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
		for _, tc := range sorted {
			tick := tm.SecondsToTicks(tc.Time)
			events = append(events, trackEvent{tick: tick, kind: priorityMeta, data: setTempoMeta(bpmToMicros(tc.BPM))})
		}
	}

	return encodeTrack(events)
}

func setTempoMeta(microsPerQuarter int) []byte {
	b := make([]byte, 3)
	b[0] = byte(microsPerQuarter >> 16)
	b[1] = byte(microsPerQuarter >> 8)
	b[2] = byte(microsPerQuarter)
	return append([]byte{0xff, 0x51, 0x03}, b...)
}

func buildChannelTrack(seq *midi.Sequence, channel int, tm *tempoMap) []byte {
	var events []trackEvent
	ch := byte(channel & 0x0f)

	for _, pc := range seq.ProgramChanges {
		if pc.Channel != channel {
			continue
		}
		tick := tm.SecondsToTicks(pc.Time)
		events = append(events, trackEvent{
			tick: tick, kind: priorityProgramChange,
			data: []byte{0xc0 | ch, byte(pc.Program & 0x7f)},
		})
	}

	for _, cc := range seq.ControlChanges {
		if cc.Channel != channel {
			continue
		}
		tick := tm.SecondsToTicks(cc.Time)
		events = append(events, trackEvent{
			tick: tick, kind: priorityControlChange,
			data: []byte{0xb0 | ch, byte(cc.Controller & 0x7f), byte(cc.Value & 0x7f)},
		})
	}

	for _, n := range seq.Notes {
		if n.Channel != channel {
			continue
		}
		startTick := tm.SecondsToTicks(n.StartTime)
		endTick := tm.SecondsToTicks(n.EndTime())

		events = append(events, trackEvent{
			tick: startTick, kind: priorityNoteOn,
			data: []byte{0x90 | ch, byte(n.Pitch & 0x7f), byte(n.Velocity & 0x7f)},
		})
		events = append(events, trackEvent{
			tick: endTick, kind: priorityNoteOff,
			data: []byte{0x80 | ch, byte(n.Pitch & 0x7f), 0},
		})
	}

	return encodeTrack(events)
}

// encodeTrack sorts events by (tick, kind) — note-offs before note-ons at
// the same tick, so a note's release never clips a note that starts at the
// same instant on the same channel — then frames each as delta-time+data,
// appending an end-of-track meta event.
func encodeTrack(events []trackEvent) []byte {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].kind < events[j].kind
	})

	lastTick := 0
	if len(events) > 0 {
		lastTick = events[len(events)-1].tick
	}
	events = append(events, trackEvent{tick: lastTick, kind: 99, data: []byte{0xff, 0x2f, 0x00}})

	var out bytes.Buffer
	prevTick := 0
	for _, e := range events {
		delta := e.tick - prevTick
		if delta < 0 {
			delta = 0
		}
		writeVariableLength(&out, delta)
		out.Write(e.data)
		prevTick = e.tick
	}
	return out.Bytes()
}
