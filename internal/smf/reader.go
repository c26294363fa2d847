package smf

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/go-alda/aldago/internal/diag"
	"github.com/go-alda/aldago/internal/midi"
)

// rawEvent is a decoded channel-voice or meta message with its absolute
// tick position, before tempo-map conversion to seconds.
type rawEvent struct {
	tick       int
	status     byte
	channel    int
	data1      int
	data2      int
	metaType   byte
	metaData   []byte
	isMeta     bool
}

// TempoMap is the exported view of a decoded file's tempo breakpoints,
// returned alongside the event sequence so a caller can re-derive tick
// positions without re-parsing the tempo track.
type TempoMap struct {
	TicksPerQuarterNote int
	Changes             []midi.TempoChange
}

// Read decodes SMF bytes (format 0 or 1) back into a timed event sequence.
// NoteOn events with velocity 0 are normalized to NoteOff, per the running-
// status convention many writers use to avoid re-emitting a status byte.
func Read(data []byte) (*midi.Sequence, *TempoMap, error) {
	r := bufio.NewReader(bytes.NewReader(data))

	ticksPerQuarter, trackCount, err := readHeader(r)
	if err != nil {
		return nil, nil, err
	}

	var allEvents []rawEvent
	for i := 0; i < trackCount; i++ {
		events, err := readTrack(r)
		if err != nil {
			return nil, nil, diag.New(diag.SMF, fmt.Sprintf("track %d: %v", i, err), diag.Pos{}, "")
		}
		allEvents = append(allEvents, events...)
	}

	ticker := newTickClock(ticksPerQuarter, extractTempoChanges(allEvents))

	seq := &midi.Sequence{}
	for _, tc := range ticker.changes {
		seq.TempoChanges = append(seq.TempoChanges, midi.TempoChange{BPM: tc.bpm, Time: ticker.Seconds(tc.tick)})
	}

	active := map[[2]int]*midi.Note{} // (channel, pitch) -> open note
	for _, ev := range allEvents {
		if ev.isMeta {
			continue
		}
		t := ticker.Seconds(ev.tick)
		switch ev.status & 0xf0 {
		case 0xc0:
			seq.ProgramChanges = append(seq.ProgramChanges, midi.ProgramChange{
				Program: ev.data1, Time: t, Channel: ev.channel,
			})
		case 0xb0:
			seq.ControlChanges = append(seq.ControlChanges, midi.ControlChange{
				Controller: ev.data1, Value: ev.data2, Time: t, Channel: ev.channel,
			})
		case 0x90:
			if ev.data2 == 0 {
				closeNote(active, seq, ev.channel, ev.data1, t)
				continue
			}
			key := [2]int{ev.channel, ev.data1}
			active[key] = &midi.Note{
				Pitch: ev.data1, Velocity: ev.data2, StartTime: t, Channel: ev.channel,
			}
		case 0x80:
			closeNote(active, seq, ev.channel, ev.data1, t)
		}
	}
	for _, n := range active {
		n.Duration = 0
		seq.Notes = append(seq.Notes, *n)
	}

	seq.Sort()
	return seq, &TempoMap{TicksPerQuarterNote: ticksPerQuarter, Changes: seq.TempoChanges}, nil
}

func closeNote(active map[[2]int]*midi.Note, seq *midi.Sequence, channel, pitch int, t float64) {
	key := [2]int{channel, pitch}
	n, ok := active[key]
	if !ok {
		return
	}
	n.Duration = t - n.StartTime
	if n.Duration < 0 {
		n.Duration = 0
	}
	seq.Notes = append(seq.Notes, *n)
	delete(active, key)
}

type tempoEvent struct {
	tick int
	bpm  float64
}

func extractTempoChanges(events []rawEvent) []tempoEvent {
	var out []tempoEvent
	for _, ev := range events {
		if ev.isMeta && ev.metaType == 0x51 && len(ev.metaData) == 3 {
			micros := int(ev.metaData[0])<<16 | int(ev.metaData[1])<<8 | int(ev.metaData[2])
			bpm := 60000000.0 / float64(micros)
			out = append(out, tempoEvent{tick: ev.tick, bpm: bpm})
		}
	}
	if len(out) == 0 {
		out = append(out, tempoEvent{tick: 0, bpm: 60000000.0 / float64(defaultTempoMicros)})
	}
	return out
}

// tickClock converts absolute tick positions to seconds, the inverse of
// tempoMap, by walking the same sorted tempo breakpoints in tick-space.
type tickClock struct {
	ticksPerQuarter int
	changes         []tempoEvent // sorted by tick, changes[0].tick == 0
}

func newTickClock(ticksPerQuarter int, changes []tempoEvent) *tickClock {
	sorted := append([]tempoEvent{}, changes...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].tick > sorted[j].tick; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	if len(sorted) == 0 || sorted[0].tick > 0 {
		sorted = append([]tempoEvent{{tick: 0, bpm: 60000000.0 / float64(defaultTempoMicros)}}, sorted...)
	}
	return &tickClock{ticksPerQuarter: ticksPerQuarter, changes: sorted}
}

func (c *tickClock) Seconds(tick int) float64 {
	seconds := 0.0
	prevTick := 0
	micros := defaultTempoMicros

	for _, ch := range c.changes {
		if ch.tick > tick {
			break
		}
		if ch.tick > prevTick {
			seconds += ticksToSecondsAtTempo(ch.tick-prevTick, c.ticksPerQuarter, micros)
		}
		prevTick = ch.tick
		micros = bpmToMicros(ch.bpm)
	}

	seconds += ticksToSecondsAtTempo(tick-prevTick, c.ticksPerQuarter, micros)
	return seconds
}

func ticksToSecondsAtTempo(ticks, ticksPerQuarter, microsPerQuarter int) float64 {
	beats := float64(ticks) / float64(ticksPerQuarter)
	return beats * float64(microsPerQuarter) / 1000000.0
}

func readHeader(r *bufio.Reader) (ticksPerQuarter, trackCount int, err error) {
	chunkType := make([]byte, 4)
	if _, err := io.ReadFull(r, chunkType); err != nil {
		return 0, 0, diag.New(diag.SMF, fmt.Sprintf("reading header chunk type: %v", err), diag.Pos{}, "")
	}
	if string(chunkType) != "MThd" {
		return 0, 0, diag.New(diag.SMF, fmt.Sprintf("not an SMF file: chunk type %q", chunkType), diag.Pos{}, "")
	}

	length, err := readUint32(r)
	if err != nil {
		return 0, 0, diag.New(diag.SMF, fmt.Sprintf("reading header length: %v", err), diag.Pos{}, "")
	}
	header := make([]byte, length)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, 0, diag.New(diag.SMF, fmt.Sprintf("reading header body: %v", err), diag.Pos{}, "")
	}
	if len(header) < 6 {
		return 0, 0, diag.New(diag.SMF, "header chunk too short", diag.Pos{}, "")
	}

	format := int(header[0])<<8 | int(header[1])
	if format != 0 && format != 1 {
		return 0, 0, diag.New(diag.SMF, fmt.Sprintf("unsupported SMF format %d", format), diag.Pos{}, "")
	}
	tracks := int(header[2])<<8 | int(header[3])
	division := int(header[4])<<8 | int(header[5])
	if division&0x8000 != 0 {
		return 0, 0, diag.New(diag.SMF, "SMPTE time division is not supported", diag.Pos{}, "")
	}
	return division, tracks, nil
}

func readUint32(r *bufio.Reader) (int, error) {
	b := make([]byte, 4)
	if _, err := io.ReadFull(r, b); err != nil {
		return 0, err
	}
	return int(b[0])<<24 | int(b[1])<<16 | int(b[2])<<8 | int(b[3]), nil
}

func readVariableLength(r *bufio.Reader) (int, error) {
	value := 0
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		value = (value << 7) | int(b&0x7f)
		if b&0x80 == 0 {
			return value, nil
		}
	}
}

func readTrack(r *bufio.Reader) ([]rawEvent, error) {
	chunkType := make([]byte, 4)
	if _, err := io.ReadFull(r, chunkType); err != nil {
		return nil, fmt.Errorf("reading track chunk type: %w", err)
	}
	if string(chunkType) != "MTrk" {
		return nil, fmt.Errorf("bad track chunk type %q", chunkType)
	}

	length, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("reading track body: %w", err)
	}

	br := bufio.NewReader(bytes.NewReader(body))
	var events []rawEvent
	tick := 0
	runningStatus := byte(0)

	for br.Buffered() > 0 || peekable(br) {
		delta, err := readVariableLength(br)
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("reading delta time: %w", err)
		}
		tick += delta

		status, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("reading status byte: %w", err)
		}

		if status == 0xff {
			metaType, err := br.ReadByte()
			if err != nil {
				return nil, err
			}
			metaLen, err := readVariableLength(br)
			if err != nil {
				return nil, err
			}
			metaData := make([]byte, metaLen)
			if _, err := io.ReadFull(br, metaData); err != nil {
				return nil, err
			}
			events = append(events, rawEvent{tick: tick, isMeta: true, metaType: metaType, metaData: metaData})
			if metaType == 0x2f {
				break
			}
			continue
		}

		if status == 0xf0 || status == 0xf7 {
			sysexLen, err := readVariableLength(br)
			if err != nil {
				return nil, err
			}
			if _, err := io.CopyN(io.Discard, br, int64(sysexLen)); err != nil {
				return nil, err
			}
			continue
		}

		if status < 0x80 {
			// Running status: reuse the previous status byte; this byte is
			// actually the first data byte.
			if err := br.UnreadByte(); err != nil {
				return nil, err
			}
			status = runningStatus
		} else {
			runningStatus = status
		}

		channel := int(status & 0x0f)
		data1, err := br.ReadByte()
		if err != nil {
			return nil, err
		}

		ev := rawEvent{tick: tick, status: status, channel: channel, data1: int(data1)}
		switch status & 0xf0 {
		case 0x80, 0x90, 0xa0, 0xb0, 0xe0:
			data2, err := br.ReadByte()
			if err != nil {
				return nil, err
			}
			ev.data2 = int(data2)
		case 0xc0, 0xd0:
			// one data byte, already read
		}
		events = append(events, ev)
	}

	return events, nil
}

func peekable(r *bufio.Reader) bool {
	_, err := r.Peek(1)
	return err == nil
}
