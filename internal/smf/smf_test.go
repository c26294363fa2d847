package smf

import (
	"testing"

	"github.com/go-alda/aldago/internal/midi"
)

func TestWriteProducesValidHeader(t *testing.T) {
	seq := &midi.Sequence{
		Notes: []midi.Note{{Pitch: 60, Velocity: 80, StartTime: 0, Duration: 0.5, Channel: 0}},
	}
	data, err := Write(seq, 480)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if string(data[0:4]) != "MThd" {
		t.Errorf("got chunk type %q, want MThd", data[0:4])
	}
	format := int(data[8])<<8 | int(data[9])
	if format != 1 {
		t.Errorf("got format %d, want 1", format)
	}
	tpq := int(data[12])<<8 | int(data[13])
	if tpq != 480 {
		t.Errorf("got ticks per quarter %d, want 480", tpq)
	}
}

func TestWriteRejectsNonPositiveTicksPerQuarter(t *testing.T) {
	seq := &midi.Sequence{}
	if _, err := Write(seq, 0); err == nil {
		t.Fatal("expected an error for zero ticks per quarter note")
	}
}

func TestRoundTripPreservesNoteOnsetSet(t *testing.T) {
	seq := &midi.Sequence{
		Notes: []midi.Note{
			{Pitch: 60, Velocity: 80, StartTime: 0, Duration: 0.5, Channel: 0},
			{Pitch: 64, Velocity: 90, StartTime: 0.5, Duration: 0.5, Channel: 0},
		},
		ProgramChanges: []midi.ProgramChange{{Program: 0, Time: 0, Channel: 0}},
		TempoChanges:   []midi.TempoChange{{BPM: 120, Time: 0}},
	}

	data, err := Write(seq, 480)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	readSeq, tm, err := Read(data)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if tm.TicksPerQuarterNote != 480 {
		t.Errorf("got tpq %d, want 480", tm.TicksPerQuarterNote)
	}
	if len(readSeq.Notes) != len(seq.Notes) {
		t.Fatalf("got %d notes back, want %d", len(readSeq.Notes), len(seq.Notes))
	}

	for i, want := range seq.Notes {
		got := readSeq.Notes[i]
		if got.Pitch != want.Pitch {
			t.Errorf("note %d: got pitch %d, want %d", i, got.Pitch, want.Pitch)
		}
		if diff := got.StartTime - want.StartTime; diff > 1e-3 || diff < -1e-3 {
			t.Errorf("note %d: got start %v, want %v", i, got.StartTime, want.StartTime)
		}
	}
}

func TestReadRejectsNonSMFData(t *testing.T) {
	if _, _, err := Read([]byte("not a midi file")); err == nil {
		t.Fatal("expected an error for non-SMF data")
	}
}

func TestTempoMapFlatTempoIsLinear(t *testing.T) {
	tm := newTempoMap(480, []struct {
		Time float64
		BPM  float64
	}{})
	if got := tm.SecondsToTicks(1.0); got != 960 {
		t.Errorf("got %d ticks, want 960 (1 second at 120 BPM, 480 tpq)", got)
	}
}
