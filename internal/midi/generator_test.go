package midi

import (
	"math"
	"testing"

	"github.com/go-alda/aldago/internal/parser"
)

func generateSource(t *testing.T, src string) *Sequence {
	t.Helper()
	root, err := parser.Parse(src, "test.alda")
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", src, err)
	}
	seq, err := Generate(root, DefaultDefaults())
	if err != nil {
		t.Fatalf("Generate(%q) failed: %v", src, err)
	}
	return seq
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestGenerateMiddleCAtDefaultOctave(t *testing.T) {
	seq := generateSource(t, "c4")
	if len(seq.Notes) != 1 {
		t.Fatalf("got %d notes, want 1", len(seq.Notes))
	}
	if seq.Notes[0].Pitch != 60 {
		t.Errorf("got pitch %d, want 60 (middle C at octave 4)", seq.Notes[0].Pitch)
	}
}

func TestGenerateQuarterNoteDurationAt120BPM(t *testing.T) {
	seq := generateSource(t, "c4")
	// whole_seconds = 4*60/120 = 2; quarter duration = 2/4 = 0.5s; quant 0.9 default.
	want := 0.5 * 0.9
	if !almostEqual(seq.Notes[0].Duration, want) {
		t.Errorf("got duration %v, want %v", seq.Notes[0].Duration, want)
	}
}

func TestGenerateOctaveUpShiftsPitchByTwelve(t *testing.T) {
	seq := generateSource(t, "c4 > c4")
	if len(seq.Notes) != 2 {
		t.Fatalf("got %d notes, want 2", len(seq.Notes))
	}
	if seq.Notes[1].Pitch-seq.Notes[0].Pitch != 12 {
		t.Errorf("got pitch delta %d, want 12", seq.Notes[1].Pitch-seq.Notes[0].Pitch)
	}
}

func TestGenerateAccidentalsAdjustPitch(t *testing.T) {
	seq := generateSource(t, "c4 c+4 c-4")
	if seq.Notes[1].Pitch-seq.Notes[0].Pitch != 1 {
		t.Errorf("sharp should raise pitch by 1 semitone, got delta %d", seq.Notes[1].Pitch-seq.Notes[0].Pitch)
	}
	if seq.Notes[2].Pitch-seq.Notes[0].Pitch != -1 {
		t.Errorf("flat should lower pitch by 1 semitone, got delta %d", seq.Notes[2].Pitch-seq.Notes[0].Pitch)
	}
}

func TestGenerateDefaultDurationCarriesForward(t *testing.T) {
	seq := generateSource(t, "c8 d e")
	if len(seq.Notes) != 3 {
		t.Fatalf("got %d notes, want 3", len(seq.Notes))
	}
	for i := 1; i < 3; i++ {
		if !almostEqual(seq.Notes[i].Duration, seq.Notes[0].Duration) {
			t.Errorf("note %d duration %v should match note 0's %v", i, seq.Notes[i].Duration, seq.Notes[0].Duration)
		}
	}
}

func TestGenerateTrailingSlurAfterExplicitDurationIsLegato(t *testing.T) {
	seq := generateSource(t, "c4~d4")
	if len(seq.Notes) != 2 {
		t.Fatalf("got %d notes, want 2", len(seq.Notes))
	}
	// Slurred notes sound for their full duration, unshortened by quant.
	want := 0.5
	if !almostEqual(seq.Notes[0].Duration, want) {
		t.Errorf("got slurred duration %v, want %v (no quant gating)", seq.Notes[0].Duration, want)
	}
	if !almostEqual(seq.Notes[1].StartTime, 0.5) {
		t.Errorf("got second note start %v, want 0.5", seq.Notes[1].StartTime)
	}
}

func TestGenerateChordNotesShareStartTime(t *testing.T) {
	seq := generateSource(t, "c/e/g4")
	if len(seq.Notes) != 3 {
		t.Fatalf("got %d notes, want 3", len(seq.Notes))
	}
	for _, n := range seq.Notes {
		if !almostEqual(n.StartTime, 0) {
			t.Errorf("chord note start time %v, want 0", n.StartTime)
		}
	}
}

func TestGenerateTempoChangeAffectsSubsequentDurations(t *testing.T) {
	seq := generateSource(t, "(tempo! 240) c4")
	// whole_seconds = 4*60/240 = 1; quarter = 0.25s * quant 0.9
	want := 0.25 * 0.9
	if !almostEqual(seq.Notes[0].Duration, want) {
		t.Errorf("got duration %v, want %v", seq.Notes[0].Duration, want)
	}
}

func TestGenerateCramSplitsDurationEvenly(t *testing.T) {
	seq := generateSource(t, "{c d e}4")
	if len(seq.Notes) != 3 {
		t.Fatalf("got %d notes, want 3", len(seq.Notes))
	}
	// Outer duration is a quarter note (0.5s at 120 BPM), split evenly three ways.
	perNote := (0.5 / 3.0) * 0.9
	for i, n := range seq.Notes {
		if !almostEqual(n.Duration, perNote) {
			t.Errorf("cram note %d duration %v, want %v", i, n.Duration, perNote)
		}
	}
	if !almostEqual(seq.Notes[1].StartTime, 0.5/3.0) {
		t.Errorf("cram note 1 start %v, want %v", seq.Notes[1].StartTime, 0.5/3.0)
	}
}

func TestGenerateRepeatPlaysEventMultipleTimes(t *testing.T) {
	seq := generateSource(t, "[c4]*3")
	if len(seq.Notes) != 3 {
		t.Fatalf("got %d notes, want 3", len(seq.Notes))
	}
}

func TestGenerateOnRepsFiltersByRepetitionNumber(t *testing.T) {
	seq := generateSource(t, "[c4 d4'2]*2")
	// Repetition 1: just c. Repetition 2: c and d.
	if len(seq.Notes) != 3 {
		t.Fatalf("got %d notes, want 3", len(seq.Notes))
	}
}

func TestGenerateMarkerAndAtMarkerJump(t *testing.T) {
	seq := generateSource(t, "c4 %here d4 @here e4")
	if len(seq.Notes) != 3 {
		t.Fatalf("got %d notes, want 3", len(seq.Notes))
	}
	// e4 should start at the same time as d4 since @here rewinds the cursor.
	if !almostEqual(seq.Notes[1].StartTime, seq.Notes[2].StartTime) {
		t.Errorf("got d start %v, e start %v, want equal", seq.Notes[1].StartTime, seq.Notes[2].StartTime)
	}
}

func TestGenerateLeadingVarDefBeforePartStillSoundsTheCall(t *testing.T) {
	seq := generateSource(t, "theme = c d e\npiano: theme theme")
	if len(seq.Notes) != 6 {
		t.Fatalf("got %d notes, want 6", len(seq.Notes))
	}
}

func TestGenerateUnknownInstrumentIsAnError(t *testing.T) {
	root, err := parser.Parse("bagpipes-from-mars: c4", "test.alda")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, err := Generate(root, DefaultDefaults()); err == nil {
		t.Fatal("expected an error for an unrecognized instrument name")
	}
}

func TestGenerateVoiceGroupRejoinsAtLatestVoice(t *testing.T) {
	seq := generateSource(t, "V1: c4 c4 V2: c2 V0:")
	if len(seq.Notes) != 3 {
		t.Fatalf("got %d notes, want 3", len(seq.Notes))
	}
}

func TestGenerateCramNestedInsideBracketRepeatCountsAllRepetitions(t *testing.T) {
	seq := generateSource(t, "[{c d}4]*2")
	// Each repetition sounds 2 cram notes; 2 repetitions -> 4 notes total.
	if len(seq.Notes) != 4 {
		t.Fatalf("got %d notes, want 4", len(seq.Notes))
	}
}
