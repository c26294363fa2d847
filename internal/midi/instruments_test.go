package midi

import "testing"

func TestProgramForNameKnownInstrument(t *testing.T) {
	program, percussion := ProgramForName([]string{"flute"})
	if program != 73 {
		t.Errorf("got program %d, want 73", program)
	}
	if percussion {
		t.Errorf("flute should not be percussion")
	}
}

func TestProgramForNamePercussion(t *testing.T) {
	program, percussion := ProgramForName([]string{"drums"})
	if program != 0 {
		t.Errorf("got program %d, want 0", program)
	}
	if !percussion {
		t.Errorf("drums should be flagged percussion")
	}
}

func TestProgramForNameFallsBackToFirstMatch(t *testing.T) {
	program, _ := ProgramForName([]string{"not-a-real-instrument", "trumpet"})
	if program != 56 {
		t.Errorf("got program %d, want 56 (trumpet)", program)
	}
}

func TestProgramForNameDefaultsToPianoWhenNoneMatch(t *testing.T) {
	program, percussion := ProgramForName([]string{"not-a-real-instrument"})
	if program != 0 || percussion {
		t.Errorf("got program=%d percussion=%v, want program=0 percussion=false", program, percussion)
	}
}

func TestInstrumentForProgramRoundTrips(t *testing.T) {
	program, _ := ProgramForName([]string{"violin"})
	if name := InstrumentForProgram(program); name != "violin" {
		t.Errorf("got %q, want violin", name)
	}
}

func TestVelocityForDynamicSixExplicitValues(t *testing.T) {
	cases := map[string]int{"pp": 25, "p": 40, "mp": 55, "mf": 70, "f": 85, "ff": 100}
	for name, want := range cases {
		got, ok := VelocityForDynamic(name)
		if !ok {
			t.Fatalf("VelocityForDynamic(%q) not found", name)
		}
		if got != want {
			t.Errorf("VelocityForDynamic(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestVelocityForDynamicUnknownNameFails(t *testing.T) {
	if _, ok := VelocityForDynamic("mezzo-forte-ish"); ok {
		t.Errorf("expected unknown dynamic marking to fail")
	}
}

func TestVelocityForDynamicOrderingIsMonotonic(t *testing.T) {
	order := []string{"pppppp", "ppppp", "pppp", "ppp", "pp", "p", "mp", "mf", "f", "ff", "fff", "ffff", "fffff", "ffffff"}
	prev := -1
	for _, name := range order {
		v, ok := VelocityForDynamic(name)
		if !ok {
			t.Fatalf("missing dynamic marking %q", name)
		}
		if v <= prev {
			t.Errorf("%q velocity %d is not greater than previous %d", name, v, prev)
		}
		prev = v
	}
}
