package midi

import "strings"

// instrumentPrograms maps lowercase, hyphenated General MIDI instrument
// names to their program numbers (0-127). The table is the standard GM1
// program list; it is consumed both by the generator (name -> program) and
// by the reverse MIDI-to-AST lowering (program -> name, via
// ProgramToInstrument).
var instrumentPrograms = map[string]int{
	"acoustic-grand-piano": 0, "bright-acoustic-piano": 1, "electric-grand-piano": 2,
	"honky-tonk-piano": 3, "electric-piano-1": 4, "electric-piano-2": 5,
	"harpsichord": 6, "clavinet": 7, "celesta": 8, "glockenspiel": 9,
	"music-box": 10, "vibraphone": 11, "marimba": 12, "xylophone": 13,
	"tubular-bells": 14, "dulcimer": 15, "drawbar-organ": 16, "percussive-organ": 17,
	"rock-organ": 18, "church-organ": 19, "reed-organ": 20, "accordion": 21,
	"harmonica": 22, "tango-accordion": 23, "acoustic-guitar-nylon": 24,
	"acoustic-guitar-steel": 25, "electric-guitar-jazz": 26, "electric-guitar-clean": 27,
	"electric-guitar-muted": 28, "overdriven-guitar": 29, "distortion-guitar": 30,
	"guitar-harmonics": 31, "acoustic-bass": 32, "electric-bass-finger": 33,
	"electric-bass-pick": 34, "fretless-bass": 35, "slap-bass-1": 36, "slap-bass-2": 37,
	"synth-bass-1": 38, "synth-bass-2": 39, "violin": 40, "viola": 41, "cello": 42,
	"contrabass": 43, "tremolo-strings": 44, "pizzicato-strings": 45, "orchestral-harp": 46,
	"timpani": 47, "string-ensemble-1": 48, "string-ensemble-2": 49, "synth-strings-1": 50,
	"synth-strings-2": 51, "choir-aahs": 52, "voice-oohs": 53, "synth-voice": 54,
	"orchestra-hit": 55, "trumpet": 56, "trombone": 57, "tuba": 58, "muted-trumpet": 59,
	"french-horn": 60, "brass-section": 61, "synth-brass-1": 62, "synth-brass-2": 63,
	"soprano-sax": 64, "alto-sax": 65, "tenor-sax": 66, "baritone-sax": 67, "oboe": 68,
	"english-horn": 69, "bassoon": 70, "clarinet": 71, "piccolo": 72, "flute": 73,
	"recorder": 74, "pan-flute": 75, "blown-bottle": 76, "shakuhachi": 77, "whistle": 78,
	"ocarina": 79, "lead-1-square": 80, "lead-2-sawtooth": 81, "lead-3-calliope": 82,
	"lead-4-chiff": 83, "lead-5-charang": 84, "lead-6-voice": 85, "lead-7-fifths": 86,
	"lead-8-bass-lead": 87, "pad-1-new-age": 88, "pad-2-warm": 89, "pad-3-polysynth": 90,
	"pad-4-choir": 91, "pad-5-bowed": 92, "pad-6-metallic": 93, "pad-7-halo": 94,
	"pad-8-sweep": 95, "fx-1-rain": 96, "fx-2-soundtrack": 97, "fx-3-crystal": 98,
	"fx-4-atmosphere": 99, "fx-5-brightness": 100, "fx-6-goblins": 101, "fx-7-echoes": 102,
	"fx-8-sci-fi": 103, "sitar": 104, "banjo": 105, "shamisen": 106, "koto": 107,
	"kalimba": 108, "bag-pipe": 109, "fiddle": 110, "shanai": 111, "tinkle-bell": 112,
	"agogo": 113, "steel-drums": 114, "woodblock": 115, "taiko-drum": 116,
	"melodic-tom": 117, "synth-drum": 118, "reverse-cymbal": 119, "guitar-fret-noise": 120,
	"breath-noise": 121, "seashore": 122, "bird-tweet": 123, "telephone-ring": 124,
	"helicopter": 125, "applause": 126, "gunshot": 127,
	"piano": 0, "percussion": 0,
}

// percussionNames are instrument names that route to channel 10 regardless
// of declared channel order, per the generator's channel-assignment rule.
var percussionNames = map[string]bool{
	"percussion": true, "midi-percussion": true, "drums": true, "drum-kit": true,
}

// programToInstrument is the reverse of instrumentPrograms for the MIDI-to-
// AST conversion: the first (lowest-valued) name claiming a program wins,
// matching the Python original's first-insertion-wins dict construction.
var programToInstrument = buildProgramToInstrument()

func buildProgramToInstrument() map[int]string {
	rev := make(map[int]string, 128)
	// Stable ordering matters only for the synthetic aliases ("piano",
	// "percussion") mapping to program 0 alongside "acoustic-grand-piano";
	// prefer the canonical GM name.
	order := []string{
		"acoustic-grand-piano", "bright-acoustic-piano", "electric-grand-piano",
		"honky-tonk-piano", "electric-piano-1", "electric-piano-2", "harpsichord",
		"clavinet", "celesta", "glockenspiel", "music-box", "vibraphone", "marimba",
		"xylophone", "tubular-bells", "dulcimer", "drawbar-organ", "percussive-organ",
		"rock-organ", "church-organ", "reed-organ", "accordion", "harmonica",
		"tango-accordion", "acoustic-guitar-nylon", "acoustic-guitar-steel",
		"electric-guitar-jazz", "electric-guitar-clean", "electric-guitar-muted",
		"overdriven-guitar", "distortion-guitar", "guitar-harmonics", "acoustic-bass",
		"electric-bass-finger", "electric-bass-pick", "fretless-bass", "slap-bass-1",
		"slap-bass-2", "synth-bass-1", "synth-bass-2", "violin", "viola", "cello",
		"contrabass", "tremolo-strings", "pizzicato-strings", "orchestral-harp",
		"timpani", "string-ensemble-1", "string-ensemble-2", "synth-strings-1",
		"synth-strings-2", "choir-aahs", "voice-oohs", "synth-voice", "orchestra-hit",
		"trumpet", "trombone", "tuba", "muted-trumpet", "french-horn", "brass-section",
		"synth-brass-1", "synth-brass-2", "soprano-sax", "alto-sax", "tenor-sax",
		"baritone-sax", "oboe", "english-horn", "bassoon", "clarinet", "piccolo",
		"flute", "recorder", "pan-flute", "blown-bottle", "shakuhachi", "whistle",
		"ocarina", "lead-1-square", "lead-2-sawtooth", "lead-3-calliope", "lead-4-chiff",
		"lead-5-charang", "lead-6-voice", "lead-7-fifths", "lead-8-bass-lead",
		"pad-1-new-age", "pad-2-warm", "pad-3-polysynth", "pad-4-choir", "pad-5-bowed",
		"pad-6-metallic", "pad-7-halo", "pad-8-sweep", "fx-1-rain", "fx-2-soundtrack",
		"fx-3-crystal", "fx-4-atmosphere", "fx-5-brightness", "fx-6-goblins",
		"fx-7-echoes", "fx-8-sci-fi", "sitar", "banjo", "shamisen", "koto", "kalimba",
		"bag-pipe", "fiddle", "shanai", "tinkle-bell", "agogo", "steel-drums",
		"woodblock", "taiko-drum", "melodic-tom", "synth-drum", "reverse-cymbal",
		"guitar-fret-noise", "breath-noise", "seashore", "bird-tweet", "telephone-ring",
		"helicopter", "applause", "gunshot",
	}
	for _, name := range order {
		p := instrumentPrograms[name]
		if _, ok := rev[p]; !ok {
			rev[p] = name
		}
	}
	return rev
}

// ProgramForName resolves an instrument name to its GM program number and
// percussion flag, trying each of names in order and falling back to
// program 0 ("acoustic-grand-piano") if none match.
func ProgramForName(names []string) (program int, percussion bool) {
	for _, name := range names {
		normalized := strings.ToLower(strings.ReplaceAll(name, "_", "-"))
		if p, ok := instrumentPrograms[normalized]; ok {
			return p, percussionNames[normalized]
		}
		if percussionNames[normalized] {
			return 0, true
		}
	}
	return 0, false
}

// InstrumentForProgram is the reverse lookup used by MIDI-to-AST lowering.
func InstrumentForProgram(program int) string {
	if name, ok := programToInstrument[program]; ok {
		return name
	}
	return "piano"
}

// dynamicsTable maps dynamic-marking names to 0-127 velocities. The six
// markings explicitly valued (pp, p, mp, mf, f, ff) are fixed; the
// remaining eight steps extend the scale linearly toward 0 and 127. See
// DESIGN.md for the numeric-table discrepancy this resolves.
var dynamicsTable = map[string]int{
	"pppppp": 5, "ppppp": 10, "pppp": 15, "ppp": 20,
	"pp": 25, "p": 40, "mp": 55, "mf": 70, "f": 85, "ff": 100,
	"fff": 107, "ffff": 114, "fffff": 120, "ffffff": 127,
}

// VelocityForDynamic returns the velocity for a dynamic marking name and
// whether the name was recognized.
func VelocityForDynamic(name string) (int, bool) {
	v, ok := dynamicsTable[strings.ToLower(name)]
	return v, ok
}
