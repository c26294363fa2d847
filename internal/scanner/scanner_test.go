package scanner

import (
	"testing"

	"github.com/go-alda/aldago/internal/token"
)

func kinds(tokens []token.Token) []token.Kind {
	out := make([]token.Kind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func TestScanSimpleNote(t *testing.T) {
	tokens, err := Scan("c4", "test.alda")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := kinds(tokens)
	want := []token.Kind{token.NoteLetter, token.NoteLength, token.EOF}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
	if tokens[0].Char != 'c' {
		t.Errorf("note letter char: got %q, want 'c'", tokens[0].Char)
	}
	if tokens[1].Int != 4 {
		t.Errorf("note length: got %d, want 4", tokens[1].Int)
	}
}

func TestScanAccidentalsAndDots(t *testing.T) {
	tokens, err := Scan("c+8.", "test.alda")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := kinds(tokens)
	want := []token.Kind{token.NoteLetter, token.Sharp, token.NoteLength, token.Dot, token.EOF}
	for i, k := range want {
		if got[i] != k {
			t.Errorf("token %d: got %v, want %v", i, got[i], k)
		}
	}
}

func TestScanRestAndBarline(t *testing.T) {
	tokens, err := Scan("r4 |", "test.alda")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := kinds(tokens)
	want := []token.Kind{token.RestLetter, token.NoteLength, token.Barline, token.EOF}
	for i, k := range want {
		if got[i] != k {
			t.Errorf("token %d: got %v, want %v", i, got[i], k)
		}
	}
}

func TestScanOctaveAndMarkers(t *testing.T) {
	tokens, err := Scan("o5 %start @start", "test.alda")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := kinds(tokens)
	want := []token.Kind{token.OctaveSet, token.Marker, token.AtMarker, token.EOF}
	for i, k := range want {
		if got[i] != k {
			t.Errorf("token %d: got %v, want %v", i, got[i], k)
		}
	}
	if tokens[0].Int != 5 {
		t.Errorf("octave: got %d, want 5", tokens[0].Int)
	}
	if tokens[1].Str != "start" {
		t.Errorf("marker name: got %q, want %q", tokens[1].Str, "start")
	}
}

func TestScanLispAttribute(t *testing.T) {
	tokens, err := Scan("(tempo! 120)", "test.alda")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := kinds(tokens)
	want := []token.Kind{token.LeftParen, token.Symbol, token.Number, token.RightParen, token.EOF}
	for i, k := range want {
		if got[i] != k {
			t.Errorf("token %d: got %v, want %v", i, got[i], k)
		}
	}
	if tokens[1].Str != "tempo!" {
		t.Errorf("symbol: got %q, want %q", tokens[1].Str, "tempo!")
	}
	if tokens[2].Float != 120 {
		t.Errorf("number: got %v, want 120", tokens[2].Float)
	}
}

func TestScanNoteLengthMsAndSeconds(t *testing.T) {
	tokens, err := Scan("c500ms d2.5s", "test.alda")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens[1].Kind != token.NoteLengthMs || tokens[1].Int != 500 {
		t.Errorf("ms token: got kind=%v int=%d", tokens[1].Kind, tokens[1].Int)
	}
	if tokens[3].Kind != token.NoteLengthS || tokens[3].Float != 2.5 {
		t.Errorf("s token: got kind=%v float=%v", tokens[3].Kind, tokens[3].Float)
	}
}

func TestScanLispStringDecodesBackslashEscapes(t *testing.T) {
	tokens, err := Scan(`(tag "a\"b")`, "test.alda")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens[2].Kind != token.String {
		t.Fatalf("got kind %v, want token.String", tokens[2].Kind)
	}
	if tokens[2].Str != `a"b` {
		t.Errorf("got %q, want %q", tokens[2].Str, `a"b`)
	}
}

func TestScanAliasDecodesBackslashEscapes(t *testing.T) {
	tokens, err := Scan(`piano "grand\"piano":`, "test.alda")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var alias *token.Token
	for i := range tokens {
		if tokens[i].Kind == token.Alias {
			alias = &tokens[i]
			break
		}
	}
	if alias == nil {
		t.Fatalf("no alias token found in %v", kinds(tokens))
	}
	if alias.Str != `grand"piano` {
		t.Errorf("got %q, want %q", alias.Str, `grand"piano`)
	}
}

func TestScanUnexpectedCharacterReturnsError(t *testing.T) {
	_, err := Scan("c4 $", "test.alda")
	if err == nil {
		t.Fatal("expected an error for unexpected character")
	}
}

func TestScanRepeatAndRepetitions(t *testing.T) {
	tokens, err := Scan("c*3'1-2,4", "test.alda")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := kinds(tokens)
	want := []token.Kind{token.NoteLetter, token.Repeat, token.Repetitions, token.EOF}
	for i, k := range want {
		if got[i] != k {
			t.Errorf("token %d: got %v, want %v", i, got[i], k)
		}
	}
	if tokens[1].Int != 3 {
		t.Errorf("repeat count: got %d, want 3", tokens[1].Int)
	}
	if tokens[2].Str != "1-2,4" {
		t.Errorf("repetitions spec: got %q, want %q", tokens[2].Str, "1-2,4")
	}
}
