package parser

import (
	"testing"

	"github.com/go-alda/aldago/internal/ast"
)

func parseOK(t *testing.T, src string) *ast.Root {
	t.Helper()
	root, err := Parse(src, "test.alda")
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", src, err)
	}
	return root
}

func TestParsePartDeclarationAndNotes(t *testing.T) {
	root := parseOK(t, "piano: c4 d8 e")
	if len(root.Children) != 2 {
		t.Fatalf("got %d top-level children, want 2", len(root.Children))
	}
	decl, ok := root.Children[0].(*ast.PartDecl)
	if !ok {
		t.Fatalf("children[0] is %T, want *ast.PartDecl", root.Children[0])
	}
	if len(decl.Names) != 1 || decl.Names[0] != "piano" {
		t.Errorf("got names %v, want [piano]", decl.Names)
	}

	seq, ok := root.Children[1].(*ast.EventSeq)
	if !ok {
		t.Fatalf("children[1] is %T, want *ast.EventSeq", root.Children[1])
	}
	if len(seq.Events) != 3 {
		t.Fatalf("got %d events, want 3", len(seq.Events))
	}
	note, ok := seq.Events[0].(*ast.Note)
	if !ok {
		t.Fatalf("events[0] is %T, want *ast.Note", seq.Events[0])
	}
	if note.Letter != 'c' {
		t.Errorf("got letter %q, want 'c'", note.Letter)
	}
}

func TestParseChord(t *testing.T) {
	root := parseOK(t, "c/e/g")
	seq := root.Children[0].(*ast.EventSeq)
	chord, ok := seq.Events[0].(*ast.Chord)
	if !ok {
		t.Fatalf("events[0] is %T, want *ast.Chord", seq.Events[0])
	}
	if len(chord.Notes) != 3 {
		t.Fatalf("got %d chord notes, want 3", len(chord.Notes))
	}
}

func TestParseCramAndBracketSeq(t *testing.T) {
	root := parseOK(t, "{c d e}4 [c d]*2")
	seq := root.Children[0].(*ast.EventSeq)
	if len(seq.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(seq.Events))
	}
	cram, ok := seq.Events[0].(*ast.Cram)
	if !ok {
		t.Fatalf("events[0] is %T, want *ast.Cram", seq.Events[0])
	}
	if len(cram.Events) != 3 {
		t.Errorf("got %d cram events, want 3", len(cram.Events))
	}
	if cram.Duration == nil {
		t.Errorf("expected cram to carry an explicit duration")
	}

	repeat, ok := seq.Events[1].(*ast.Repeat)
	if !ok {
		t.Fatalf("events[1] is %T, want *ast.Repeat", seq.Events[1])
	}
	if repeat.Count != 2 {
		t.Errorf("got repeat count %d, want 2", repeat.Count)
	}
	if _, ok := repeat.Event.(*ast.BracketSeq); !ok {
		t.Errorf("repeat.Event is %T, want *ast.BracketSeq", repeat.Event)
	}
}

func TestParseOnRepetitions(t *testing.T) {
	root := parseOK(t, "[c]*4'1-2,4")
	seq := root.Children[0].(*ast.EventSeq)
	onReps, ok := seq.Events[0].(*ast.OnReps)
	if !ok {
		t.Fatalf("events[0] is %T, want *ast.OnReps", seq.Events[0])
	}
	if len(onReps.Reps) != 2 {
		t.Fatalf("got %d rep ranges, want 2", len(onReps.Reps))
	}
	if onReps.Reps[0] != (ast.RepRange{From: 1, To: 2}) {
		t.Errorf("got range %v, want {1 2}", onReps.Reps[0])
	}
	if onReps.Reps[1] != (ast.RepRange{From: 4, To: 4}) {
		t.Errorf("got range %v, want {4 4}", onReps.Reps[1])
	}
	if _, ok := onReps.Event.(*ast.Repeat); !ok {
		t.Fatalf("onReps.Event is %T, want *ast.Repeat", onReps.Event)
	}
}

func TestParseVarDefAndRef(t *testing.T) {
	root := parseOK(t, "riff = c d e\nriff")
	seq := root.Children[0].(*ast.EventSeq)
	if len(seq.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(seq.Events))
	}
	def, ok := seq.Events[0].(*ast.VarDef)
	if !ok {
		t.Fatalf("events[0] is %T, want *ast.VarDef", seq.Events[0])
	}
	if def.Name != "riff" || len(def.Events) != 3 {
		t.Errorf("got name=%q events=%d, want name=riff events=3", def.Name, len(def.Events))
	}
	ref, ok := seq.Events[1].(*ast.VarRef)
	if !ok {
		t.Fatalf("events[1] is %T, want *ast.VarRef", seq.Events[1])
	}
	if ref.Name != "riff" {
		t.Errorf("got ref name %q, want riff", ref.Name)
	}
}

func TestParseLispAttribute(t *testing.T) {
	root := parseOK(t, "(tempo! 140)")
	seq := root.Children[0].(*ast.EventSeq)
	list, ok := seq.Events[0].(*ast.LispList)
	if !ok {
		t.Fatalf("events[0] is %T, want *ast.LispList", seq.Events[0])
	}
	if len(list.Elements) != 2 {
		t.Fatalf("got %d elements, want 2", len(list.Elements))
	}
	sym, ok := list.Elements[0].(*ast.LispSymbol)
	if !ok || sym.Name != "tempo!" {
		t.Errorf("got elements[0] = %#v, want symbol tempo!", list.Elements[0])
	}
}

func TestParseVoiceGroup(t *testing.T) {
	root := parseOK(t, "V1: c d V2: e f V0:")
	seq := root.Children[0].(*ast.EventSeq)
	group, ok := seq.Events[0].(*ast.VoiceGroup)
	if !ok {
		t.Fatalf("events[0] is %T, want *ast.VoiceGroup", seq.Events[0])
	}
	if len(group.Voices) != 2 {
		t.Fatalf("got %d voices, want 2", len(group.Voices))
	}
	if group.Voices[0].Number != 1 || group.Voices[1].Number != 2 {
		t.Errorf("got voice numbers %d, %d, want 1, 2", group.Voices[0].Number, group.Voices[1].Number)
	}
}

func TestParseLeadingVarDefThenPartIsNotDropped(t *testing.T) {
	root := parseOK(t, "theme = c d e\npiano: theme theme")
	if len(root.Children) != 3 {
		t.Fatalf("got %d top-level children, want 3 (VarDef seq, PartDecl, EventSeq)", len(root.Children))
	}
	if _, ok := root.Children[1].(*ast.PartDecl); !ok {
		t.Fatalf("children[1] is %T, want *ast.PartDecl", root.Children[1])
	}
	seq, ok := root.Children[2].(*ast.EventSeq)
	if !ok {
		t.Fatalf("children[2] is %T, want *ast.EventSeq", root.Children[2])
	}
	if len(seq.Events) != 2 {
		t.Fatalf("got %d events under piano, want 2 (two VarRefs)", len(seq.Events))
	}
}

func TestParseLeadingAttributeThenPartIsNotDropped(t *testing.T) {
	root := parseOK(t, "(tempo! 140)\npiano: c d e")
	if len(root.Children) != 3 {
		t.Fatalf("got %d top-level children, want 3 (attribute seq, PartDecl, EventSeq)", len(root.Children))
	}
	if _, ok := root.Children[1].(*ast.PartDecl); !ok {
		t.Fatalf("children[1] is %T, want *ast.PartDecl", root.Children[1])
	}
	seq, ok := root.Children[2].(*ast.EventSeq)
	if !ok {
		t.Fatalf("children[2] is %T, want *ast.EventSeq", root.Children[2])
	}
	if len(seq.Events) != 3 {
		t.Errorf("got %d events under piano, want 3", len(seq.Events))
	}
}

func TestParseMultiplePartsShareTopLevel(t *testing.T) {
	root := parseOK(t, "piano: c4\nviolin: d4")
	if len(root.Children) != 4 {
		t.Fatalf("got %d top-level children, want 4", len(root.Children))
	}
}
