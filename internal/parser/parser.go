// Package parser builds an AST from a token stream via recursive descent.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-alda/aldago/internal/ast"
	"github.com/go-alda/aldago/internal/diag"
	"github.com/go-alda/aldago/internal/scanner"
	"github.com/go-alda/aldago/internal/token"
)

// Parser consumes a token stream and builds a Root node. Not reentrant.
type Parser struct {
	source   string
	filename string
	tokens   []token.Token
	current  int
}

func New(source, filename string, tokens []token.Token) *Parser {
	return &Parser{source: source, filename: filename, tokens: tokens}
}

// Parse scans source and builds its AST in one call.
func Parse(source, filename string) (*ast.Root, error) {
	tokens, err := scanner.Scan(source, filename)
	if err != nil {
		return nil, err
	}
	return New(source, filename, tokens).Parse()
}

func (p *Parser) atEnd() bool {
	return p.current >= len(p.tokens) || p.tokens[p.current].Kind == token.EOF
}

func (p *Parser) peek() *token.Token {
	if p.current >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.current]
}

func (p *Parser) peekNext() *token.Token {
	if p.current+1 >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.current+1]
}

func (p *Parser) advance() *token.Token {
	if !p.atEnd() {
		t := &p.tokens[p.current]
		p.current++
		return t
	}
	return p.peek()
}

func (p *Parser) check(kind token.Kind) bool {
	if p.atEnd() {
		return false
	}
	return p.peek().Kind == kind
}

func (p *Parser) match(kind token.Kind) bool {
	if p.check(kind) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) skipNewlines() {
	for p.match(token.Newline) {
	}
}

func (p *Parser) errf(format string, args ...interface{}) error {
	var pos diag.Pos
	if t := p.peek(); t != nil {
		pos = diag.Pos{Filename: t.Pos.Filename, Line: t.Pos.Line, Column: t.Pos.Column}
	} else {
		pos = diag.Pos{Filename: p.filename, Line: 1, Column: 1}
	}
	return diag.New(diag.Syntax, fmt.Sprintf(format, args...), pos, p.source)
}

// Parse runs the full grammar over the token stream, producing the Root.
func (p *Parser) Parse() (*ast.Root, error) {
	rootPos := token.Pos{Line: 1, Column: 1, Filename: p.filename}
	var children []ast.Node

	for !p.atEnd() {
		p.skipNewlines()
		if p.atEnd() {
			break
		}

		if p.isPartDeclaration() {
			decl, err := p.parsePartDeclaration()
			if err != nil {
				return nil, err
			}
			children = append(children, decl)

			events, err := p.parseEventSequence(token.EOF)
			if err != nil {
				return nil, err
			}
			if len(events) > 0 {
				children = append(children, ast.NewEventSeq(events[0].Pos(), events))
			}
			continue
		}

		beforeEvents := p.current
		events, err := p.parseEventSequence(token.EOF)
		if err != nil {
			return nil, err
		}
		if len(events) > 0 {
			children = append(children, ast.NewEventSeq(events[0].Pos(), events))
		}
		if p.current == beforeEvents {
			// Made no progress (e.g. a stray token parseEvent can't start an
			// event with) - stop rather than loop forever.
			break
		}
		continue
	}

	return ast.NewRoot(rootPos, children...), nil
}

// isPartDeclaration looks ahead without consuming to decide whether the
// current position begins "NAME ('/' NAME)* ALIAS? ':'".
func (p *Parser) isPartDeclaration() bool {
	if !p.check(token.Name) {
		return false
	}
	save := p.current
	found := false
	for p.current < len(p.tokens) {
		k := p.tokens[p.current].Kind
		switch k {
		case token.Colon:
			found = true
		case token.Separator, token.Alias, token.Name:
			p.current++
			continue
		}
		break
	}
	p.current = save
	return found
}

func (p *Parser) parsePartDeclaration() (*ast.PartDecl, error) {
	pos := p.peek().Pos
	var names []string

	for {
		if p.check(token.Name) {
			names = append(names, p.advance().Str)
		}
		if !p.match(token.Separator) {
			break
		}
	}

	alias := ""
	if p.check(token.Alias) {
		alias = p.advance().Str
	}

	if !p.match(token.Colon) {
		return nil, p.errf("expected ':' after part declaration")
	}

	return ast.NewPartDecl(pos, names, alias), nil
}

// parseEventSequence parses events until EOF, the given stop kind (ignored
// when EOF), or the lookahead for a new part declaration.
func (p *Parser) parseEventSequence(stop token.Kind) ([]ast.Node, error) {
	var events []ast.Node

	for !p.atEnd() {
		p.skipNewlines()
		if p.atEnd() {
			break
		}
		if stop != token.EOF && p.check(stop) {
			break
		}

		if p.check(token.Name) {
			next := p.peekNext()
			if next != nil && (next.Kind == token.Colon || next.Kind == token.Separator || next.Kind == token.Alias) {
				break
			}
		}

		event, err := p.parseEvent()
		if err != nil {
			return nil, err
		}
		if event == nil {
			break
		}
		events = append(events, event)
	}

	return events, nil
}

func (p *Parser) parseEvent() (ast.Node, error) {
	event, err := p.parsePrimaryEvent()
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, nil
	}
	return p.parsePostfix(event)
}

func (p *Parser) parsePrimaryEvent() (ast.Node, error) {
	p.skipNewlines()
	if p.atEnd() {
		return nil, nil
	}

	tok := p.peek()

	switch tok.Kind {
	case token.NoteLetter:
		return p.parseNoteOrChord()
	case token.RestLetter:
		return p.parseRest()
	case token.OctaveSet:
		t := p.advance()
		return ast.NewOctaveSet(t.Pos, t.Int), nil
	case token.OctaveUp:
		t := p.advance()
		return ast.NewOctaveUp(t.Pos), nil
	case token.OctaveDown:
		t := p.advance()
		return ast.NewOctaveDown(t.Pos), nil
	case token.Barline:
		t := p.advance()
		return ast.NewBarline(t.Pos), nil
	case token.LeftParen:
		return p.parseSexp()
	case token.CramOpen:
		return p.parseCram()
	case token.BracketOpen:
		return p.parseBracketSeq()
	case token.Marker:
		t := p.advance()
		return ast.NewMarker(t.Pos, t.Str), nil
	case token.AtMarker:
		t := p.advance()
		return ast.NewAtMarker(t.Pos, t.Str), nil
	case token.VoiceMarker:
		return p.parseVoiceGroup()
	case token.Name:
		if next := p.peekNext(); next != nil && next.Kind == token.Equals {
			return p.parseVarDef()
		}
		t := p.advance()
		return ast.NewVarRef(t.Pos, t.Str), nil
	default:
		return nil, nil
	}
}

func (p *Parser) parseVarDef() (ast.Node, error) {
	name := p.advance() // NAME
	p.advance()         // =

	var events []ast.Node
	for !p.atEnd() && !p.check(token.Newline) {
		event, err := p.parseEvent()
		if err != nil {
			return nil, err
		}
		if event == nil {
			break
		}
		events = append(events, event)
	}

	return ast.NewVarDef(name.Pos, name.Str, events), nil
}

func (p *Parser) parseNoteOrChord() (ast.Node, error) {
	first, err := p.parseNote()
	if err != nil {
		return nil, err
	}

	if !p.check(token.Separator) {
		return first, nil
	}

	pos := first.Pos()
	notes := []ast.Node{first}

	for p.match(token.Separator) {
		p.skipNewlines()
		if p.check(token.NoteLetter) {
			n, err := p.parseNote()
			if err != nil {
				return nil, err
			}
			notes = append(notes, n)
		} else if p.check(token.RestLetter) {
			r, err := p.parseRest()
			if err != nil {
				return nil, err
			}
			notes = append(notes, r)
		} else {
			break
		}
	}

	if len(notes) > 1 {
		return ast.NewChord(pos, notes), nil
	}
	return notes[0], nil
}

func (p *Parser) parseNote() (*ast.Note, error) {
	tok := p.advance()
	letter := tok.Char
	pos := tok.Pos

	var acc strings.Builder
	for p.check(token.Sharp) || p.check(token.Flat) || p.check(token.Natural) {
		acc.WriteString(p.advance().Lexeme)
	}

	var duration *ast.Duration
	if p.check(token.NoteLength) || p.check(token.NoteLengthMs) || p.check(token.NoteLengthS) {
		d, err := p.parseDuration()
		if err != nil {
			return nil, err
		}
		duration = d
	}

	slurred := p.match(token.Tie)

	return ast.NewNote(pos, letter, acc.String(), duration, slurred), nil
}

func (p *Parser) parseRest() (*ast.Rest, error) {
	tok := p.advance()
	pos := tok.Pos

	var duration *ast.Duration
	if p.check(token.NoteLength) || p.check(token.NoteLengthMs) || p.check(token.NoteLengthS) {
		d, err := p.parseDuration()
		if err != nil {
			return nil, err
		}
		duration = d
	}

	return ast.NewRest(pos, duration), nil
}

func (p *Parser) parseDuration() (*ast.Duration, error) {
	pos := p.peek().Pos

	var components []ast.Node
	comp, err := p.parseDurationComponent()
	if err != nil {
		return nil, err
	}
	components = append(components, comp)

	for p.check(token.Tie) {
		next := p.peekNext()
		if next == nil || (next.Kind != token.NoteLength && next.Kind != token.NoteLengthMs && next.Kind != token.NoteLengthS) {
			// Not a tie between two length components - leave the '~' for
			// parseNote to record as a trailing slur.
			break
		}
		p.advance() // consume the tie
		comp, err := p.parseDurationComponent()
		if err != nil {
			return nil, err
		}
		components = append(components, comp)
	}

	return ast.NewDuration(pos, components), nil
}

func (p *Parser) parseDurationComponent() (ast.Node, error) {
	tok := p.advance()
	pos := tok.Pos

	switch tok.Kind {
	case token.NoteLength:
		dots := 0
		for p.match(token.Dot) {
			dots++
		}
		return ast.NewNoteLength(pos, tok.Int, dots), nil
	case token.NoteLengthMs:
		return ast.NewNoteLengthMs(pos, tok.Int), nil
	case token.NoteLengthS:
		return ast.NewNoteLengthS(pos, tok.Float), nil
	}

	return nil, p.errf("expected a duration")
}

func (p *Parser) parseSexp() (*ast.LispList, error) {
	tok := p.advance() // (
	pos := tok.Pos

	var elements []ast.Node
	p.skipNewlines()

	for !p.atEnd() && !p.check(token.RightParen) {
		var elem ast.Node

		switch {
		case p.check(token.LeftParen):
			nested, err := p.parseSexp()
			if err != nil {
				return nil, err
			}
			elem = nested
		case p.check(token.Symbol):
			t := p.advance()
			elem = ast.NewLispSymbol(t.Pos, t.Str)
		case p.check(token.Number):
			t := p.advance()
			elem = ast.NewLispNumber(t.Pos, t.Float)
		case p.check(token.String):
			t := p.advance()
			elem = ast.NewLispString(t.Pos, t.Str)
		case p.check(token.Newline):
			p.advance()
			continue
		default:
			return nil, p.errf("unexpected token in S-expression")
		}

		elements = append(elements, elem)
		p.skipNewlines()
	}

	if !p.match(token.RightParen) {
		return nil, p.errf("expected ')' to close S-expression")
	}

	return ast.NewLispList(pos, elements), nil
}

func (p *Parser) parseCram() (*ast.Cram, error) {
	tok := p.advance() // {
	pos := tok.Pos

	events, err := p.parseEventSequence(token.CramClose)
	if err != nil {
		return nil, err
	}

	if !p.match(token.CramClose) {
		return nil, p.errf("expected '}' to close cram expression")
	}

	var duration *ast.Duration
	if p.check(token.NoteLength) || p.check(token.NoteLengthMs) || p.check(token.NoteLengthS) {
		d, err := p.parseDuration()
		if err != nil {
			return nil, err
		}
		duration = d
	}

	return ast.NewCram(pos, events, duration), nil
}

func (p *Parser) parseBracketSeq() (*ast.BracketSeq, error) {
	tok := p.advance() // [
	pos := tok.Pos

	events, err := p.parseEventSequence(token.BracketClose)
	if err != nil {
		return nil, err
	}

	if !p.match(token.BracketClose) {
		return nil, p.errf("expected ']' to close bracketed sequence")
	}

	return ast.NewBracketSeq(pos, events), nil
}

func (p *Parser) parseVoiceGroup() (*ast.VoiceGroup, error) {
	pos := p.peek().Pos
	var voices []*ast.Voice

	for p.check(token.VoiceMarker) {
		tok := p.peek()
		if tok.Int == 0 {
			p.advance()
			break
		}
		voice, err := p.parseVoice()
		if err != nil {
			return nil, err
		}
		voices = append(voices, voice)
	}

	return ast.NewVoiceGroup(pos, voices), nil
}

func (p *Parser) parseVoice() (*ast.Voice, error) {
	tok := p.advance()
	number := tok.Int
	pos := tok.Pos

	var events []ast.Node
	for !p.atEnd() && !p.check(token.VoiceMarker) {
		p.skipNewlines()
		if p.atEnd() || p.check(token.VoiceMarker) {
			break
		}
		event, err := p.parseEvent()
		if err != nil {
			return nil, err
		}
		if event == nil {
			break
		}
		events = append(events, event)
	}

	return ast.NewVoice(pos, number, events), nil
}

func (p *Parser) parsePostfix(event ast.Node) (ast.Node, error) {
	if p.check(token.Repeat) {
		tok := p.advance()
		event = ast.NewRepeat(tok.Pos, event, tok.Int)
	}

	if p.check(token.Repetitions) {
		tok := p.advance()
		reps, err := parseRepSpec(tok.Str)
		if err != nil {
			return nil, p.errf("%s", err.Error())
		}
		event = ast.NewOnReps(tok.Pos, event, reps)
	}

	return event, nil
}

// parseRepSpec parses "1-3,5" into [{1,3},{5,5}] per the grammar
// rep ("," rep)* where rep := N | N "-" M.
func parseRepSpec(spec string) ([]ast.RepRange, error) {
	if spec == "" {
		return nil, nil
	}
	var ranges []ast.RepRange
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if dash := strings.IndexByte(part, '-'); dash >= 0 {
			from, err := strconv.Atoi(part[:dash])
			if err != nil {
				return nil, fmt.Errorf("invalid repetition range %q", part)
			}
			to, err := strconv.Atoi(part[dash+1:])
			if err != nil {
				return nil, fmt.Errorf("invalid repetition range %q", part)
			}
			ranges = append(ranges, ast.RepRange{From: from, To: to})
		} else {
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid repetition index %q", part)
			}
			ranges = append(ranges, ast.RepRange{From: n, To: n})
		}
	}
	return ranges, nil
}
