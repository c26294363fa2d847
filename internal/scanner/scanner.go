// Package scanner turns Alda source text into a token stream.
//
// Scanning runs in one of two modes: normal mode for the musical-notation
// surface syntax, and Lisp mode for S-expression attribute forms. A single
// paren-depth counter switches between the two — entering any "(" increases
// the depth and enables Lisp mode for everything up to the matching ")".
package scanner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-alda/aldago/internal/diag"
	"github.com/go-alda/aldago/internal/token"
)

// Scanner holds the cursor state for a single scan pass. It is not
// reentrant and not safe for concurrent use, matching the synchronous,
// single-threaded execution model of the rest of the pipeline.
type Scanner struct {
	source   string
	filename string

	start     int
	current   int
	line      int
	column    int
	lineStart int
	sexpDepth int
}

func New(source, filename string) *Scanner {
	return &Scanner{source: source, filename: filename, line: 1, column: 1}
}

// Scan consumes the entire source and returns its token stream. The last
// token is always Kind EOF. Scanning stops at the first error, matching the
// first-error-wins policy shared by every phase.
func Scan(source, filename string) ([]token.Token, error) {
	return New(source, filename).Scan()
}

func (s *Scanner) Scan() ([]token.Token, error) {
	var tokens []token.Token

	for !s.atEnd() {
		var tok token.Token
		var err error
		if s.sexpDepth > 0 {
			tok, err = s.scanLispToken()
		} else {
			tok, err = s.scanNormalToken()
		}
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == token.EOF {
			break
		}
	}

	if len(tokens) == 0 || tokens[len(tokens)-1].Kind != token.EOF {
		tokens = append(tokens, token.Token{Kind: token.EOF, Pos: s.pos(s.current)})
	}

	return tokens, nil
}

func (s *Scanner) atEnd() bool { return s.current >= len(s.source) }

func (s *Scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.source[s.current]
}

func (s *Scanner) peekNext() byte {
	if s.current+1 >= len(s.source) {
		return 0
	}
	return s.source[s.current+1]
}

func (s *Scanner) advance() byte {
	c := s.source[s.current]
	s.current++
	s.column++
	return c
}

func (s *Scanner) skipWhitespace() {
	for !s.atEnd() {
		switch s.peek() {
		case ' ', '\t', '\r':
			s.advance()
		case '#':
			for !s.atEnd() && s.peek() != '\n' {
				s.advance()
			}
		default:
			return
		}
	}
}

func isNoteLetter(c byte) bool   { return c >= 'a' && c <= 'g' }
func isDigit(c byte) bool        { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool        { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentStart(c byte) bool   { return isAlpha(c) || c == '_' }
func isIdentChar(c byte) bool    { return isAlpha(c) || isDigit(c) || c == '_' || c == '-' }

func isSymbolChar(c byte) bool {
	if isAlpha(c) || isDigit(c) {
		return true
	}
	switch c {
	case '!', '?', '+', '-', '*', '/', '_', '<', '>', '=', '.', ':':
		return true
	}
	return false
}

func (s *Scanner) pos(at int) token.Pos {
	return token.Pos{Line: s.line, Column: at - s.lineStart + 1, Filename: s.filename}
}

func (s *Scanner) errf(format string, args ...interface{}) error {
	return diag.New(diag.Scan, fmt.Sprintf(format, args...), diag.Pos{
		Filename: s.filename, Line: s.line, Column: s.current - s.lineStart + 1,
	}, s.source)
}

func (s *Scanner) makeToken(kind token.Kind) token.Token {
	return token.Token{
		Kind:   kind,
		Lexeme: s.source[s.start:s.current],
		Pos:    s.pos(s.start),
	}
}

// scanNormalToken scans a single token while outside any S-expression.
func (s *Scanner) scanNormalToken() (token.Token, error) {
	s.skipWhitespace()
	s.start = s.current

	if s.atEnd() {
		return s.makeToken(token.EOF), nil
	}

	c := s.advance()

	if c == '\n' {
		s.line++
		s.lineStart = s.current
		return s.makeToken(token.Newline), nil
	}

	switch c {
	case '+':
		return s.makeToken(token.Sharp), nil
	case '-':
		return s.makeToken(token.Flat), nil
	case '_':
		return s.makeToken(token.Natural), nil
	case '>':
		return s.makeToken(token.OctaveUp), nil
	case '<':
		return s.makeToken(token.OctaveDown), nil
	case '.':
		return s.makeToken(token.Dot), nil
	case '~':
		return s.makeToken(token.Tie), nil
	case '|':
		return s.makeToken(token.Barline), nil
	case '/':
		return s.makeToken(token.Separator), nil
	case ':':
		return s.makeToken(token.Colon), nil
	case '=':
		return s.makeToken(token.Equals), nil
	case '{':
		return s.makeToken(token.CramOpen), nil
	case '}':
		return s.makeToken(token.CramClose), nil
	case '[':
		return s.makeToken(token.BracketOpen), nil
	case ']':
		return s.makeToken(token.BracketClose), nil
	case '(':
		s.sexpDepth++
		return s.makeToken(token.LeftParen), nil
	case ')':
		s.sexpDepth--
		return s.makeToken(token.RightParen), nil
	}

	if c == 'r' && !isAlpha(s.peek()) {
		return s.makeToken(token.RestLetter), nil
	}

	if c == 'o' && isDigit(s.peek()) {
		return s.scanOctaveSet(), nil
	}

	if c == 'V' && isDigit(s.peek()) {
		return s.scanVoiceMarker(), nil
	}

	if isNoteLetter(c) && !isAlpha(s.peek()) {
		tok := s.makeToken(token.NoteLetter)
		tok.Char = c
		return tok, nil
	}

	if isDigit(c) {
		return s.scanNumber(), nil
	}

	if c == '%' {
		return s.scanMarker(), nil
	}

	if c == '@' {
		return s.scanAtMarker(), nil
	}

	if c == '*' {
		return s.scanRepeat(), nil
	}

	if c == '\'' {
		return s.scanRepetitions(), nil
	}

	if c == '"' {
		return s.scanAlias()
	}

	if isIdentStart(c) {
		return s.scanName(), nil
	}

	return token.Token{}, s.errf("unexpected character %q", c)
}

func (s *Scanner) scanNumber() token.Token {
	for isDigit(s.peek()) {
		s.advance()
	}

	if s.peek() == 'm' && s.peekNext() == 's' {
		s.advance()
		s.advance()
		tok := s.makeToken(token.NoteLengthMs)
		tok.Int, _ = strconv.Atoi(strings.TrimSuffix(tok.Lexeme, "ms"))
		return tok
	}

	// A '.' here is ambiguous with the augmentation-dot suffix of a plain
	// note length ("4.."): tentatively consume it as a decimal point and
	// rewind if it doesn't turn out to be followed by the 's' seconds
	// suffix.
	if s.peek() == '.' && isDigit(s.peekNext()) {
		savedCurrent, savedColumn := s.current, s.column
		s.advance()
		for isDigit(s.peek()) {
			s.advance()
		}
		if s.peek() == 's' && !isAlpha(s.peekNext()) {
			s.advance()
			tok := s.makeToken(token.NoteLengthS)
			tok.Float, _ = strconv.ParseFloat(strings.TrimSuffix(tok.Lexeme, "s"), 64)
			return tok
		}
		s.current, s.column = savedCurrent, savedColumn
	}

	if s.peek() == 's' && !isAlpha(s.peekNext()) {
		s.advance()
		tok := s.makeToken(token.NoteLengthS)
		tok.Float, _ = strconv.ParseFloat(strings.TrimSuffix(tok.Lexeme, "s"), 64)
		return tok
	}

	tok := s.makeToken(token.NoteLength)
	tok.Int, _ = strconv.Atoi(tok.Lexeme)
	return tok
}

func (s *Scanner) scanOctaveSet() token.Token {
	for isDigit(s.peek()) {
		s.advance()
	}
	tok := s.makeToken(token.OctaveSet)
	tok.Int, _ = strconv.Atoi(tok.Lexeme[1:])
	return tok
}

func (s *Scanner) scanName() token.Token {
	for isIdentChar(s.peek()) {
		s.advance()
	}
	tok := s.makeToken(token.Name)
	tok.Str = tok.Lexeme
	return tok
}

func (s *Scanner) scanAlias() (token.Token, error) {
	for !s.atEnd() && s.peek() != '"' {
		if s.peek() == '\\' && s.peekNext() != 0 {
			s.advance()
		}
		if s.peek() == '\n' {
			s.line++
			s.lineStart = s.current + 1
		}
		s.advance()
	}
	if s.atEnd() {
		return token.Token{}, s.errf("unterminated string")
	}
	s.advance()
	tok := s.makeToken(token.Alias)
	tok.Str = unescapeQuoted(tok.Lexeme)
	return tok, nil
}

// unescapeQuoted strips the surrounding quotes from a scanned string lexeme
// and decodes backslash escapes (the scanner treats "\X" as a literal X that
// doesn't terminate the string, for any X).
func unescapeQuoted(lexeme string) string {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(lexeme, `"`), `"`)
	var b strings.Builder
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		if c == '\\' && i+1 < len(trimmed) {
			i++
			b.WriteByte(trimmed[i])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func (s *Scanner) scanMarker() token.Token {
	for isIdentChar(s.peek()) {
		s.advance()
	}
	tok := s.makeToken(token.Marker)
	tok.Str = strings.TrimPrefix(tok.Lexeme, "%")
	return tok
}

func (s *Scanner) scanAtMarker() token.Token {
	for isIdentChar(s.peek()) {
		s.advance()
	}
	tok := s.makeToken(token.AtMarker)
	tok.Str = strings.TrimPrefix(tok.Lexeme, "@")
	return tok
}

func (s *Scanner) scanVoiceMarker() token.Token {
	for isDigit(s.peek()) {
		s.advance()
	}
	if s.peek() == ':' {
		s.advance()
	}
	tok := s.makeToken(token.VoiceMarker)
	digits := strings.TrimSuffix(strings.TrimPrefix(tok.Lexeme, "V"), ":")
	tok.Int, _ = strconv.Atoi(digits)
	return tok
}

func (s *Scanner) scanRepeat() token.Token {
	for isDigit(s.peek()) {
		s.advance()
	}
	tok := s.makeToken(token.Repeat)
	tok.Int, _ = strconv.Atoi(tok.Lexeme[1:])
	return tok
}

func (s *Scanner) scanRepetitions() token.Token {
	for !s.atEnd() {
		c := s.peek()
		if isDigit(c) || c == ',' || c == '-' {
			s.advance()
		} else {
			break
		}
	}
	tok := s.makeToken(token.Repetitions)
	tok.Str = strings.TrimPrefix(tok.Lexeme, "'")
	return tok
}

// scanLispToken scans a single token while inside an S-expression.
func (s *Scanner) scanLispToken() (token.Token, error) {
	s.skipWhitespace()
	s.start = s.current

	if s.atEnd() {
		return s.makeToken(token.EOF), nil
	}

	c := s.advance()

	if c == '\n' {
		s.line++
		s.lineStart = s.current
		return s.makeToken(token.Newline), nil
	}

	if c == '(' {
		s.sexpDepth++
		return s.makeToken(token.LeftParen), nil
	}
	if c == ')' {
		s.sexpDepth--
		return s.makeToken(token.RightParen), nil
	}
	if c == '"' {
		return s.scanLispString()
	}
	if isDigit(c) || (c == '-' && isDigit(s.peek())) {
		return s.scanLispNumber(), nil
	}
	if isSymbolChar(c) {
		return s.scanSymbol(), nil
	}

	return token.Token{}, s.errf("unexpected character in S-expression: %q", c)
}

func (s *Scanner) scanLispNumber() token.Token {
	hasDot := false
	if s.peek() == '-' {
		s.advance()
	}
	for !s.atEnd() {
		c := s.peek()
		if isDigit(c) {
			s.advance()
		} else if c == '.' && !hasDot {
			hasDot = true
			s.advance()
		} else {
			break
		}
	}
	tok := s.makeToken(token.Number)
	tok.Float, _ = strconv.ParseFloat(tok.Lexeme, 64)
	return tok
}

func (s *Scanner) scanLispString() (token.Token, error) {
	for !s.atEnd() && s.peek() != '"' {
		if s.peek() == '\\' && s.peekNext() != 0 {
			s.advance()
		}
		if s.peek() == '\n' {
			s.line++
			s.lineStart = s.current + 1
		}
		s.advance()
	}
	if s.atEnd() {
		return token.Token{}, s.errf("unterminated string")
	}
	s.advance()
	tok := s.makeToken(token.String)
	tok.Str = unescapeQuoted(tok.Lexeme)
	return tok, nil
}

func (s *Scanner) scanSymbol() token.Token {
	for isSymbolChar(s.peek()) {
		s.advance()
	}
	tok := s.makeToken(token.Symbol)
	tok.Str = tok.Lexeme
	return tok
}
