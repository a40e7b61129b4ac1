package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokLBrace
	tokRBrace
	tokLParen
	tokRParen
	tokComma
	tokSemicolon
	tokEquals
	tokColon
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "name"
	case tokString:
		return "string"
	case tokNumber:
		return "number"
	case tokLBrace:
		return "'{'"
	case tokRBrace:
		return "'}'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	case tokSemicolon:
		return "';'"
	case tokEquals:
		return "'='"
	case tokColon:
		return "':'"
	}
	return fmt.Sprintf("token(%d)", int(k))
}

type token struct {
	kind tokenKind
	text string
	// suffix holds the lowercased type suffix of a numeric literal.
	suffix string
	line   int
	col    int
}

type lexer struct {
	r    *bufio.Reader
	line int
	col  int
}

func newLexer(r io.Reader) *lexer {
	return &lexer{r: bufio.NewReader(r), line: 1}
}

func (l *lexer) read() (rune, error) {
	ch, _, err := l.r.ReadRune()
	if err != nil {
		return 0, err
	}
	if ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	return ch, nil
}

func (l *lexer) unread(ch rune) {
	_ = l.r.UnreadRune()
	if ch == '\n' {
		l.line--
		return
	}
	l.col--
}

func (l *lexer) peekRune() (rune, bool) {
	ch, _, err := l.r.ReadRune()
	if err != nil {
		return 0, false
	}
	_ = l.r.UnreadRune()
	return ch, true
}

func (l *lexer) errorf(line, col int, format string, args ...interface{}) error {
	return &SyntaxError{Line: line, Column: col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) scan() (token, error) {
	for {
		ch, err := l.read()
		if err == io.EOF {
			return token{kind: tokEOF, line: l.line, col: l.col}, nil
		}
		if err != nil {
			return token{}, fmt.Errorf("reading input: %w", err)
		}

		line, col := l.line, l.col
		switch {
		case unicode.IsSpace(ch):
			continue
		case ch == '/':
			next, ok := l.peekRune()
			if !ok || next != '/' {
				return token{}, l.errorf(line, col, "unexpected '/'")
			}
			l.skipLine()
			continue
		case ch == '{':
			return token{kind: tokLBrace, text: "{", line: line, col: col}, nil
		case ch == '}':
			return token{kind: tokRBrace, text: "}", line: line, col: col}, nil
		case ch == '(':
			return token{kind: tokLParen, text: "(", line: line, col: col}, nil
		case ch == ')':
			return token{kind: tokRParen, text: ")", line: line, col: col}, nil
		case ch == ',':
			return token{kind: tokComma, text: ",", line: line, col: col}, nil
		case ch == ';':
			return token{kind: tokSemicolon, text: ";", line: line, col: col}, nil
		case ch == '=':
			return token{kind: tokEquals, text: "=", line: line, col: col}, nil
		case ch == ':':
			return token{kind: tokColon, text: ":", line: line, col: col}, nil
		case ch == '"':
			return l.scanString(line, col)
		case ch == '-' || ch == '+' || ch == '.' || unicode.IsDigit(ch):
			l.unread(ch)
			return l.scanNumber(line, col)
		case isIdentStart(ch) || ch == '\\':
			l.unread(ch)
			text := l.scanIdent()
			if isSpecialNumber(text) {
				return token{kind: tokNumber, text: strings.TrimSuffix(text, "f"), suffix: specialSuffix(text), line: line, col: col}, nil
			}
			return token{kind: tokIdent, text: text, line: line, col: col}, nil
		default:
			return token{}, l.errorf(line, col, "unexpected character %q", ch)
		}
	}
}

func (l *lexer) skipLine() {
	for {
		ch, err := l.read()
		if err != nil || ch == '\n' {
			return
		}
	}
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isIdentPart(ch rune) bool {
	return ch == '_' || ch == '.' || ch == '@' || ch == '-' || ch == '+' ||
		unicode.IsLetter(ch) || unicode.IsDigit(ch)
}

func (l *lexer) scanIdent() string {
	var sb strings.Builder
	for {
		ch, err := l.read()
		if err != nil {
			return sb.String()
		}
		if ch == '\\' {
			// escaped characters are allowed inside CDL names
			esc, err := l.read()
			if err != nil {
				return sb.String()
			}
			sb.WriteRune(esc)
			continue
		}
		if !isIdentPart(ch) {
			l.unread(ch)
			return sb.String()
		}
		sb.WriteRune(ch)
	}
}

func isSpecialNumber(text string) bool {
	switch text {
	case "NaN", "NaNf", "Infinity", "Infinityf":
		return true
	}
	return false
}

func specialSuffix(text string) string {
	if strings.HasSuffix(text, "f") {
		return "f"
	}
	return ""
}

func (l *lexer) scanString(line, col int) (token, error) {
	var sb strings.Builder
	for {
		ch, err := l.read()
		if err != nil {
			return token{}, l.errorf(line, col, "unterminated string")
		}
		switch ch {
		case '"':
			return token{kind: tokString, text: sb.String(), line: line, col: col}, nil
		case '\\':
			esc, err := l.read()
			if err != nil {
				return token{}, l.errorf(line, col, "unterminated string")
			}
			switch esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '0':
				sb.WriteRune(0)
			default:
				sb.WriteRune(esc)
			}
		default:
			sb.WriteRune(ch)
		}
	}
}

// scanNumber reads a numeric literal and splits off its type suffix.
func (l *lexer) scanNumber(line, col int) (token, error) {
	var sb strings.Builder
	first, _ := l.read()
	sb.WriteRune(first)

	if first == '-' || first == '+' {
		next, ok := l.peekRune()
		if ok && isIdentStart(next) {
			word := l.scanIdent()
			if !isSpecialNumber(word) {
				return token{}, l.errorf(line, col, "invalid number %q", string(first)+word)
			}
			return token{kind: tokNumber, text: string(first) + strings.TrimSuffix(word, "f"), suffix: specialSuffix(word), line: line, col: col}, nil
		}
	}

	hex := false
	for {
		ch, err := l.read()
		if err != nil {
			break
		}
		if ch == 'x' || ch == 'X' {
			s := sb.String()
			if strings.TrimLeft(s, "+-") == "0" {
				hex = true
				sb.WriteRune(ch)
				continue
			}
		}
		if hex && isHexDigit(ch) {
			sb.WriteRune(ch)
			continue
		}
		if unicode.IsDigit(ch) || ch == '.' {
			sb.WriteRune(ch)
			continue
		}
		if !hex && (ch == 'e' || ch == 'E') {
			sb.WriteRune(ch)
			if sign, ok := l.peekRune(); ok && (sign == '-' || sign == '+') {
				l.read()
				sb.WriteRune(sign)
			}
			continue
		}
		l.unread(ch)
		break
	}

	text := sb.String()
	if text == "-" || text == "+" || text == "." {
		return token{}, l.errorf(line, col, "invalid number %q", text)
	}

	var suffix strings.Builder
	for {
		ch, err := l.read()
		if err != nil {
			break
		}
		if strings.ContainsRune("bBsSlLfFdDuU", ch) {
			suffix.WriteRune(unicode.ToLower(ch))
			continue
		}
		if isIdentPart(ch) {
			return token{}, l.errorf(line, col, "invalid number suffix in %q", text+suffix.String()+string(ch))
		}
		l.unread(ch)
		break
	}
	if s := suffix.String(); s != "" && !validSuffix(s) {
		return token{}, l.errorf(line, col, "invalid number suffix %q", s)
	}
	return token{kind: tokNumber, text: text, suffix: suffix.String(), line: line, col: col}, nil
}

func isHexDigit(ch rune) bool {
	return unicode.IsDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func validSuffix(s string) bool {
	switch s {
	case "b", "s", "l", "ll", "f", "d", "u", "ub", "us", "ul", "ull":
		return true
	}
	return false
}
