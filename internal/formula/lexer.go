package formula

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokNumber
	tokString
	tokIdent

	tokTrue
	tokFalse
	tokNone
	tokAnd
	tokOr
	tokNot

	tokPlus     // +
	tokMinus    // -
	tokStar     // *
	tokSlash    // /
	tokFloorDiv // //
	tokPercent  // %
	tokPow      // **
	tokEq       // ==
	tokNeq      // !=
	tokLess     // <
	tokLessEq   // <=
	tokGreater  // >
	tokGreaterEq
	tokLParen
	tokRParen
	tokLSquare
	tokRSquare
	tokComma
)

var keywords = map[string]tokenType{
	"True":  tokTrue,
	"False": tokFalse,
	"None":  tokNone,
	"and":   tokAnd,
	"or":    tokOr,
	"not":   tokNot,
}

var tokenNames = map[tokenType]string{
	tokEOF: "end of formula", tokNumber: "number", tokString: "string", tokIdent: "identifier",
	tokPlus: "+", tokMinus: "-", tokStar: "*", tokSlash: "/", tokFloorDiv: "//",
	tokPercent: "%", tokPow: "**", tokEq: "==", tokNeq: "!=", tokLess: "<", tokLessEq: "<=",
	tokGreater: ">", tokGreaterEq: ">=", tokLParen: "(", tokRParen: ")", tokLSquare: "[",
	tokRSquare: "]", tokComma: ",",
}

func (t tokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	for k, v := range keywords {
		if v == t {
			return k
		}
	}
	return "token"
}

type token struct {
	typ  tokenType
	text string
	num  float64
	pos  int
}

type lexer struct {
	src  string
	pos  int
	toks []token
}

// lex splits src into tokens. The returned slice always ends with tokEOF.
func lex(src string) ([]token, error) {
	l := &lexer{src: src}
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			l.toks = append(l.toks, token{typ: tokEOF, pos: l.pos})
			return l.toks, nil
		}
		if err := l.next(); err != nil {
			return nil, err
		}
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		r, w := utf8.DecodeRuneInString(l.src[l.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		l.pos += w
	}
}

func (l *lexer) emit(typ tokenType, start int) {
	l.toks = append(l.toks, token{typ: typ, text: l.src[start:l.pos], pos: start})
}

func (l *lexer) fail(pos int, detail string) error {
	return &Error{Formula: l.src, Pos: pos, Detail: detail, Wrapped: ErrSyntax}
}

func (l *lexer) next() error {
	start := l.pos
	c := l.src[l.pos]

	switch {
	case isDigit(c) || (c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		return l.number()
	case c == '"' || c == '\'':
		return l.str(c)
	}

	r, w := utf8.DecodeRuneInString(l.src[l.pos:])
	if r == '_' || unicode.IsLetter(r) {
		l.pos += w
		for l.pos < len(l.src) {
			r, w = utf8.DecodeRuneInString(l.src[l.pos:])
			if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				break
			}
			l.pos += w
		}
		word := l.src[start:l.pos]
		if kw, ok := keywords[word]; ok {
			l.emit(kw, start)
		} else {
			l.emit(tokIdent, start)
		}
		return nil
	}

	two := ""
	if l.pos+1 < len(l.src) {
		two = l.src[l.pos : l.pos+2]
	}
	switch two {
	case "**":
		l.pos += 2
		l.emit(tokPow, start)
		return nil
	case "//":
		l.pos += 2
		l.emit(tokFloorDiv, start)
		return nil
	case "==":
		l.pos += 2
		l.emit(tokEq, start)
		return nil
	case "!=":
		l.pos += 2
		l.emit(tokNeq, start)
		return nil
	case "<=":
		l.pos += 2
		l.emit(tokLessEq, start)
		return nil
	case ">=":
		l.pos += 2
		l.emit(tokGreaterEq, start)
		return nil
	}

	single := map[byte]tokenType{
		'+': tokPlus, '-': tokMinus, '*': tokStar, '/': tokSlash, '%': tokPercent,
		'<': tokLess, '>': tokGreater, '(': tokLParen, ')': tokRParen,
		'[': tokLSquare, ']': tokRSquare, ',': tokComma,
	}
	if typ, ok := single[c]; ok {
		l.pos++
		l.emit(typ, start)
		return nil
	}
	return l.fail(start, "unexpected character "+strconv.QuoteRune(r))
}

func (l *lexer) number() error {
	start := l.pos
	for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '_') {
		l.pos++
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '_') {
			l.pos++
		}
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		l.pos++
		if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
			l.pos++
		}
		digits := l.pos
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
		if digits == l.pos {
			return l.fail(start, "malformed exponent")
		}
	}
	text := l.src[start:l.pos]
	f, err := strconv.ParseFloat(strings.ReplaceAll(text, "_", ""), 64)
	if err != nil {
		// ParseFloat reports range errors with ±Inf, which is an accepted value.
		if ne, ok := err.(*strconv.NumError); !ok || ne.Err != strconv.ErrRange {
			return l.fail(start, "malformed number "+strconv.Quote(text))
		}
	}
	l.toks = append(l.toks, token{typ: tokNumber, text: text, num: f, pos: start})
	return nil
}

func (l *lexer) str(quote byte) error {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == quote:
			l.pos++
			l.toks = append(l.toks, token{typ: tokString, text: sb.String(), pos: start})
			return nil
		case c == '\\' && l.pos+1 < len(l.src):
			l.pos++
			switch e := l.src[l.pos]; e {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(e)
			}
			l.pos++
		case c == '\n':
			return l.fail(start, "unterminated string")
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
	return l.fail(start, "unterminated string")
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
