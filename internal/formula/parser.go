package formula

import "fmt"

const (
	// MaxLength is the longest formula accepted, in bytes.
	MaxLength = 4096
	// MaxDepth bounds parenthesis, unary and call nesting.
	MaxDepth = 64
	// MaxArgs bounds the argument count of a builtin call.
	MaxArgs = 64
)

type node interface {
	position() int
}

type (
	numberLit struct {
		pos int
		val float64
	}
	stringLit struct {
		pos int
		val string
	}
	constLit struct {
		pos int
		val any
	}
	identNode struct {
		pos  int
		name string
	}
	unaryNode struct {
		pos     int
		op      tokenType
		operand node
	}
	binaryNode struct {
		pos         int
		op          tokenType
		left, right node
	}
	// logicNode is and/or; it short-circuits and yields an operand.
	logicNode struct {
		pos         int
		op          tokenType
		left, right node
	}
	notNode struct {
		pos     int
		operand node
	}
	// compareNode is a chain a < b <= c evaluated pairwise.
	compareNode struct {
		pos      int
		operands []node
		ops      []tokenType
	}
	indexNode struct {
		pos   int
		value node
		index node
	}
	callNode struct {
		pos  int
		name string
		args []node
	}
)

func (n *numberLit) position() int   { return n.pos }
func (n *stringLit) position() int   { return n.pos }
func (n *constLit) position() int    { return n.pos }
func (n *identNode) position() int   { return n.pos }
func (n *unaryNode) position() int   { return n.pos }
func (n *binaryNode) position() int  { return n.pos }
func (n *logicNode) position() int   { return n.pos }
func (n *notNode) position() int     { return n.pos }
func (n *compareNode) position() int { return n.pos }
func (n *indexNode) position() int   { return n.pos }
func (n *callNode) position() int    { return n.pos }

type parser struct {
	src   string
	toks  []token
	pos   int
	depth int
}

func parse(src string) (node, error) {
	if len(src) > MaxLength {
		return nil, &Error{Formula: src, Pos: MaxLength, Detail: fmt.Sprintf("longer than %d bytes", MaxLength), Wrapped: ErrTooComplex}
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	if p.peek().typ == tokEOF {
		return nil, p.fail(p.peek(), "empty formula")
	}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.typ != tokEOF {
		return nil, p.fail(tok, "unexpected "+describe(tok))
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	tok := p.toks[p.pos]
	if tok.typ != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(typ tokenType) (token, error) {
	tok := p.peek()
	if tok.typ != typ {
		return tok, p.fail(tok, fmt.Sprintf("expected %s, found %s", typ, describe(tok)))
	}
	return p.advance(), nil
}

func (p *parser) fail(tok token, detail string) error {
	return &Error{Formula: p.src, Pos: tok.pos, Detail: detail, Wrapped: ErrSyntax}
}

func (p *parser) enter(tok token) error {
	p.depth++
	if p.depth > MaxDepth {
		return &Error{Formula: p.src, Pos: tok.pos, Detail: fmt.Sprintf("nested deeper than %d", MaxDepth), Wrapped: ErrTooComplex}
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func describe(tok token) string {
	switch tok.typ {
	case tokEOF:
		return "end of formula"
	case tokNumber, tokIdent:
		return fmt.Sprintf("%q", tok.text)
	case tokString:
		return "string"
	}
	return fmt.Sprintf("%q", tok.typ.String())
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().typ == tokOr {
		op := p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &logicNode{pos: op.pos, op: tokOr, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek().typ == tokAnd {
		op := p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &logicNode{pos: op.pos, op: tokAnd, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.peek().typ != tokNot {
		return p.parseComparison()
	}
	op := p.advance()
	if err := p.enter(op); err != nil {
		return nil, err
	}
	defer p.leave()
	operand, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	return &notNode{pos: op.pos, operand: operand}, nil
}

func isComparison(t tokenType) bool {
	switch t {
	case tokEq, tokNeq, tokLess, tokLessEq, tokGreater, tokGreaterEq:
		return true
	}
	return false
}

func (p *parser) parseComparison() (node, error) {
	first, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if !isComparison(p.peek().typ) {
		return first, nil
	}
	cmp := &compareNode{pos: p.peek().pos, operands: []node{first}}
	for isComparison(p.peek().typ) {
		op := p.advance()
		next, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		cmp.ops = append(cmp.ops, op.typ)
		cmp.operands = append(cmp.operands, next)
	}
	return cmp, nil
}

func (p *parser) parseSum() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for t := p.peek().typ; t == tokPlus || t == tokMinus; t = p.peek().typ {
		op := p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{pos: op.pos, op: op.typ, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek().typ
		if t != tokStar && t != tokSlash && t != tokFloorDiv && t != tokPercent {
			return left, nil
		}
		op := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{pos: op.pos, op: op.typ, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	t := p.peek().typ
	if t != tokPlus && t != tokMinus {
		return p.parsePower()
	}
	op := p.advance()
	if err := p.enter(op); err != nil {
		return nil, err
	}
	defer p.leave()
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &unaryNode{pos: op.pos, op: op.typ, operand: operand}, nil
}

// parsePower handles **, which is right-associative and whose right operand
// may carry its own sign: 2 ** -1.
func (p *parser) parsePower() (node, error) {
	base, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if p.peek().typ != tokPow {
		return base, nil
	}
	op := p.advance()
	if err := p.enter(op); err != nil {
		return nil, err
	}
	defer p.leave()
	exp, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &binaryNode{pos: op.pos, op: tokPow, left: base, right: exp}, nil
}

func (p *parser) parsePostfix() (node, error) {
	n, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for p.peek().typ == tokLSquare {
		open := p.advance()
		if err := p.enter(open); err != nil {
			return nil, err
		}
		idx, err := p.parseOr()
		p.leave()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRSquare); err != nil {
			return nil, err
		}
		n = &indexNode{pos: open.pos, value: n, index: idx}
	}
	return n, nil
}

func (p *parser) parseAtom() (node, error) {
	tok := p.peek()
	switch tok.typ {
	case tokNumber:
		p.advance()
		return &numberLit{pos: tok.pos, val: tok.num}, nil
	case tokString:
		p.advance()
		return &stringLit{pos: tok.pos, val: tok.text}, nil
	case tokTrue:
		p.advance()
		return &constLit{pos: tok.pos, val: true}, nil
	case tokFalse:
		p.advance()
		return &constLit{pos: tok.pos, val: false}, nil
	case tokNone:
		p.advance()
		return &constLit{pos: tok.pos, val: nil}, nil
	case tokIdent:
		p.advance()
		if p.peek().typ == tokLParen {
			return p.parseCall(tok)
		}
		return &identNode{pos: tok.pos, name: tok.text}, nil
	case tokLParen:
		p.advance()
		if err := p.enter(tok); err != nil {
			return nil, err
		}
		defer p.leave()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return nil, p.fail(tok, "unexpected "+describe(tok))
}

func (p *parser) parseCall(name token) (node, error) {
	if _, ok := builtins[name.text]; !ok {
		return nil, &Error{Formula: p.src, Pos: name.pos, Detail: fmt.Sprintf("unknown function %q", name.text), Wrapped: ErrUndefined}
	}
	open := p.advance()
	if err := p.enter(open); err != nil {
		return nil, err
	}
	defer p.leave()

	call := &callNode{pos: name.pos, name: name.text}
	if p.peek().typ == tokRParen {
		p.advance()
		return call, nil
	}
	for {
		if len(call.args) == MaxArgs {
			return nil, &Error{Formula: p.src, Pos: p.peek().pos, Detail: fmt.Sprintf("more than %d arguments", MaxArgs), Wrapped: ErrTooComplex}
		}
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		call.args = append(call.args, arg)
		tok := p.advance()
		switch tok.typ {
		case tokRParen:
			return call, nil
		case tokComma:
			if p.peek().typ == tokRParen {
				p.advance()
				return call, nil
			}
		default:
			return nil, p.fail(tok, "expected , or ) in call, found "+describe(tok))
		}
	}
}
