package compiler

import (
	"errors"
	"strings"
)

// Parser consumes the flat token slice produced by the Lexer and builds an
// arena AST. Every production saves the cursor and restores it on failure, so
// a failed alternative never moves the shared cursor.
//
// Grammar:
//
//	program     = functionDecl+ EOF
//	functionDecl= "func" IDENT "(" params? ")" block
//	block       = "{" stmt* "}"
//	stmt        = while | if | return | print | scan | call ";" | (assign ";")+
//	while       = "while" "(" comparison ")" block
//	if          = "if" "(" comparison ")" block ("else" block)?
//	comparison  = expr (relop expr)?
//	assign      = IDENT "=" expr
//	expr        = term (("+" | "-") term)*
//	term        = power (("*" | "/") term)?
//	power       = primary ("^" power)?
//	primary     = "(" expr ")" | NUMBER | call | IDENT | "sqrt" "(" expr ")" | "-" primary
//	call        = IDENT "(" (expr ("," expr)*)? ")"
type Parser struct {
	tokens      []Token
	pos         int
	tree        *Tree
	syms        *SymbolTable
	sourceLines []string
}

func NewParser(tokens []Token, syms *SymbolTable, rawSource string) *Parser {
	return &Parser{
		tokens:      tokens,
		tree:        NewTree(),
		syms:        syms,
		sourceLines: strings.Split(rawSource, "\n"),
	}
}

type production func() (NodeID, error)

// errorAt builds a SyntaxError for the token under the cursor.
func (p *Parser) errorAt(expected string) error {
	tok := p.peek()
	got := tok.Lexeme
	if tok.Type == EOF {
		got = "end of input"
	}
	snippet := ""
	if idx := tok.Line - 1; idx >= 0 && idx < len(p.sourceLines) {
		snippet = strings.TrimSpace(p.sourceLines[idx])
	}
	return &SyntaxError{Pos: p.pos, Line: tok.Line, Expected: expected, Got: got, Snippet: snippet}
}

func (p *Parser) peek() Token {
	return p.peekAt(0)
}

func (p *Parser) peekAt(offset int) Token {
	if p.pos+offset >= len(p.tokens) {
		if len(p.tokens) > 0 {
			last := p.tokens[len(p.tokens)-1]
			return Token{Type: EOF, Line: last.Line, Offset: last.Offset}
		}
		return Token{Type: EOF, Line: 1}
	}
	return p.tokens[p.pos+offset]
}

func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expect consumes the current token if it matches tt.
func (p *Parser) expect(tt TokenType, what string) (Token, error) {
	if p.peek().Type != tt {
		return Token{}, p.errorAt(what)
	}
	return p.advance(), nil
}

// attempt runs fn and rewinds the cursor if it fails.
func (p *Parser) attempt(fn production) (NodeID, error) {
	start := p.pos
	id, err := fn()
	if err != nil {
		p.pos = start
		return NoNode, err
	}
	return id, nil
}

// choice tries each alternative from the same cursor. A semantic error aborts
// at once; otherwise the syntax error that got furthest is reported.
func (p *Parser) choice(alts ...production) (NodeID, error) {
	var best *SyntaxError
	for _, alt := range alts {
		id, err := p.attempt(alt)
		if err == nil {
			return id, nil
		}
		var se *SyntaxError
		if !errors.As(err, &se) {
			return NoNode, err
		}
		if best == nil || se.Pos > best.Pos {
			best = se
		}
	}
	return NoNode, best
}

// variable builds a reference to a name that must not be a function.
func (p *Parser) variable(tok Token) (NodeID, error) {
	if sym := p.syms.At(tok.Sym); sym.Kind == SymFunction {
		return NoNode, &SemanticError{Msg: "function " + quote(sym.Name) + " used as a variable"}
	}
	return p.tree.NewVariable(tok.Sym), nil
}

func quote(s string) string {
	return "\"" + s + "\""
}

//  Program structure

func (p *Parser) parseProgram() (NodeID, error) {
	var decls []NodeID
	for {
		fn, err := p.attempt(p.parseFunctionDecl)
		if err != nil {
			return NoNode, err
		}
		decls = append(decls, fn)
		if p.peek().Type == EOF {
			break
		}
	}
	if err := checkFrames(p.syms); err != nil {
		return NoNode, err
	}
	root := NoNode
	for i := len(decls) - 1; i >= 0; i-- {
		root = p.tree.NewOp(OpThen, decls[i], root)
	}
	return root, nil
}

func (p *Parser) parseFunctionDecl() (NodeID, error) {
	if _, err := p.expect(FUNC, `"func"`); err != nil {
		return NoNode, err
	}
	nameTok, err := p.expect(IDENTIFIER, "function name")
	if err != nil {
		return NoNode, err
	}
	if _, err := p.expect(LPAREN, `"("`); err != nil {
		return NoNode, err
	}

	var params []NodeID
	if p.peek().Type == IDENTIFIER {
		for {
			tok, err := p.expect(IDENTIFIER, "parameter name")
			if err != nil {
				return NoNode, err
			}
			v, err := p.variable(tok)
			if err != nil {
				return NoNode, err
			}
			params = append(params, v)
			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(RPAREN, `")"`); err != nil {
		return NoNode, err
	}

	if err := p.syms.markFunction(nameTok.Sym); err != nil {
		return NoNode, err
	}
	if err := declareFunction(p.syms, nameTok.Sym, len(params)); err != nil {
		return NoNode, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return NoNode, err
	}

	list := NoNode
	for i := len(params) - 1; i >= 0; i-- {
		list = p.tree.NewOp(OpComma, params[i], list)
	}
	fn := p.tree.NewOp(OpFunc, p.tree.NewVariable(nameTok.Sym), p.tree.NewOp(OpParams, list, body))
	if err := bindFunction(p.tree, p.syms, fn); err != nil {
		return NoNode, err
	}
	return fn, nil
}

// parseBlock parses "{" stmt* "}" into a right-leaning OpThen chain, newest
// statement furthest right. An empty block is NoNode.
func (p *Parser) parseBlock() (NodeID, error) {
	if _, err := p.expect(LBRACE, `"{"`); err != nil {
		return NoNode, err
	}
	var stmts []NodeID
	for p.peek().Type != RBRACE {
		if p.peek().Type == EOF {
			return NoNode, p.errorAt(`"}"`)
		}
		s, err := p.parseStatement()
		if err != nil {
			return NoNode, err
		}
		stmts = append(stmts, s)
	}
	p.advance()

	body := NoNode
	for i := len(stmts) - 1; i >= 0; i-- {
		body = p.tree.NewOp(OpThen, stmts[i], body)
	}
	return body, nil
}

//  Statements

func (p *Parser) parseStatement() (NodeID, error) {
	return p.choice(
		p.parseWhile,
		p.parseIf,
		p.parseReturn,
		p.parsePrint,
		p.parseScan,
		p.parseCallStatement,
		p.parseAssignments,
	)
}

func (p *Parser) parseWhile() (NodeID, error) {
	if _, err := p.expect(WHILE, `"while"`); err != nil {
		return NoNode, err
	}
	cond, err := p.parseCondition()
	if err != nil {
		return NoNode, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return NoNode, err
	}
	return p.tree.NewOp(OpWhile, cond, body), nil
}

func (p *Parser) parseIf() (NodeID, error) {
	if _, err := p.expect(IF, `"if"`); err != nil {
		return NoNode, err
	}
	cond, err := p.parseCondition()
	if err != nil {
		return NoNode, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return NoNode, err
	}
	els := NoNode
	if p.peek().Type == ELSE {
		p.advance()
		if els, err = p.parseBlock(); err != nil {
			return NoNode, err
		}
	}
	return p.tree.NewOp(OpIf, cond, p.tree.NewOp(OpBranch, then, els)), nil
}

// parseCondition parses "(" comparison ")".
func (p *Parser) parseCondition() (NodeID, error) {
	if _, err := p.expect(LPAREN, `"("`); err != nil {
		return NoNode, err
	}
	cond, err := p.parseComparison()
	if err != nil {
		return NoNode, err
	}
	if _, err := p.expect(RPAREN, `")"`); err != nil {
		return NoNode, err
	}
	return cond, nil
}

func (p *Parser) parseComparison() (NodeID, error) {
	left, err := p.parseExpr()
	if err != nil {
		return NoNode, err
	}
	op, ok := relationalOps[p.peek().Type]
	if !ok {
		return left, nil
	}
	p.advance()
	right, err := p.parseExpr()
	if err != nil {
		return NoNode, err
	}
	return p.tree.NewOp(op, left, right), nil
}

func (p *Parser) parseReturn() (NodeID, error) {
	if _, err := p.expect(RETURN, `"return"`); err != nil {
		return NoNode, err
	}
	value := NoNode
	if p.peek().Type != SEMICOLON {
		var err error
		if value, err = p.parseExpr(); err != nil {
			return NoNode, err
		}
	}
	if _, err := p.expect(SEMICOLON, `";"`); err != nil {
		return NoNode, err
	}
	return p.tree.NewOp(OpReturn, NoNode, value), nil
}

func (p *Parser) parsePrint() (NodeID, error) {
	if _, err := p.expect(PRINT, `"print"`); err != nil {
		return NoNode, err
	}
	if _, err := p.expect(LPAREN, `"("`); err != nil {
		return NoNode, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return NoNode, err
	}
	if _, err := p.expect(RPAREN, `")"`); err != nil {
		return NoNode, err
	}
	if _, err := p.expect(SEMICOLON, `";"`); err != nil {
		return NoNode, err
	}
	return p.tree.NewOp(OpPrint, NoNode, value), nil
}

func (p *Parser) parseScan() (NodeID, error) {
	if _, err := p.expect(SCAN, `"scan"`); err != nil {
		return NoNode, err
	}
	if _, err := p.expect(LPAREN, `"("`); err != nil {
		return NoNode, err
	}
	tok, err := p.expect(IDENTIFIER, "variable name")
	if err != nil {
		return NoNode, err
	}
	target, err := p.variable(tok)
	if err != nil {
		return NoNode, err
	}
	if _, err := p.expect(RPAREN, `")"`); err != nil {
		return NoNode, err
	}
	if _, err := p.expect(SEMICOLON, `";"`); err != nil {
		return NoNode, err
	}
	return p.tree.NewOp(OpScan, NoNode, target), nil
}

func (p *Parser) parseCallStatement() (NodeID, error) {
	call, err := p.parseCall()
	if err != nil {
		return NoNode, err
	}
	if _, err := p.expect(SEMICOLON, `";"`); err != nil {
		return NoNode, err
	}
	return call, nil
}

// parseAssignments consumes a run of consecutive assignments and chains them
// left to right: ((a1 ; a2) ; a3).
func (p *Parser) parseAssignments() (NodeID, error) {
	one := func() (NodeID, error) {
		a, err := p.parseAssign()
		if err != nil {
			return NoNode, err
		}
		if _, err := p.expect(SEMICOLON, `";"`); err != nil {
			return NoNode, err
		}
		return a, nil
	}

	group, err := p.attempt(one)
	if err != nil {
		return NoNode, err
	}
	for p.peek().Type == IDENTIFIER && p.peekAt(1).Type == ASSIGN {
		next, err := p.attempt(one)
		if err != nil {
			return NoNode, err
		}
		group = p.tree.NewOp(OpThen, group, next)
	}
	return group, nil
}

func (p *Parser) parseAssign() (NodeID, error) {
	tok, err := p.expect(IDENTIFIER, "statement")
	if err != nil {
		return NoNode, err
	}
	if _, err := p.expect(ASSIGN, `"="`); err != nil {
		return NoNode, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return NoNode, err
	}
	target, err := p.variable(tok)
	if err != nil {
		return NoNode, err
	}
	return p.tree.NewOp(OpAssign, target, value), nil
}

//  Expressions

func (p *Parser) parseExpr() (NodeID, error) {
	left, err := p.parseTerm()
	if err != nil {
		return NoNode, err
	}
	for {
		tok := p.peek()
		switch {
		case tok.Type == PLUS || tok.Type == MINUS:
			p.advance()
			right, err := p.parseTerm()
			if err != nil {
				return NoNode, err
			}
			op := OpAdd
			if tok.Type == MINUS {
				op = OpSub
			}
			left = p.tree.NewOp(op, left, right)
		case tok.Signed():
			// "n-1" lexes as n, -1: the literal's sign is the operator.
			right, err := p.parseTerm()
			if err != nil {
				return NoNode, err
			}
			lead := right
			for p.tree.Node(lead).Kind == OperationNode && p.tree.Node(lead).Left != NoNode {
				lead = p.tree.Node(lead).Left
			}
			p.tree.Node(lead).Value = -p.tree.Node(lead).Value
			left = p.tree.NewOp(OpSub, left, right)
		default:
			return left, nil
		}
	}
}

// parseTerm is right-recursive on the remainder: a / b / c is a / (b / c).
func (p *Parser) parseTerm() (NodeID, error) {
	left, err := p.parsePower()
	if err != nil {
		return NoNode, err
	}
	tt := p.peek().Type
	if tt != STAR && tt != SLASH {
		return left, nil
	}
	p.advance()
	right, err := p.parseTerm()
	if err != nil {
		return NoNode, err
	}
	op := OpMul
	if tt == SLASH {
		op = OpDiv
	}
	return p.tree.NewOp(op, left, right), nil
}

func (p *Parser) parsePower() (NodeID, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return NoNode, err
	}
	if p.peek().Type != CARET {
		return base, nil
	}
	p.advance()
	exp, err := p.parsePower()
	if err != nil {
		return NoNode, err
	}
	return p.tree.NewOp(OpPow, base, exp), nil
}

func (p *Parser) parsePrimary() (NodeID, error) {
	id, err := p.choice(
		p.parseParenExpr,
		p.parseNumber,
		p.parseCall,
		p.parseVariable,
		p.parseSqrt,
		p.parseNegation,
	)
	if err != nil {
		var se *SyntaxError
		if errors.As(err, &se) && se.Pos == p.pos {
			return NoNode, p.errorAt("expression")
		}
	}
	return id, err
}

func (p *Parser) parseParenExpr() (NodeID, error) {
	if _, err := p.expect(LPAREN, `"("`); err != nil {
		return NoNode, err
	}
	e, err := p.parseExpr()
	if err != nil {
		return NoNode, err
	}
	if _, err := p.expect(RPAREN, `")"`); err != nil {
		return NoNode, err
	}
	return e, nil
}

func (p *Parser) parseNumber() (NodeID, error) {
	tok, err := p.expect(NUMBER, "number")
	if err != nil {
		return NoNode, err
	}
	return p.tree.NewNumber(tok.Value), nil
}

func (p *Parser) parseVariable() (NodeID, error) {
	tok, err := p.expect(IDENTIFIER, "variable")
	if err != nil {
		return NoNode, err
	}
	return p.variable(tok)
}

func (p *Parser) parseSqrt() (NodeID, error) {
	if _, err := p.expect(SQRT, `"sqrt"`); err != nil {
		return NoNode, err
	}
	arg, err := p.parseParenExpr()
	if err != nil {
		return NoNode, err
	}
	return p.tree.NewOp(OpSqrt, NoNode, arg), nil
}

// parseNegation builds -x as (-1) * x.
func (p *Parser) parseNegation() (NodeID, error) {
	if _, err := p.expect(MINUS, `"-"`); err != nil {
		return NoNode, err
	}
	operand, err := p.parsePrimary()
	if err != nil {
		return NoNode, err
	}
	return p.tree.NewOp(OpMul, p.tree.NewNumber(-1), operand), nil
}

// parseCall parses name(args) and reconciles the arity with any earlier
// declaration or call of name.
func (p *Parser) parseCall() (NodeID, error) {
	nameTok, err := p.expect(IDENTIFIER, "function name")
	if err != nil {
		return NoNode, err
	}
	if _, err := p.expect(LPAREN, `"("`); err != nil {
		return NoNode, err
	}
	var args []NodeID
	if p.peek().Type != RPAREN {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return NoNode, err
			}
			args = append(args, arg)
			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(RPAREN, `")"`); err != nil {
		return NoNode, err
	}
	if err := p.syms.reconcileArity(nameTok.Sym, len(args)); err != nil {
		return NoNode, err
	}

	list := NoNode
	for i := len(args) - 1; i >= 0; i-- {
		list = p.tree.NewOp(OpComma, args[i], list)
	}
	return p.tree.NewOp(OpCall, p.tree.NewVariable(nameTok.Sym), list), nil
}

// Parse builds the program tree from tokens, filling in function facts in
// syms. Any error aborts the whole parse.
func Parse(tokens []Token, syms *SymbolTable, rawSource string) (*Tree, error) {
	p := NewParser(tokens, syms, rawSource)
	root, err := p.parseProgram()
	if err != nil {
		return nil, err
	}
	if p.peek().Type != EOF {
		return nil, p.errorAt("end of input")
	}
	p.tree.SetRoot(root)
	return p.tree, nil
}
