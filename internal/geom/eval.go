package geom

import (
	"math"
	"strconv"
)

// funcs maps the function names supported in expressions to implementations.
var funcs = map[string]func(args []float64) (float64, bool){
	"sqrt":  func(a []float64) (float64, bool) { return math.Sqrt(at(a, 0)), len(a) == 1 },
	"abs":   func(a []float64) (float64, bool) { return math.Abs(at(a, 0)), len(a) == 1 },
	"sin":   func(a []float64) (float64, bool) { return math.Sin(at(a, 0)), len(a) == 1 },
	"cos":   func(a []float64) (float64, bool) { return math.Cos(at(a, 0)), len(a) == 1 },
	"tan":   func(a []float64) (float64, bool) { return math.Tan(at(a, 0)), len(a) == 1 },
	"asin":  func(a []float64) (float64, bool) { return math.Asin(at(a, 0)), len(a) == 1 },
	"acos":  func(a []float64) (float64, bool) { return math.Acos(at(a, 0)), len(a) == 1 },
	"atan":  func(a []float64) (float64, bool) { return math.Atan(at(a, 0)), len(a) == 1 },
	"atan2": func(a []float64) (float64, bool) { return math.Atan2(at(a, 0), at(a, 1)), len(a) == 2 },
	"exp":   func(a []float64) (float64, bool) { return math.Exp(at(a, 0)), len(a) == 1 },
	"log":   func(a []float64) (float64, bool) { return math.Log(at(a, 0)), len(a) == 1 },
	"pow":   func(a []float64) (float64, bool) { return math.Pow(at(a, 0), at(a, 1)), len(a) == 2 },
	"min":   func(a []float64) (float64, bool) { return math.Min(at(a, 0), at(a, 1)), len(a) == 2 },
	"max":   func(a []float64) (float64, bool) { return math.Max(at(a, 0), at(a, 1)), len(a) == 2 },
	"floor": func(a []float64) (float64, bool) { return math.Floor(at(a, 0)), len(a) == 1 },
	"ceil":  func(a []float64) (float64, bool) { return math.Ceil(at(a, 0)), len(a) == 1 },
	"hypot": func(a []float64) (float64, bool) { return math.Hypot(at(a, 0), at(a, 1)), len(a) == 2 },
}

func at(a []float64, i int) float64 {
	if i < len(a) {
		return a[i]
	}
	return math.NaN()
}

// constants available in every expression.
var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

// evalExpr parses and evaluates an arithmetic expression against the given
// variable lookup. The grammar is plain arithmetic with `^` as power,
// right-associative and binding tighter than every other operator, so
// `x^2 + y^2` is (x^2)+(y^2) and `-x^2` is -(x^2). Any failure (parse
// error, unknown identifier, non-finite result) yields a NotEvaluableError.
func evalExpr(expr string, lookup func(name string) (float64, bool)) (float64, error) {
	p := &exprParser{src: expr, lookup: lookup}
	v, err := p.parseSum()
	if err == nil {
		if c := p.peek(); c != 0 {
			err = &NotEvaluableError{Reason: "unexpected " + strconv.Quote(p.src[p.pos:])}
		}
	}
	if err != nil {
		if ne, ok := err.(*NotEvaluableError); ok && ne.Expr == "" {
			ne.Expr = expr
		}
		return 0, err
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &NotEvaluableError{Expr: expr, Reason: "non-finite result"}
	}
	return v, nil
}

// exprParser is a recursive-descent evaluator over the raw expression text.
// Precedence, loosest first: + -, * /, unary + -, ^.
type exprParser struct {
	src    string
	pos    int
	lookup func(name string) (float64, bool)
}

// peek skips whitespace and returns the next byte without consuming it, or
// 0 at end of input.
func (p *exprParser) peek() byte {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return p.src[p.pos]
		}
	}
	return 0
}

func (p *exprParser) parseSum() (float64, error) {
	v, err := p.parseProduct()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			rhs, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			v += rhs
		case '-':
			p.pos++
			rhs, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			v -= rhs
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseProduct() (float64, error) {
	v, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			v *= rhs
		case '/':
			p.pos++
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			v /= rhs
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	switch p.peek() {
	case '-':
		p.pos++
		v, err := p.parseUnary()
		return -v, err
	case '+':
		p.pos++
		return p.parseUnary()
	}
	return p.parsePower()
}

// parsePower recurses through parseUnary on the exponent side, which makes
// `^` right-associative and lets `2^-3` parse.
func (p *exprParser) parsePower() (float64, error) {
	v, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	if p.peek() == '^' {
		p.pos++
		exp, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return math.Pow(v, exp), nil
	}
	return v, nil
}

func (p *exprParser) parsePrimary() (float64, error) {
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		v, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, &NotEvaluableError{Reason: "missing closing parenthesis"}
		}
		p.pos++
		return v, nil

	case isDigit(c) || c == '.':
		return p.parseNumber()

	case isIdentStart(c):
		return p.parseIdent()

	case c == 0:
		return 0, &NotEvaluableError{Reason: "unexpected end of expression"}
	}
	return 0, &NotEvaluableError{Reason: "unexpected " + strconv.Quote(string(c))}
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.src) && (isDigit(p.src[p.pos]) || p.src[p.pos] == '.') {
		p.pos++
	}
	// optional exponent, only consumed when well-formed
	if p.pos < len(p.src) && (p.src[p.pos] == 'e' || p.src[p.pos] == 'E') {
		next := p.pos + 1
		if next < len(p.src) && (p.src[next] == '+' || p.src[next] == '-') {
			next++
		}
		if next < len(p.src) && isDigit(p.src[next]) {
			p.pos = next + 1
			for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
				p.pos++
			}
		}
	}

	text := p.src[start:p.pos]
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, &NotEvaluableError{Reason: "bad number " + text}
	}
	return v, nil
}

func (p *exprParser) parseIdent() (float64, error) {
	start := p.pos
	for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
		p.pos++
	}
	name := p.src[start:p.pos]

	if p.peek() == '(' {
		return p.parseCall(name)
	}

	if v, ok := p.lookup(name); ok {
		return v, nil
	}
	if v, ok := constants[name]; ok {
		return v, nil
	}
	return 0, &NotEvaluableError{Reason: "undefined identifier " + name}
}

func (p *exprParser) parseCall(name string) (float64, error) {
	fn, ok := funcs[name]
	if !ok {
		return 0, &NotEvaluableError{Reason: "unknown function " + name}
	}

	p.pos++ // consume '('
	var args []float64
	if p.peek() != ')' {
		for {
			v, err := p.parseSum()
			if err != nil {
				return 0, err
			}
			args = append(args, v)
			if p.peek() != ',' {
				break
			}
			p.pos++
		}
	}
	if p.peek() != ')' {
		return 0, &NotEvaluableError{Reason: "missing closing parenthesis in call to " + name}
	}
	p.pos++

	v, ok := fn(args)
	if !ok {
		return 0, &NotEvaluableError{Reason: "wrong argument count for " + name}
	}
	return v, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
