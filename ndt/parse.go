// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ndt

import (
	"fmt"
	"strconv"
	"unicode"
	"unicode/utf8"

	"fortio.org/safecast"
	"github.com/pkg/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokInt
	tokName
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of input"
	}
	return strconv.Quote(t.text)
}

var punctuations = []string{"...", "**", "->", "*", ",", ":", "[", "]", "(", ")", "{", "}", "="}

func lex(s string) ([]token, error) {
	var toks []token
	for pos := 0; pos < len(s); {
		r, size := utf8.DecodeRuneInString(s[pos:])
		switch {
		case unicode.IsSpace(r):
			pos += size
		case unicode.IsDigit(r):
			start := pos
			for pos < len(s) && s[pos] >= '0' && s[pos] <= '9' {
				pos++
			}
			toks = append(toks, token{kind: tokInt, text: s[start:pos], pos: start})
		case r == '_' || unicode.IsLetter(r):
			start := pos
			for pos < len(s) {
				r, size := utf8.DecodeRuneInString(s[pos:])
				if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					break
				}
				pos += size
			}
			toks = append(toks, token{kind: tokName, text: s[start:pos], pos: start})
		default:
			matched := false
			for _, p := range punctuations {
				if len(s)-pos >= len(p) && s[pos:pos+len(p)] == p {
					toks = append(toks, token{kind: tokPunct, text: p, pos: pos})
					pos += len(p)
					matched = true
					break
				}
			}
			if !matched {
				return nil, errors.WithStack(&ParseError{Input: s, Pos: pos, Msg: fmt.Sprintf("unexpected character %q", r)})
			}
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(s)}), nil
}

type parser struct {
	input string
	toks  []token
	cur   int
}

func (p *parser) peek() token {
	return p.toks[p.cur]
}

func (p *parser) peekAt(i int) token {
	if p.cur+i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.cur+i]
}

func (p *parser) next() token {
	t := p.toks[p.cur]
	if t.kind != tokEOF {
		p.cur++
	}
	return t
}

func (p *parser) isPunct(text string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == text
}

func (p *parser) errorf(t token, format string, a ...any) error {
	return errors.WithStack(&ParseError{Input: p.input, Pos: t.pos, Msg: fmt.Sprintf(format, a...)})
}

// wrap attaches the position of t to an error returned by a type factory.
func (p *parser) wrap(t token, err error) error {
	if err == nil {
		return nil
	}
	return p.errorf(t, "%v", err)
}

func (p *parser) expect(text string) error {
	t := p.next()
	if t.kind != tokPunct || t.text != text {
		return p.errorf(t, "expected %q but got %s", text, t)
	}
	return nil
}

func (p *parser) expectName(name string) error {
	t := p.next()
	if t.kind != tokName || t.text != name {
		return p.errorf(t, "expected %q but got %s", name, t)
	}
	return nil
}

func (p *parser) parseInt() (int, token, error) {
	t := p.next()
	n, err := p.intValue(t)
	return n, t, err
}

func (p *parser) intValue(t token) (int, error) {
	if t.kind != tokInt {
		return 0, p.errorf(t, "expected an integer but got %s", t)
	}
	v, err := strconv.ParseInt(t.text, 10, 64)
	if err != nil {
		return 0, p.errorf(t, "invalid integer %s", t.text)
	}
	n, err := safecast.Conv[int](v)
	if err != nil {
		return 0, p.errorf(t, "integer %s out of range", t.text)
	}
	return n, nil
}

// Parse returns the type described by a type string.
func Parse(s string) (Type, error) {
	toks, err := lex(s)
	if err != nil {
		return Type{}, err
	}
	p := &parser{input: s, toks: toks}
	t, err := p.parseType()
	if err != nil {
		return Type{}, err
	}
	if end := p.peek(); end.kind != tokEOF {
		return Type{}, p.errorf(end, "unexpected %s after type %s", end, t)
	}
	return t, nil
}

// MustParse is Parse panicking on errors.
func MustParse(s string) Type {
	t, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return t
}

// dimBuilder wraps an element type in one dimension.
type dimBuilder func(elem Type) (Type, error)

func (p *parser) parseType() (Type, error) {
	dims, err := p.parseDims()
	if err != nil {
		return Type{}, err
	}
	start := p.peek()
	t, err := p.parseDType()
	if err != nil {
		return Type{}, err
	}
	if p.isPunct("->") {
		if len(dims) > 0 {
			return Type{}, p.errorf(start, "function prototype cannot have dimensions")
		}
		params, ok := tupleFields(t)
		if !ok {
			return Type{}, p.errorf(start, "parameters of a function prototype must be a tuple, got %s", t)
		}
		p.next()
		arrow := p.peek()
		ret, err := p.parseType()
		if err != nil {
			return Type{}, err
		}
		fn, err := MakeFuncProto(params, ret)
		return fn, p.wrap(arrow, err)
	}
	for i := len(dims) - 1; i >= 0; i-- {
		if t, err = dims[i](t); err != nil {
			return Type{}, p.wrap(start, err)
		}
	}
	return t, nil
}

func tupleFields(t Type) ([]Type, bool) {
	tp, ok := t.ext.(*tuple)
	if !ok || tp.isStruct() {
		return nil, false
	}
	return tp.fields, true
}

// parseDims parses the dimensions in front of a type, outermost first.
func (p *parser) parseDims() ([]dimBuilder, error) {
	var dims []dimBuilder
	for {
		t, n := p.peek(), p.peekAt(1)
		isDimToken := t.kind == tokInt ||
			t.kind == tokName && (t.text == "var" || t.text == "fixed" || IsTypevarName(t.text)) ||
			t.kind == tokPunct && t.text == "..."
		if !isDimToken {
			return dims, nil
		}
		isDim := n.kind == tokPunct && (n.text == "*" || n.text == "**" || n.text == "..." && t.kind == tokName)
		if t.kind == tokPunct {
			isDim = n.kind == tokPunct && n.text == "*"
		}
		if !isDim {
			return dims, nil
		}
		built, err := p.parseDim()
		if err != nil {
			return nil, err
		}
		dims = append(dims, built...)
		if err := p.expect("*"); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseDim() ([]dimBuilder, error) {
	t := p.next()
	if t.kind == tokPunct {
		return []dimBuilder{func(elem Type) (Type, error) { return MakeEllipsisDim("", elem) }}, nil
	}
	if p.isPunct("...") {
		p.next()
		return []dimBuilder{func(elem Type) (Type, error) { return MakeEllipsisDim(t.text, elem) }}, nil
	}
	var one dimBuilder
	switch {
	case t.kind == tokInt:
		n, err := p.intValue(t)
		if err != nil {
			return nil, err
		}
		one = func(elem Type) (Type, error) { return MakeFixedDim(n, elem) }
	case t.text == "var":
		one = MakeVarDim
	case t.text == "fixed":
		one = MakeSymbolicFixedDim
	default:
		name := t.text
		one = func(elem Type) (Type, error) { return MakeTypevarDim(name, elem) }
	}
	if !p.isPunct("**") {
		return []dimBuilder{one}, nil
	}
	p.next()
	exp := p.next()
	switch exp.kind {
	case tokInt:
		n, err := p.intValue(exp)
		if err != nil {
			return nil, err
		}
		if n > 64 {
			return nil, p.errorf(exp, "dimension exponent %d is too large", n)
		}
		dims := make([]dimBuilder, n)
		for i := range dims {
			dims[i] = one
		}
		return dims, nil
	case tokName:
		if !IsTypevarName(exp.text) {
			return nil, p.errorf(exp, "dimension exponent %s must be an integer or a type variable", exp.text)
		}
		base, err := one(Void)
		if err != nil {
			return nil, p.wrap(t, err)
		}
		return []dimBuilder{func(elem Type) (Type, error) { return MakePowDim(base, exp.text, elem) }}, nil
	}
	return nil, p.errorf(exp, "expected a dimension exponent but got %s", exp)
}

func (p *parser) parseDType() (Type, error) {
	t := p.peek()
	switch {
	case t.kind == tokPunct && t.text == "(":
		return p.parseTuple()
	case t.kind == tokPunct && t.text == "{":
		return p.parseStruct()
	case t.kind != tokName:
		return Type{}, p.errorf(t, "expected a type but got %s", t)
	}
	p.next()
	switch t.text {
	case "string":
		if !p.isPunct("[") {
			return String, nil
		}
		p.next()
		n, nt, err := p.parseInt()
		if err != nil {
			return Type{}, err
		}
		if err := p.expect("]"); err != nil {
			return Type{}, err
		}
		tp, err := MakeFixedString(n)
		return tp, p.wrap(nt, err)
	case "fixed_bytes":
		return p.parseFixedBytes()
	case "complex":
		if !p.isPunct("[") {
			return Complex128, nil
		}
		p.next()
		comp := p.next()
		if err := p.expect("]"); err != nil {
			return Type{}, err
		}
		switch comp.text {
		case "float32":
			return Complex64, nil
		case "float64":
			return Complex128, nil
		}
		return Type{}, p.errorf(comp, "complex component must be float32 or float64, got %s", comp)
	case "byteswap":
		args, err := p.parseArgs(nil)
		if err != nil {
			return Type{}, err
		}
		tp, err := MakeByteswap(args[0])
		return tp, p.wrap(t, err)
	case "convert":
		args, err := p.parseArgs([]string{"to", "from"})
		if err != nil {
			return Type{}, err
		}
		tp, err := MakeConvert(args[0], args[1])
		return tp, p.wrap(t, err)
	case "view":
		args, err := p.parseArgs([]string{"as", "original"})
		if err != nil {
			return Type{}, err
		}
		tp, err := MakeView(args[0], args[1])
		return tp, p.wrap(t, err)
	}
	if tp, ok := builtinByName(t.text); ok {
		return tp, nil
	}
	if IsTypevarName(t.text) {
		tp, err := MakeTypevar(t.text)
		return tp, p.wrap(t, err)
	}
	return Type{}, p.errorf(t, "unknown type %s", t.text)
}

// parseArgs parses the bracketed type arguments of an expression type. With
// no keys, a single unnamed argument is expected.
func (p *parser) parseArgs(keys []string) ([]Type, error) {
	if err := p.expect("["); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		arg, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return []Type{arg}, p.expect("]")
	}
	args := make([]Type, len(keys))
	for i, key := range keys {
		if i > 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
		if err := p.expectName(key); err != nil {
			return nil, err
		}
		if err := p.expect("="); err != nil {
			return nil, err
		}
		var err error
		if args[i], err = p.parseType(); err != nil {
			return nil, err
		}
	}
	return args, p.expect("]")
}

func (p *parser) parseFixedBytes() (Type, error) {
	if err := p.expect("["); err != nil {
		return Type{}, err
	}
	size, st, err := p.parseInt()
	if err != nil {
		return Type{}, err
	}
	align := 1
	if p.isPunct(",") {
		p.next()
		if err := p.expectName("align"); err != nil {
			return Type{}, err
		}
		if err := p.expect("="); err != nil {
			return Type{}, err
		}
		if align, _, err = p.parseInt(); err != nil {
			return Type{}, err
		}
	}
	if err := p.expect("]"); err != nil {
		return Type{}, err
	}
	tp, err := MakeFixedBytes(size, align)
	return tp, p.wrap(st, err)
}

func (p *parser) parseTuple() (Type, error) {
	open := p.next()
	var fields []Type
	for !p.isPunct(")") {
		if len(fields) > 0 {
			if err := p.expect(","); err != nil {
				return Type{}, err
			}
		}
		field, err := p.parseType()
		if err != nil {
			return Type{}, err
		}
		fields = append(fields, field)
	}
	p.next()
	tp, err := MakeTuple(fields...)
	return tp, p.wrap(open, err)
}

func (p *parser) parseStruct() (Type, error) {
	open := p.next()
	var names []string
	var fields []Type
	for !p.isPunct("}") {
		if len(fields) > 0 {
			if err := p.expect(","); err != nil {
				return Type{}, err
			}
		}
		name := p.next()
		if name.kind != tokName {
			return Type{}, p.errorf(name, "expected a field name but got %s", name)
		}
		if err := p.expect(":"); err != nil {
			return Type{}, err
		}
		field, err := p.parseType()
		if err != nil {
			return Type{}, err
		}
		names = append(names, name.text)
		fields = append(fields, field)
	}
	p.next()
	tp, err := MakeStruct(names, fields)
	return tp, p.wrap(open, err)
}
