package msgproto

import (
	"errors"
	"fmt"

	"github.com/alecthomas/participle/v2"
)

// ErrSyntax is returned when a format string or command line does not match
// the command grammar.
var ErrSyntax = errors.New("msgproto: syntax error")

var (
	formatParser = participle.MustBuild[formatDecl](
		participle.Lexer(CommandLexer),
		participle.Elide("Whitespace"),
	)
	lineParser = participle.MustBuild[lineDecl](
		participle.Lexer(CommandLexer),
		participle.Elide("Whitespace"),
	)
)

// ParseFormat parses a message format string such as
// "update_digital_out oid=%c value=%c".
func ParseFormat(format string) (*Format, error) {
	decl, err := formatParser.ParseString("", format)
	if err != nil {
		return nil, fmt.Errorf("%w: format %q: %v", ErrSyntax, format, err)
	}

	f := &Format{Name: decl.Name}
	seen := make(map[string]bool, len(decl.Params))
	for _, p := range decl.Params {
		typ := ParamType(p.Type)
		if _, _, ok := typ.bounds(); !ok {
			return nil, fmt.Errorf("%w: %q in format %q", ErrUnknownType, p.Type, format)
		}
		if seen[p.Key] {
			return nil, fmt.Errorf("%w: duplicate parameter %q in format %q", ErrSyntax, p.Key, format)
		}
		seen[p.Key] = true
		f.Params = append(f.Params, Param{Name: p.Key, Type: typ})
	}
	return f, nil
}

// ParseLine parses an encoded command line such as
// "config_shift_register oid=1 data_pin=PA0 clock_pin=PA1 latch_pin=PA2 num_registers=2".
func ParseLine(line string) (*Line, error) {
	decl, err := lineParser.ParseString("", line)
	if err != nil {
		return nil, fmt.Errorf("%w: line %q: %v", ErrSyntax, line, err)
	}

	l := &Line{Name: decl.Name}
	for _, a := range decl.Args {
		l.Args = append(l.Args, Arg{Key: a.Key, Value: a.Value})
	}
	return l, nil
}
