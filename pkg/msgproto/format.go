package msgproto

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrUnknownType is returned for a parameter type specifier the
	// firmware does not understand.
	ErrUnknownType = errors.New("msgproto: unknown parameter type")

	// ErrArity is returned when Encode receives the wrong number of values.
	ErrArity = errors.New("msgproto: wrong number of arguments")

	// ErrRange is returned when a value does not fit its parameter type.
	ErrRange = errors.New("msgproto: argument out of range")
)

// ParamType is a firmware parameter type specifier.
type ParamType string

const (
	TypeUint8  ParamType = "%c"
	TypeUint16 ParamType = "%hu"
	TypeUint32 ParamType = "%u"
	TypeInt16  ParamType = "%hi"
	TypeInt32  ParamType = "%i"
)

func (t ParamType) bounds() (lo, hi int64, ok bool) {
	switch t {
	case TypeUint8:
		return 0, math.MaxUint8, true
	case TypeUint16:
		return 0, math.MaxUint16, true
	case TypeUint32:
		return 0, math.MaxUint32, true
	case TypeInt16:
		return math.MinInt16, math.MaxInt16, true
	case TypeInt32:
		return math.MinInt32, math.MaxInt32, true
	}
	return 0, 0, false
}

// Param is a single named parameter of a Format.
type Param struct {
	Name string
	Type ParamType
}

// Format describes a command the firmware accepts.
type Format struct {
	Name   string
	Params []Param
}

// String renders the format back into its declaration form.
func (f *Format) String() string {
	var b strings.Builder
	b.WriteString(f.Name)
	for _, p := range f.Params {
		fmt.Fprintf(&b, " %s=%s", p.Name, p.Type)
	}
	return b.String()
}

// Encode renders args as a command line, checking each value against the
// range of its parameter type.
func (f *Format) Encode(args ...int64) (string, error) {
	if len(args) != len(f.Params) {
		return "", fmt.Errorf("%w: %s takes %d, got %d", ErrArity, f.Name, len(f.Params), len(args))
	}

	var b strings.Builder
	b.WriteString(f.Name)
	for i, p := range f.Params {
		lo, hi, _ := p.Type.bounds()
		if args[i] < lo || args[i] > hi {
			return "", fmt.Errorf("%w: %s %s=%d (%s)", ErrRange, f.Name, p.Name, args[i], p.Type)
		}
		b.WriteByte(' ')
		b.WriteString(p.Name)
		b.WriteByte('=')
		b.WriteString(strconv.FormatInt(args[i], 10))
	}
	return b.String(), nil
}

// Decode checks an encoded line against the format and returns its values
// in parameter order.
func (f *Format) Decode(l *Line) ([]int64, error) {
	if l.Name != f.Name {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrSyntax, f.Name, l.Name)
	}
	if len(l.Args) != len(f.Params) {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrArity, f.Name, len(f.Params), len(l.Args))
	}

	values := make([]int64, len(f.Params))
	for i, p := range f.Params {
		v, err := l.Int(p.Name)
		if err != nil {
			return nil, err
		}
		lo, hi, _ := p.Type.bounds()
		if v < lo || v > hi {
			return nil, fmt.Errorf("%w: %s %s=%d (%s)", ErrRange, f.Name, p.Name, v, p.Type)
		}
		values[i] = v
	}
	return values, nil
}
