package msgproto

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMissingArg is returned when a command line lacks a requested parameter.
var ErrMissingArg = errors.New("msgproto: missing argument")

// Arg is one key=value pair of a command line.
type Arg struct {
	Key   string
	Value string
}

// Line is a parsed command line. Argument order is preserved because the
// firmware reads parameters positionally.
type Line struct {
	Name string
	Args []Arg
}

// Value returns the raw text of the named argument.
func (l *Line) Value(key string) (string, bool) {
	for _, a := range l.Args {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Int returns the named argument as an integer.
func (l *Line) Int(key string) (int64, error) {
	v, ok := l.Value(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s has no %q", ErrMissingArg, l.Name, key)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s=%q is not an integer", ErrSyntax, l.Name, key, v)
	}
	return n, nil
}

// Set replaces the value of an existing argument or appends a new one.
func (l *Line) Set(key, value string) {
	for i := range l.Args {
		if l.Args[i].Key == key {
			l.Args[i].Value = value
			return
		}
	}
	l.Args = append(l.Args, Arg{Key: key, Value: value})
}

// Clone returns a deep copy of the line.
func (l *Line) Clone() *Line {
	return &Line{Name: l.Name, Args: append([]Arg(nil), l.Args...)}
}

func (l *Line) String() string {
	var b strings.Builder
	b.WriteString(l.Name)
	for _, a := range l.Args {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(a.Value)
	}
	return b.String()
}
