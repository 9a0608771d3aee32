package msgproto

// formatDecl is the grammar of a message format string.
// Example: queue_digital_out oid=%c clock=%u on_ticks=%u
type formatDecl struct {
	Name   string         `parser:"@Ident"`
	Params []*formatParam `parser:"@@*"`
}

type formatParam struct {
	Key  string `parser:"@Ident Equals"`
	Type string `parser:"@Format"`
}

// lineDecl is the grammar of an encoded command line.
// Example: config_digital_out oid=4 pin=5 value=1
type lineDecl struct {
	Name string     `parser:"@Ident"`
	Args []*lineArg `parser:"@@*"`
}

type lineArg struct {
	Key   string `parser:"@Ident Equals"`
	Value string `parser:"@( Int | Ident )"`
}
