package msgproto

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// CommandLexer tokenizes both message format strings
// ("queue_digital_out oid=%c clock=%u") and encoded command lines
// ("queue_digital_out oid=3 clock=16000").
var CommandLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},

	// Parameter type specifiers: %c, %u, %hu, %i, %hi
	{Name: "Format", Pattern: `%[a-z]+`},

	{Name: "Equals", Pattern: `=`},

	// Signed decimal integers
	{Name: "Int", Pattern: `-?[0-9]+`},

	// Command names, parameter keys and symbolic values such as PA0 or gpio12
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_.]*`},
})
