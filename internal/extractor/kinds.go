package extractor

import "strings"

// Kind is the normalized block category exposed to the visual layer.
type Kind string

const (
	KindFunctionDefine Kind = "Function/Define"
	KindFunctionCall   Kind = "Function/Call"
	KindClassDefine    Kind = "Class/Define"
	KindTypeDefine     Kind = "Type/Define"
	KindVariableGet    Kind = "Variable/Get"
	KindVariableSet    Kind = "Variable/Set"
	KindTernary        Kind = "Op/Ternary"
	KindIf             Kind = "Control/If"
	KindLoop           Kind = "Control/Loop"
	KindReturn         Kind = "Control/Return"
	KindNumber         Kind = "Literal/Number"
	KindString         Kind = "Literal/String"
	KindBool           Kind = "Literal/Bool"
)

const opPrefix = "Op/"

// OpKind returns the operator kind for a token, e.g. OpKind("+") == "Op/+".
func OpKind(symbol string) Kind {
	return Kind(opPrefix + symbol)
}

// IsOperator reports whether k is an Op/<symbol> kind (ternaries included).
func (k Kind) IsOperator() bool {
	return strings.HasPrefix(string(k), opPrefix)
}

// Rule is one entry of a grammar's kind table. When Operator is set the
// final kind is Op/<token> resolved from the node's operator child.
type Rule struct {
	Kind     Kind
	Operator bool
}

func fixed(k Kind) Rule { return Rule{Kind: k} }

var operatorRule = Rule{Operator: true}

// operatorSymbols is the closed set of tokens accepted as operators.
var operatorSymbols = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true, "**": true, "//": true,
	"==": true, "!=": true, "===": true, "!==": true, "<": true, ">": true, "<=": true, ">=": true,
	"&&": true, "||": true, "!": true, "and": true, "or": true, "not": true,
	"&": true, "|": true, "^": true, "~": true, "<<": true, ">>": true, ">>>": true, "&^": true,
	"in": true, "not in": true, "is": true, "is not": true, "??": true, "<-": true,
	"instanceof": true, "typeof": true,
}
