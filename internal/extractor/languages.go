package extractor

import (
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
)

// Language identifies a supported grammar.
type Language string

const (
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangRust       Language = "rust"
)

// ParseLanguage normalizes a language tag, accepting common aliases.
func ParseLanguage(tag string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "go", "golang":
		return LangGo, nil
	case "python", "py":
		return LangPython, nil
	case "javascript", "js", "jsx", "node":
		return LangJavaScript, nil
	case "rust", "rs":
		return LangRust, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, tag)
	}
}

// LanguageForPath guesses the language from a file extension.
func LanguageForPath(path string) (Language, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", fmt.Errorf("%w: no extension in %q", ErrUnsupportedLanguage, path)
	}
	return ParseLanguage(ext[1:])
}

func languageExtractor(lang Language) (LanguageExtractor, error) {
	switch lang {
	case LangGo:
		return &GoExtractor{}, nil
	case LangPython:
		return &PythonExtractor{}, nil
	case LangJavaScript:
		return &JavaScriptExtractor{}, nil
	case LangRust:
		return &RustExtractor{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
}

// GoExtractor implements LanguageExtractor for Go.
type GoExtractor struct{}

func (g *GoExtractor) GetLanguage() *sitter.Language { return golang.GetLanguage() }
func (g *GoExtractor) KindTable() map[string]Rule { return goKinds }

var goKinds = map[string]Rule{
	"function_declaration":       fixed(KindFunctionDefine),
	"method_declaration":         fixed(KindFunctionDefine),
	"func_literal":               fixed(KindFunctionDefine),
	"call_expression":            fixed(KindFunctionCall),
	"type_declaration":           fixed(KindTypeDefine),
	"identifier":                 fixed(KindVariableGet),
	"assignment_statement":       fixed(KindVariableSet),
	"short_var_declaration":      fixed(KindVariableSet),
	"var_spec":                   fixed(KindVariableSet),
	"binary_expression":          operatorRule,
	"unary_expression":           operatorRule,
	"if_statement":               fixed(KindIf),
	"for_statement":              fixed(KindLoop),
	"return_statement":           fixed(KindReturn),
	"int_literal":                fixed(KindNumber),
	"float_literal":              fixed(KindNumber),
	"interpreted_string_literal": fixed(KindString),
	"raw_string_literal":         fixed(KindString),
	"true":                       fixed(KindBool),
	"false":                      fixed(KindBool),
}

// PythonExtractor implements LanguageExtractor for Python.
type PythonExtractor struct{}

func (p *PythonExtractor) GetLanguage() *sitter.Language { return python.GetLanguage() }
func (p *PythonExtractor) KindTable() map[string]Rule { return pythonKinds }

var pythonKinds = map[string]Rule{
	"function_definition":    fixed(KindFunctionDefine),
	"lambda":                 fixed(KindFunctionDefine),
	"call":                   fixed(KindFunctionCall),
	"class_definition":       fixed(KindClassDefine),
	"identifier":             fixed(KindVariableGet),
	"assignment":             fixed(KindVariableSet),
	"augmented_assignment":   fixed(KindVariableSet),
	"binary_operator":        operatorRule,
	"boolean_operator":       operatorRule,
	"comparison_operator":    operatorRule,
	"unary_operator":         operatorRule,
	"not_operator":           operatorRule,
	"conditional_expression": fixed(KindTernary),
	"if_statement":           fixed(KindIf),
	"for_statement":          fixed(KindLoop),
	"while_statement":        fixed(KindLoop),
	"return_statement":       fixed(KindReturn),
	"integer":                fixed(KindNumber),
	"float":                  fixed(KindNumber),
	"string":                 fixed(KindString),
	"true":                   fixed(KindBool),
	"false":                  fixed(KindBool),
}

// JavaScriptExtractor implements LanguageExtractor for JavaScript.
type JavaScriptExtractor struct{}

func (j *JavaScriptExtractor) GetLanguage() *sitter.Language { return javascript.GetLanguage() }
func (j *JavaScriptExtractor) KindTable() map[string]Rule { return javascriptKinds }

var javascriptKinds = map[string]Rule{
	"function_declaration":  fixed(KindFunctionDefine),
	"function":              fixed(KindFunctionDefine),
	"function_expression":   fixed(KindFunctionDefine),
	"arrow_function":        fixed(KindFunctionDefine),
	"method_definition":     fixed(KindFunctionDefine),
	"call_expression":       fixed(KindFunctionCall),
	"class_declaration":     fixed(KindClassDefine),
	"identifier":            fixed(KindVariableGet),
	"variable_declarator":   fixed(KindVariableSet),
	"assignment_expression": fixed(KindVariableSet),
	"binary_expression":     operatorRule,
	"unary_expression":      operatorRule,
	"ternary_expression":    fixed(KindTernary),
	"if_statement":          fixed(KindIf),
	"for_statement":         fixed(KindLoop),
	"for_in_statement":      fixed(KindLoop),
	"while_statement":       fixed(KindLoop),
	"return_statement":      fixed(KindReturn),
	"number":                fixed(KindNumber),
	"string":                fixed(KindString),
	"template_string":       fixed(KindString),
	"true":                  fixed(KindBool),
	"false":                 fixed(KindBool),
}

// RustExtractor implements LanguageExtractor for Rust.
type RustExtractor struct{}

func (r *RustExtractor) GetLanguage() *sitter.Language { return rust.GetLanguage() }
func (r *RustExtractor) KindTable() map[string]Rule { return rustKinds }

var rustKinds = map[string]Rule{
	"function_item":            fixed(KindFunctionDefine),
	"closure_expression":       fixed(KindFunctionDefine),
	"call_expression":          fixed(KindFunctionCall),
	"macro_invocation":         fixed(KindFunctionCall),
	"struct_item":              fixed(KindTypeDefine),
	"enum_item":                fixed(KindTypeDefine),
	"impl_item":                fixed(KindClassDefine),
	"identifier":               fixed(KindVariableGet),
	"let_declaration":          fixed(KindVariableSet),
	"assignment_expression":    fixed(KindVariableSet),
	"compound_assignment_expr": fixed(KindVariableSet),
	"binary_expression":        operatorRule,
	"unary_expression":         operatorRule,
	"if_expression":            fixed(KindIf),
	"loop_expression":          fixed(KindLoop),
	"for_expression":           fixed(KindLoop),
	"while_expression":         fixed(KindLoop),
	"return_expression":        fixed(KindReturn),
	"integer_literal":          fixed(KindNumber),
	"float_literal":            fixed(KindNumber),
	"string_literal":           fixed(KindString),
	"boolean_literal":          fixed(KindBool),
}
