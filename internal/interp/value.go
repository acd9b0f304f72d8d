// Package interp implements the tree-walking evaluator described in §4.4:
// it walks the parser's AST directly, consulting the resolver's side table
// for local lookups and falling back to the global environment by name.
package interp

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Value is any Lox runtime value: nil, bool, Number, string, *Function,
// *Class, *Instance, or a native built-in.
type Value any

// Number is the language's sole numeric type; there is no separate integer
// representation.
type Number float64

// IsTruthy applies Lox's truthiness rule: everything is truthy except nil
// and the boolean false.
func IsTruthy(v Value) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

// IsEqual implements Lox's `==`: nil only equals nil, numbers and strings
// compare by value, everything else (functions, classes, instances) by
// Go's native reference/value equality for the underlying concrete type.
func IsEqual(a, b Value) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a == b
}

// Stringify renders a value the way `print` and string concatenation do.
func Stringify(v Value) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(val)
	case Number:
		return stringifyNumber(val)
	case string:
		return val
	case *Function:
		return val.String()
	case *Class:
		return val.String()
	case *Instance:
		return stringifyInstance(val, map[*Instance]bool{})
	default:
		return fmt.Sprintf("%v", val)
	}
}

// stringifyInstance renders "<CLASSNAME> { k: v, ... }", guarding against a
// field that points back to an instance already being rendered (possible
// since instances share their class and can reference each other through
// fields) by rendering the repeated ancestor as "<CLASS> {...}".
func stringifyInstance(inst *Instance, visited map[*Instance]bool) string {
	if visited[inst] {
		return fmt.Sprintf("%s {...}", inst.Class.Name)
	}
	visited[inst] = true
	defer delete(visited, inst)

	names := make([]string, 0, len(inst.Fields))
	for name := range inst.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		field := inst.Fields[name]
		var rendered string
		if fieldInst, ok := field.(*Instance); ok {
			rendered = stringifyInstance(fieldInst, visited)
		} else {
			rendered = Stringify(field)
		}
		parts[i] = fmt.Sprintf("%s: %s", name, rendered)
	}
	return fmt.Sprintf("%s { %s }", inst.Class.Name, strings.Join(parts, ", "))
}

func stringifyNumber(n Number) string {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	text := strconv.FormatFloat(f, 'f', -1, 64)
	return strings.TrimSuffix(text, ".0")
}
