package interp

import (
	"fmt"

	"lox/internal/token"
)

// Instance is a runtime object: a class pointer plus an open field bag.
// Fields shadow methods of the same name (checked first in Get), matching
// original_source's LoxInstance lookup order generalized with fields.
type Instance struct {
	Class  *Class
	Fields map[string]Value
}

func (i *Instance) String() string { return stringifyInstance(i, map[*Instance]bool{}) }

// Get reads a property. A getter method (no parameter list) is invoked
// immediately rather than returned as a bound function.
func (i *Instance) Get(it *Interpreter, name token.Token) (Value, error) {
	if v, ok := i.Fields[name.Lexeme]; ok {
		return v, nil
	}
	if m, ok := i.Class.FindMethod(name.Lexeme); ok {
		bound := m.Bind(i)
		if bound.Declaration.IsGetter() {
			return bound.Call(it, nil)
		}
		return bound, nil
	}
	return nil, &RuntimeError{Token: name, Message: fmt.Sprintf("Undefined property '%s'.", name.Lexeme)}
}

// Set writes a field, creating it if it doesn't already exist.
func (i *Instance) Set(name token.Token, value Value) {
	i.Fields[name.Lexeme] = value
}
