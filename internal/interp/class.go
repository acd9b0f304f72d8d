package interp

import "fmt"

// Class is a Lox class. It is itself a runtime value: evaluating a class
// declaration's name yields the Class, and calling it constructs an
// Instance. Single inheritance only; Superclass is nil for a root class.
//
// Metaclass makes a class its own metaclass's instance, per the design
// note on static methods: `this` inside a static method must resolve to
// the class object, and that only falls out naturally if a static method
// lookup and bind work exactly like an instance method lookup and bind,
// just one level up. A root class's Metaclass has a nil Metaclass in turn
// (metaclasses don't recurse forever).
type Class struct {
	Name       string
	Superclass *Class
	Methods    map[string]*Function
	Metaclass  *Class
}

func (c *Class) String() string { return fmt.Sprintf("<class %s>", c.Name) }

// FindMethod looks up an instance method by name, walking the superclass
// chain.
func (c *Class) FindMethod(name string) (*Function, bool) {
	if m, ok := c.Methods[name]; ok {
		return m, true
	}
	if c.Superclass != nil {
		return c.Superclass.FindMethod(name)
	}
	return nil, false
}

// Get resolves a static member access (ClassName.member): it looks up name
// among the metaclass's methods and binds it to this class.
func (c *Class) Get(name string) (Value, bool) {
	if c.Metaclass == nil {
		return nil, false
	}
	if m, ok := c.Metaclass.FindMethod(name); ok {
		return m.Bind(c), true
	}
	return nil, false
}

// Arity is the arity of the nearest init in the chain, or 0 if there is
// none (an implicit no-arg constructor).
func (c *Class) Arity() int {
	if init, ok := c.FindMethod("init"); ok {
		return init.Arity()
	}
	return 0
}

// Call constructs a new Instance, running its init (if any) bound to it.
func (c *Class) Call(it *Interpreter, args []Value) (Value, error) {
	instance := &Instance{Class: c, Fields: make(map[string]Value)}
	if init, ok := c.FindMethod("init"); ok {
		bound := init.Bind(instance)
		if _, err := bound.Call(it, args); err != nil {
			return nil, err
		}
	}
	return instance, nil
}
