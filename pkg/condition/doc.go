// Package condition compiles rule condition strings into predicates using
// the expr language.
//
// An expression is evaluated against three variables:
//
//	actor   attributes of the acting subject, plus "id"
//	target  attributes of the target subject, plus "id"
//	refs    the rule's resolved reference table
//
// Two helpers are available in addition to the expr builtins:
//
//	resolved(x)     true when x is not nil, typically resolved(refs.name)
//	has(list, x)    true when list (a slice or map) contains x
//
// An expression must produce a bool. Runtime errors evaluate to false.
package condition
