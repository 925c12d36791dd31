// Package formula evaluates the small arithmetic expressions attached to loop
// dependencies.
//
// Expressions use the source language's operator set and precedence:
//
//	or  and  not  == != < <= > >=  + -  * / // %  unary + -  **
//
// plus indexing (arr[_index]), parentheses, numeric and string literals,
// True/False/None and calls to a fixed builtin table (abs, len, min, max,
// round, int, float, sum).
//
// Identifiers resolve only from the [Scope] passed to [Evaluate]; nothing in
// the process environment is reachable. Evaluation is a single walk of a
// depth-limited tree, so it always terminates.
//
// # Errors
//
// Every failure is a *[Error] wrapping one of the sentinel errors, so callers
// can match with errors.Is:
//
//	v, err := formula.Evaluate("missing + 1", scope)
//	if errors.Is(err, formula.ErrUndefined) { ... }
//
// Division and modulo by zero are errors. Overflow to ±Inf is not.
package formula
