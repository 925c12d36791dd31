// Package structure defines the data model shared by the visualizer.
//
// A [Registry] is the ordered, name-unique set of [Descriptor] values that
// forms one visualization scope. A [Loop] describes the loop construct that
// was detected alongside it, and [IndexOperation] lists index accesses that
// should be marked for the current run.
//
//   - [Descriptor]: a named array, set, dictionary or scalar
//   - [Registry]: ordered descriptors with lookup and scope building
//   - [Loop]: target, iterator and dependent variables of a loop
//
// Descriptors are read-only once a registry is built. Callers that need to
// change a structure build a new registry.
package structure
