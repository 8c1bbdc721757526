// Package model describes the methods a node exposes.
//
// # Method Descriptors
//
// Every method is published as a MetaMethod carrying:
//   - Name: the method name used in requests
//   - Signature: whether it takes a parameter and returns a value
//   - Flags: getter, setter, signal and large-result hints
//   - AccessGrant: the advertised access level ("bws", "rd", "wr", ...)
//
// A "dir" response renders descriptors either as bare names or as lists
// selected by a DirAttribute mask. Every node answers the standard
// "dir" and "ls" methods returned by StandardMethods.
//
// Access grants are advertised only. The broker enforces them.
package model
