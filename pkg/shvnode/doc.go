// Package shvnode routes inbound requests through a tree of named nodes.
//
// # Tree
//
// A NodesTree owns a single root TreeNode. Every node owns its children
// exclusively and carries an ordered list of Processors:
//
//	root          DeviceProcessor, CommandProcessor
//	└── fs        FSDirProcessor (virtual children from the filesystem)
//
// The tree is built once before serving and is read-only afterwards.
// Processors keep their own mutable state.
//
// # Resolution
//
// A request path is split on "/" and walked from the root. Walking stops at
// the first segment without a matching child; the remaining segments are
// the local path handed to the processors of the deepest matched node.
// Resolution never fails, so a processor can serve an entire subtree (for
// example an exported directory) below a single node.
//
// # Methods
//
// The router answers the introspection methods itself:
//
//	dir [filter, attrs]   method descriptors of all processors at the node
//	ls  [filter, attrs]   virtual children, then real child nodes
//
// Any other method is dispatched to the first processor that lists it for
// the local path. A processor may return ErrDeferred and send its response
// later through Call.Reply.
//
// HandleRequest is the boundary used by the agent: it converts results and
// errors into response messages and never lets a processor failure escape.
package shvnode
