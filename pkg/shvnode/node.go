package shvnode

import (
	"strings"
)

// TreeNode is a named node owning its children and processors.
type TreeNode struct {
	name       string
	parent     *TreeNode
	children   []*TreeNode
	processors []Processor
}

// NewTreeNode creates a detached node served by processors, in order.
func NewTreeNode(name string, processors ...Processor) *TreeNode {
	return &TreeNode{
		name:       name,
		processors: processors,
	}
}

// Name returns the node name.
func (n *TreeNode) Name() string {
	return n.name
}

// AddProcessor appends a processor. Earlier processors win method lookup.
func (n *TreeNode) AddProcessor(p Processor) {
	n.processors = append(n.processors, p)
}

// Processors returns the node's processors in order.
func (n *TreeNode) Processors() []Processor {
	return n.processors
}

// AddChild attaches child below n. The child must be detached, have a
// valid name unique among n's children, and must not be n or one of its
// ancestors.
func (n *TreeNode) AddChild(child *TreeNode) error {
	if child.name == "" || strings.Contains(child.name, "/") {
		return ErrInvalidNodeName
	}
	for p := n; p != nil; p = p.parent {
		if p == child {
			return ErrCycle
		}
	}
	if child.parent != nil {
		return ErrNodeAttached
	}
	if n.Child(child.name) != nil {
		return ErrDuplicateChild
	}
	child.parent = n
	n.children = append(n.children, child)
	return nil
}

// Child returns the child named name, or nil.
func (n *TreeNode) Child(name string) *TreeNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// Children returns the child nodes in insertion order.
func (n *TreeNode) Children() []*TreeNode {
	return append([]*TreeNode(nil), n.children...)
}

// IsLeaf reports whether the node has no children and every processor is
// a leaf.
func (n *TreeNode) IsLeaf() bool {
	if len(n.children) > 0 {
		return false
	}
	for _, p := range n.processors {
		if !p.IsLeaf() {
			return false
		}
	}
	return true
}

// SplitPath splits a slash-delimited path into its non-empty segments.
func SplitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}

// JoinPath joins path segments with "/".
func JoinPath(segments []string) string {
	return strings.Join(segments, "/")
}
