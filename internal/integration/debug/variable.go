package debug

import (
	"fmt"
	"sync"

	"github.com/dshills/gdbmi/internal/integration/debug/mi"
)

// VarNode is a debugger variable object.
type VarNode struct {
	// MIName is the debugger's name for the object, e.g. "var1.a".
	MIName string

	// Expression is the source expression, relative to the parent for children.
	Expression string

	// Type is the variable type.
	Type string

	// Value is the formatted value.
	Value string

	// ChildCount is the number of children the debugger reports.
	ChildCount int

	// InScope is false once the object's frame has gone away.
	InScope bool

	// Children are the fetched children.
	Children []*VarNode

	// Expanded indicates if children have been fetched.
	Expanded bool

	// Parent is the parent node (nil for roots).
	Parent *VarNode
}

// HasChildren returns true if the object has children.
func (n *VarNode) HasChildren() bool {
	return n.ChildCount > 0
}

// Path returns the expressions from the root down to n.
func (n *VarNode) Path() []string {
	var path []string
	for cur := n; cur != nil; cur = cur.Parent {
		path = append([]string{cur.Expression}, path...)
	}
	return path
}

// Format returns a one-line rendering of the node.
func (n *VarNode) Format() string {
	if n.Type != "" {
		return fmt.Sprintf("%s: %s = %s", n.Expression, n.Type, n.Value)
	}
	return fmt.Sprintf("%s = %s", n.Expression, n.Value)
}

// decodeVarNode reads the fields shared by -var-create replies and
// -var-list-children entries.
func decodeVarNode(fields mi.Tuple, expression string) *VarNode {
	n := &VarNode{
		MIName:     fields.Str("name"),
		Expression: expression,
		Type:       fields.Str("type"),
		Value:      fields.Str("value"),
		InScope:    true,
	}
	if exp := fields.Str("exp"); exp != "" {
		n.Expression = exp
	}
	n.ChildCount, _ = fields.Int("numchild")
	return n
}

// VarChange is one entry of a -var-update changelist.
type VarChange struct {
	Name           string
	Value          string
	InScope        string
	TypeChanged    bool
	NewType        string
	NewNumChildren int
	HasNumChildren bool
}

func decodeChangelist(rec *mi.Record) []VarChange {
	list, ok := rec.List("changelist")
	if !ok {
		return nil
	}
	changes := make([]VarChange, 0, list.Len())
	for _, t := range list.Tuples() {
		c := VarChange{
			Name:        t.Str("name"),
			Value:       t.Str("value"),
			InScope:     t.Str("in_scope"),
			TypeChanged: t.Str("type_changed") == "true",
			NewType:     t.Str("new_type"),
		}
		c.NewNumChildren, c.HasNumChildren = t.Int("new_num_children")
		changes = append(changes, c)
	}
	return changes
}

// VarTree tracks the variable objects created in a session.
type VarTree struct {
	mu     sync.RWMutex
	roots  []*VarNode
	byName map[string]*VarNode
}

// NewVarTree creates an empty tree.
func NewVarTree() *VarTree {
	return &VarTree{byName: make(map[string]*VarNode)}
}

// Add inserts a root node.
func (t *VarTree) Add(n *VarNode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roots = append(t.roots, n)
	t.byName[n.MIName] = n
}

// SetChildren replaces the children of parent and marks it expanded.
func (t *VarTree) SetChildren(parent *VarNode, children []*VarNode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dropChildrenLocked(parent)
	for _, c := range children {
		c.Parent = parent
		t.byName[c.MIName] = c
	}
	parent.Children = children
	parent.Expanded = true
}

// Collapse forgets the children of n.
func (t *VarTree) Collapse(n *VarNode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dropChildrenLocked(n)
}

// Lookup returns the node with the given debugger name.
func (t *VarTree) Lookup(name string) (*VarNode, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.byName[name]
	return n, ok
}

// Roots returns the root nodes in creation order.
func (t *VarTree) Roots() []*VarNode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*VarNode{}, t.roots...)
}

// Len returns the number of known nodes.
func (t *VarTree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byName)
}

// Remove deletes the named node and its descendants.
func (t *VarTree) Remove(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(name)
}

// Apply folds a changelist into the tree and returns the nodes that changed.
func (t *VarTree) Apply(changes []VarChange) []*VarNode {
	t.mu.Lock()
	defer t.mu.Unlock()

	var changed []*VarNode
	for _, c := range changes {
		n, ok := t.byName[c.Name]
		if !ok {
			continue
		}
		switch c.InScope {
		case "invalid":
			t.removeLocked(c.Name)
			continue
		case "false":
			n.InScope = false
		case "true":
			n.InScope = true
		}
		n.Value = c.Value
		if c.TypeChanged {
			n.Type = c.NewType
			t.dropChildrenLocked(n)
		}
		if c.HasNumChildren {
			n.ChildCount = c.NewNumChildren
			t.dropChildrenLocked(n)
		}
		changed = append(changed, n)
	}
	return changed
}

func (t *VarTree) dropChildrenLocked(n *VarNode) {
	for _, c := range n.Children {
		t.dropChildrenLocked(c)
		delete(t.byName, c.MIName)
	}
	n.Children = nil
	n.Expanded = false
}

func (t *VarTree) removeLocked(name string) {
	n, ok := t.byName[name]
	if !ok {
		return
	}
	t.dropChildrenLocked(n)
	delete(t.byName, name)

	if n.Parent == nil {
		for i, r := range t.roots {
			if r == n {
				t.roots = append(t.roots[:i], t.roots[i+1:]...)
				break
			}
		}
		return
	}
	siblings := n.Parent.Children
	for i, s := range siblings {
		if s == n {
			n.Parent.Children = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
}
