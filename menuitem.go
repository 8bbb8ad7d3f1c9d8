package uidispatch

// MenuItemKind discriminates menu entry variants.
type MenuItemKind int

const (
	// MenuItemNormal is a selectable entry, optionally with children.
	MenuItemNormal MenuItemKind = iota
	// MenuItemSeparator is a visual divider. It has no text or action.
	MenuItemSeparator
)

// MenuItem is a node in an application menu tree. Menu trees are owned by
// the UI loop goroutine and are not safe for concurrent use.
type MenuItem struct {
	kind       MenuItemKind
	text       string
	onSelected func()
	parent     *MenuItem
	children   []*MenuItem
}

// NewMenuItem creates a detached menu item. onSelected may be nil; it is
// ignored for separators.
func NewMenuItem(kind MenuItemKind, text string, onSelected func()) *MenuItem {
	if kind == MenuItemSeparator {
		text = ""
		onSelected = nil
	}
	return &MenuItem{
		kind:       kind,
		text:       text,
		onSelected: onSelected,
	}
}

// Kind returns the item variant.
func (m *MenuItem) Kind() MenuItemKind { return m.kind }

// Text returns the display text. Separators have none.
func (m *MenuItem) Text() string { return m.text }

// Parent returns the containing item, or nil for a root.
func (m *MenuItem) Parent() *MenuItem { return m.parent }

// Children returns a copy of the child list.
func (m *MenuItem) Children() []*MenuItem {
	if len(m.children) == 0 {
		return nil
	}
	out := make([]*MenuItem, len(m.children))
	copy(out, m.children)
	return out
}

// AddChild appends child to this item. The child must be detached.
func (m *MenuItem) AddChild(child *MenuItem) {
	if child == nil {
		panic("uidispatch: AddChild with nil child")
	}
	if child.parent != nil {
		panic("uidispatch: AddChild with already attached child")
	}
	child.parent = m
	m.children = append(m.children, child)
}

// RemoveChild detaches child from this item. It is a no-op if child is not
// attached here.
func (m *MenuItem) RemoveChild(child *MenuItem) {
	if child == nil || child.parent != m {
		return
	}
	for i, c := range m.children {
		if c == child {
			m.children = append(m.children[:i], m.children[i+1:]...)
			break
		}
	}
	child.parent = nil
}

// Select invokes the item's action, if any.
func (m *MenuItem) Select() {
	if m.onSelected != nil {
		m.onSelected()
	}
}
