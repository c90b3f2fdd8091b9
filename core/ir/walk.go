package ir

// Walk visits n and its descendants in pre-order. When fn returns false the
// children of the current node are skipped.
func Walk(n Node, fn func(Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// WalkMut visits n and its descendants in pre-order, allowing fn to modify
// each node in place before its children are visited.
func WalkMut(n *Node, fn func(*Node)) {
	fn(n)
	for i := range n.Children {
		WalkMut(&n.Children[i], fn)
	}
}

// MapNodes rebuilds the tree bottom-up: children are mapped first, then fn is
// applied to the node carrying the mapped children.
func MapNodes(n Node, fn func(Node) Node) Node {
	if len(n.Children) > 0 {
		children := make([]Node, len(n.Children))
		for i, c := range n.Children {
			children[i] = MapNodes(c, fn)
		}
		n.Children = children
	}
	return fn(n)
}

// Count returns the number of nodes in the tree rooted at n.
func Count(n Node) int {
	total := 0
	Walk(n, func(Node) bool {
		total++
		return true
	})
	return total
}

// Depth returns the height of the tree rooted at n; a leaf has depth 1.
func Depth(n Node) int {
	deepest := 0
	for _, c := range n.Children {
		if d := Depth(c); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// Contains reports whether any node in the tree rooted at n has kind.
func Contains(n Node, kind Kind) bool {
	found := false
	Walk(n, func(c Node) bool {
		if c.Kind == kind {
			found = true
		}
		return !found
	})
	return found
}
