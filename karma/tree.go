package karma

// =============================================================================
// COMMENT TREE - Flat list to adjacency structure in one pass
// =============================================================================

// Tree is a post's comment forest. Roots and each Children slot keep the
// input order.
type Tree struct {
	Roots    []CommentView
	Children map[CommentID][]CommentView
}

// BuildTree materializes the reply structure of one post from its complete
// comment set, sorted by (created_at, id) ascending. Because a parent always
// predates its replies, every parent is seen before its children; a reply
// whose parent has not been seen yet fails with *OrphanCommentError rather
// than being promoted to a root or dropped.
func BuildTree(comments []CommentView) (Tree, error) {
	t := Tree{
		Roots:    []CommentView{},
		Children: make(map[CommentID][]CommentView),
	}
	seen := make(map[CommentID]struct{}, len(comments))

	for _, c := range comments {
		if c.ParentID == nil {
			t.Roots = append(t.Roots, c)
		} else {
			if _, ok := seen[*c.ParentID]; !ok {
				return Tree{}, &OrphanCommentError{CommentID: c.ID, ParentID: *c.ParentID}
			}
			t.Children[*c.ParentID] = append(t.Children[*c.ParentID], c)
		}
		seen[c.ID] = struct{}{}
	}
	return t, nil
}

// ChildrenOf returns the replies to id in input order.
func (t Tree) ChildrenOf(id CommentID) []CommentView {
	return t.Children[id]
}

// Len counts every node in the forest.
func (t Tree) Len() int {
	n := len(t.Roots)
	for _, children := range t.Children {
		n += len(children)
	}
	return n
}

// Walk visits the forest depth-first, parents before replies, siblings in
// input order.
func (t Tree) Walk(fn func(c CommentView, depth int)) {
	var visit func(c CommentView, depth int)
	visit = func(c CommentView, depth int) {
		fn(c, depth)
		for _, child := range t.Children[c.ID] {
			visit(child, depth+1)
		}
	}
	for _, root := range t.Roots {
		visit(root, 0)
	}
}
