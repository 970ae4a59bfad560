package router

import (
	"sort"
	"strings"
)

type node struct {
	cmd  *Command
	kids map[string]*node
}

func (n *node) kid(name string) *node {
	if n == nil {
		return nil
	}
	return n.kids[name]
}

func (n *node) names() []string {
	out := make([]string, 0, len(n.kids))
	for k := range n.kids {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// public reports whether n or anything below it is open to everyone.
func (n *node) public() bool {
	if n.cmd != nil && n.cmd.Access == AccessEveryone {
		return true
	}
	for _, k := range n.kids {
		if k.public() {
			return true
		}
	}
	return false
}

// ownerOnly is true for owner-only commands and for groups with no public
// descendant.
func (n *node) ownerOnly() bool {
	if n.cmd != nil {
		return n.cmd.Access == AccessOwnerOnly
	}
	return !n.public()
}

// summary is the command's description, or a hint listing a group's first
// subcommands.
func (n *node) summary() string {
	if n.cmd != nil {
		if d := strings.TrimSpace(n.cmd.Description); d != "" {
			return d
		}
	}
	kids := n.names()
	if len(kids) == 0 {
		return ""
	}
	if len(kids) > 3 {
		return "subcommands: " + strings.Join(kids[:3], ", ") + ", …"
	}
	return "subcommands: " + strings.Join(kids, ", ")
}

// table is an immutable snapshot of the registry. SetRegistry swaps it
// whole.
type table struct {
	root *node
	// shortcuts maps single-word names (aliases and "task_add" style menu
	// names) to command leaves.
	shortcuts map[string]*node
	callbacks map[string]CallbackRoute
	commands  []Command
}

func routeOf(s string) []string { return strings.Fields(s) }

func buildTable(cmds []Command, cbs []CallbackRoute) *table {
	t := &table{
		root:      &node{kids: map[string]*node{}},
		shortcuts: map[string]*node{},
		callbacks: map[string]CallbackRoute{},
	}
	for _, c := range cmds {
		route := routeOf(c.Route)
		if len(route) == 0 || c.Handle == nil {
			continue
		}
		leaf := t.root
		for _, tok := range route {
			next := leaf.kids[tok]
			if next == nil {
				next = &node{kids: map[string]*node{}}
				leaf.kids[tok] = next
			}
			leaf = next
		}
		leaf.cmd = &c
		t.commands = append(t.commands, c)

		// A one-word route is reachable directly; adding it as a shortcut
		// would hide its subcommands.
		if len(route) > 1 {
			t.shortcut(menuName(route), leaf, false)
		}
		for _, a := range c.Aliases {
			a = strings.TrimSpace(a)
			if a == "" || strings.ContainsAny(a, " \t") {
				continue
			}
			t.shortcut(a, leaf, true)
			t.shortcut(sanitizeCommand(a), leaf, false)
		}
	}
	for _, r := range cbs {
		scope, action := strings.TrimSpace(r.Scope), strings.TrimSpace(r.Action)
		if scope == "" || action == "" || r.Handle == nil {
			continue
		}
		t.callbacks[scope+":"+action] = r
	}
	return t
}

func (t *table) shortcut(name string, leaf *node, override bool) {
	if name == "" {
		return
	}
	if _, taken := t.shortcuts[name]; taken && !override {
		return
	}
	t.shortcuts[name] = leaf
}

// lookup resolves the command word and as many following args as match
// subcommands. It returns the deepest node reached, its path and the
// remaining args; n is nil for an unknown word.
func (t *table) lookup(word string, args []string) (n *node, path, rest []string) {
	if leaf := t.shortcuts[word]; leaf != nil && leaf.cmd != nil {
		return leaf, routeOf(leaf.cmd.Route), args
	}
	n = t.root.kid(word)
	if n == nil {
		return nil, nil, args
	}
	path = []string{word}
	for len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		next := n.kid(args[0])
		if next == nil {
			break
		}
		n, path, args = next, append(path, args[0]), args[1:]
	}
	return n, path, args
}

// callback splits button data into its route and payload. The payload is
// everything after the second colon.
func (t *table) callback(data string) (CallbackRoute, string, bool) {
	scope, rest, ok := strings.Cut(strings.TrimSpace(data), ":")
	if !ok {
		return CallbackRoute{}, "", false
	}
	action, payload, _ := strings.Cut(rest, ":")
	r, ok := t.callbacks[scope+":"+action]
	return r, payload, ok
}
