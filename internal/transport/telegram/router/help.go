package router

import (
	"sort"
	"strings"

	"taskpanel/pkg/tgui"
)

// helpText renders /help for path: the command list when path is empty,
// otherwise one command or group.
func (m *CommandManager) helpText(path []string) string {
	t := m.routes.Load()
	if len(path) == 0 {
		return helpIndex(t.root)
	}

	n, full := t.root, make([]string, 0, len(path))
	for _, p := range path {
		p = strings.TrimPrefix(p, "/")
		if next := n.kid(p); next != nil {
			n, full = next, append(full, p)
			continue
		}
		if leaf := t.shortcuts[p]; leaf != nil && leaf.cmd != nil {
			n, full = leaf, routeOf(leaf.cmd.Route)
			break
		}
		return tgui.New().
			Title("❓", "Unknown command").
			HTML(tgui.JoinH(" ", tgui.Esc("Type"), tgui.Code("/help"), tgui.Esc("for the command list."))).
			Build().Text
	}
	return helpNode(t, n, full)
}

func helpIndex(root *node) string {
	names := root.names()
	// Public commands first, then owner-only, each alphabetical.
	sort.SliceStable(names, func(i, j int) bool {
		return !root.kids[names[i]].ownerOnly() && root.kids[names[j]].ownerOnly()
	})

	b := tgui.New().
		Title("📚", "Commands").
		HTML(tgui.JoinH(" ", tgui.Esc("Type"), tgui.Code("/help <cmd>"), tgui.Esc("for details."))).
		Blank()
	for _, name := range names {
		n := root.kids[name]
		b.HTML(entry("/"+name, n.summary(), n.ownerOnly()))
	}
	return b.Build().Text
}

func helpNode(t *table, n *node, full []string) string {
	b := tgui.New().HTML(tgui.JoinH(" ", tgui.Esc("📚"), tgui.B("Help"), tgui.Code("/"+strings.Join(full, " "))))

	if c := n.cmd; c != nil {
		if d := strings.TrimSpace(c.Description); d != "" {
			b.Line(d)
		}
		if c.Access == AccessOwnerOnly {
			b.HTML(tgui.JoinH(" ", tgui.Esc("🔒"), tgui.I("Owner only")))
		}
		if u := strings.TrimSpace(c.Usage); u != "" {
			b.Blank().HTML(tgui.B("Usage"))
			for _, l := range strings.Split(u, "\n") {
				b.HTML(tgui.Code(strings.TrimSpace(l)))
			}
		}
		if names := t.shortcutsFor(n); len(names) > 0 {
			b.Blank().HTML(tgui.B("Shortcuts"))
			for _, s := range names {
				b.HTML(tgui.JoinH(" ", tgui.Esc("•"), tgui.Code("/"+s)))
			}
		}
	} else {
		b.Line("Command group.")
		if n.ownerOnly() {
			b.HTML(tgui.JoinH(" ", tgui.Esc("🔒"), tgui.I("Owner only")))
		}
	}

	if len(n.kids) > 0 {
		b.Blank().HTML(tgui.B("Subcommands"))
		for _, name := range n.names() {
			kid := n.kids[name]
			b.HTML(entry("/"+strings.Join(append(full[:len(full):len(full)], name), " "), kid.summary(), kid.ownerOnly()))
		}
	}
	return b.Build().Text
}

// entry is one "• 🔒 /cmd : description" line.
func entry(cmd, desc string, locked bool) tgui.H {
	s := "• "
	if locked {
		s += "🔒 "
	}
	s += tgui.Code(cmd).String()
	if desc != "" {
		s += " : " + tgui.Esc(desc).String()
	}
	return tgui.H(s)
}

func (t *table) shortcutsFor(n *node) []string {
	var out []string
	for name, leaf := range t.shortcuts {
		if leaf == n {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
