package router

import (
	"sort"
	"strings"

	kit "taskpanel/internal/transport"
	"taskpanel/pkg/tgui"
)

// Telegram's setMyCommands limits.
const (
	maxMenuCommandLen = 32
	maxMenuDescLen    = 256
	maxMenuCommands   = 100
)

// sanitizeCommand maps a route or alias onto Telegram's command alphabet
// [a-z0-9_]. Separators collapse to one underscore, a leading digit gets a
// "cmd_" prefix, and "" means nothing usable was left.
func sanitizeCommand(s string) string {
	var b strings.Builder
	sep := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if sep && b.Len() > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			sep = false
		case r == '_', r == '-', r == '/', r == ' ', r == '\t':
			sep = true
		}
	}
	out := b.String()
	if out == "" {
		return ""
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "cmd_" + out
	}
	if len(out) > maxMenuCommandLen {
		out = strings.TrimRight(out[:maxMenuCommandLen], "_")
	}
	return out
}

// menuName is the shortcut for a multi-word route: "task add" -> task_add.
func menuName(route []string) string {
	return sanitizeCommand(strings.Join(route, "_"))
}

// menuCommands lists top-level commands, then shortcuts for multi-word
// routes, each group sorted by name. Owner-only entries are marked.
func menuCommands(t *table) []kit.BotCommand {
	type item struct {
		kit.BotCommand
		group int
	}
	seen := map[string]bool{}
	var items []item
	add := func(name, desc string, locked bool, group int) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		desc = strings.Join(strings.Fields(desc), " ")
		if desc == "" {
			desc = name
		}
		if locked {
			desc = "🔒 " + desc
		}
		desc = tgui.TruncRunes(desc, maxMenuDescLen)
		items = append(items, item{kit.BotCommand{Command: name, Description: desc}, group})
	}

	for _, name := range t.root.names() {
		n := t.root.kids[name]
		add(sanitizeCommand(name), n.summary(), n.ownerOnly(), 0)
	}
	for _, c := range t.commands {
		route := routeOf(c.Route)
		if len(route) < 2 {
			continue
		}
		desc := c.Description
		if strings.TrimSpace(desc) == "" {
			desc = strings.Join(route, " ")
		}
		add(menuName(route), desc, c.Access == AccessOwnerOnly, 1)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].group != items[j].group {
			return items[i].group < items[j].group
		}
		return items[i].Command < items[j].Command
	})
	if len(items) > maxMenuCommands {
		items = items[:maxMenuCommands]
	}
	out := make([]kit.BotCommand, len(items))
	for i, it := range items {
		out[i] = it.BotCommand
	}
	return out
}
