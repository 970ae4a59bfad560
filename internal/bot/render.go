package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"taskpanel/internal/api"
	"taskpanel/internal/panel"
	"taskpanel/internal/storage"
	"taskpanel/pkg/tgui"
)

const fileChunkLimit = 3500

func fmtTime(ts *api.Timestamp, loc *time.Location) string {
	if ts == nil || ts.IsZero() {
		return "never"
	}
	return ts.In(loc).Format("2006-01-02 15:04")
}

func scheduleText(t api.Task) string {
	if t.ScheduleType == api.ScheduleRandom {
		return "random " + t.RandomStart + "–" + t.RandomEnd
	}
	return "cron " + t.CronExpression
}

func enabledText(on bool) string {
	if on {
		return "✅ enabled"
	}
	return "⏸ disabled"
}

func idData(scope, action string, id int64) string {
	return tgui.Data(scope, action, strconv.FormatInt(id, 10))
}

func renderTaskList(tasks []api.Task, page int, loc *time.Location) tgui.Message {
	p := tgui.Paginate(tasks, page, taskPageSize)
	b := tgui.New().Title("📋", "Tasks")
	if p.Total == 0 {
		b.Line("No tasks yet. Add one with /task add.")
	} else {
		b.Line(p.Label())
	}

	kb := tgui.NewInline()
	for _, t := range p.Items {
		b.Blank()
		b.HTML(tgui.JoinH(" ", tgui.B("#"+strconv.FormatInt(t.ID, 10)), tgui.Esc(t.Name), tgui.Esc("· "+enabledText(t.Enabled))))
		b.HTML(tgui.JoinH(" · ", tgui.Code(scheduleText(t)), tgui.Esc(t.ScriptPath), tgui.Esc("last run "+fmtTime(t.LastRun, loc))))

		id := strconv.FormatInt(t.ID, 10)
		kb.Row(
			tgui.Btn("ℹ️ #"+id, idData(scopeTask, "show", t.ID)),
			tgui.Btn("▶️", idData(scopeTask, "run", t.ID)),
			tgui.Btn("⏯", idData(scopeTask, "toggle", t.ID)),
			tgui.Btn("🗑", idData(scopeTask, "del", t.ID)),
		)
	}
	kb.Row(pagerRow(scopeTasks, p.Index, p.HasPrev, p.HasNext)...)
	return b.Inline(kb).Build()
}

func renderTask(t api.Task, pv panel.Preview, pvErr error, loc *time.Location) tgui.Message {
	b := tgui.New().Title("🗓", fmt.Sprintf("Task #%d", t.ID)).
		KV("Name", t.Name).
		KV("Script", t.ScriptPath).
		KV("Schedule", scheduleText(t)).
		KV("State", enabledText(t.Enabled)).
		KV("Last run", fmtTime(t.LastRun, loc)).
		KV("Created", fmtTime(t.CreatedAt, loc))

	b.Blank()
	if pvErr != nil {
		b.Line("Preview unavailable: " + pvErr.Error())
	} else {
		b.HTML(tgui.B(pv.Description))
		for _, n := range pv.Next {
			b.Line("• " + n.In(loc).Format("Mon 2006-01-02 15:04"))
		}
		for _, w := range pv.Windows {
			b.Line("• " + w.From.In(loc).Format("Mon 2006-01-02 15:04") + " – " + w.To.In(loc).Format("15:04"))
		}
	}

	kb := tgui.NewInline().
		Row(
			tgui.Btn("▶️ Run", idData(scopeTask, "run", t.ID)),
			tgui.Btn("⏯ Toggle", idData(scopeTask, "toggle", t.ID)),
			tgui.Btn("🗑 Delete", idData(scopeTask, "del", t.ID)),
		).
		Row(tgui.Btn("‹ Tasks", tgui.Data(scopeTasks, "page", "0")))
	return b.Inline(kb).Build()
}

func renderConfirm(title, prompt, subject, yesData string) tgui.Message {
	return tgui.New().Title("❓", title).
		Line(prompt).
		HTML(tgui.Code(subject)).
		Inline(tgui.ConfirmInline(yesData, tgui.Data(scopeUI, "cancel", ""))).
		Build()
}

func renderScripts(scripts []api.Script) tgui.Message {
	const maxShown = 50
	b := tgui.New().Title("📜", "Scripts")
	if len(scripts) == 0 {
		return b.Line("No scripts found.").Build()
	}
	for i, s := range scripts {
		if i == maxShown {
			b.Line(fmt.Sprintf("… and %d more", len(scripts)-maxShown))
			break
		}
		b.HTML(tgui.JoinH(" ", tgui.Esc("•"), tgui.Code(s.Path), tgui.I(s.Name)))
	}
	return b.Build()
}

// renderFiles shows one page of a folder. File buttons carry TokenStore
// tokens since names can exceed the callback size limit.
func renderFiles(folder panel.Folder, files []api.ScriptFile, page int, loc *time.Location, tokens *tgui.TokenStore) tgui.Message {
	p := tgui.Paginate(files, page, filePageSize)
	b := tgui.New().Title("📁", "Files: "+folder.String())
	if p.Total == 0 {
		b.Line("Folder is empty.")
	} else {
		b.Line(p.Label())
	}

	kb := tgui.NewInline()
	for _, f := range p.Items {
		b.HTML(tgui.JoinH(" · ", tgui.Code(f.Name), tgui.Esc(tgui.HumanBytes(f.Size)), tgui.Esc(fmtTime(&f.Modified, loc))))
		tok := tokens.Put(fileKey(folder, f.Name))
		kb.Row(
			tgui.Btn("📄 "+tgui.TruncRunes(f.Name, 24), tgui.Data(scopeFile, "show", tok)),
			tgui.Btn("🗑", tgui.Data(scopeFile, "del", tok)),
		)
	}
	kb.Row(pagerRow(scopeFiles, p.Index, p.HasPrev, p.HasNext)...)

	row := make([]tgui.Button, 0, len(panel.Folders))
	for _, f := range panel.Folders {
		label := f.String()
		if f == folder {
			label = "• " + label
		}
		row = append(row, tgui.Btn(label, tgui.Data(scopeFiles, "open", f.String())))
	}
	kb.Row(row...)
	return b.Inline(kb).Build()
}

func renderFile(folder panel.Folder, name, content string, tokens *tgui.TokenStore) tgui.Message {
	b := tgui.New().Title("📄", folder.String()+"/"+name)
	if strings.TrimSpace(content) == "" {
		b.Line("(empty file)")
	} else {
		b.PreMulti(content, fileChunkLimit)
	}
	b.Blank().Line("To replace it, send /file save " + name + " with the new content on the following lines.")
	tok := tokens.Put(fileKey(folder, name))
	return b.Inline(tgui.NewInline().Row(
		tgui.Btn("🗑 Delete", tgui.Data(scopeFile, "del", tok)),
		tgui.Btn("‹ Files", tgui.Data(scopeFiles, "open", folder.String())),
	)).Build()
}

func renderAudit(entries []storage.AuditEntry, loc *time.Location) tgui.Message {
	b := tgui.New().Title("🧾", "Recent actions")
	if len(entries) == 0 {
		return b.Line("Nothing recorded yet.").Build()
	}
	for _, e := range entries {
		mark := "✅"
		if !e.OK {
			mark = "❌"
		}
		who := ""
		if e.ActorUsername != "" {
			who = " @" + e.ActorUsername
		} else if e.ActorID != 0 {
			who = " " + strconv.FormatInt(e.ActorID, 10)
		}
		line := fmt.Sprintf("%s %s %s %s%s (%dms)", e.At.In(loc).Format("01-02 15:04"), mark, e.Action, e.Target, who, e.TookMS)
		b.Line(strings.Join(strings.Fields(line), " "))
		if e.Error != "" {
			b.HTML(tgui.I("   " + tgui.TruncRunes(e.Error, 200)))
		}
	}
	return b.Build()
}

func pagerRow(scope string, idx int, hasPrev, hasNext bool) []tgui.Button {
	var row []tgui.Button
	if hasPrev {
		row = append(row, tgui.Btn("‹ Prev", tgui.Data(scope, "page", strconv.Itoa(idx-1))))
	}
	row = append(row, tgui.Btn("🔄", tgui.Data(scope, "page", strconv.Itoa(idx))))
	if hasNext {
		row = append(row, tgui.Btn("Next ›", tgui.Data(scope, "page", strconv.Itoa(idx+1))))
	}
	return row
}

func fileKey(folder panel.Folder, name string) string {
	return folder.String() + "/" + name
}

func splitFileKey(key string) (panel.Folder, string, bool) {
	f, name, ok := strings.Cut(key, "/")
	if !ok || name == "" {
		return "", "", false
	}
	folder, err := panel.ParseFolder(f)
	if err != nil {
		return "", "", false
	}
	return folder, name, true
}
