package bot

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"taskpanel/internal/api"
	"taskpanel/internal/panel"
	kit "taskpanel/internal/transport"
	"taskpanel/internal/transport/telegram/router"
	logx "taskpanel/pkg/logx"
	"taskpanel/pkg/tgui"
)

const taskFormUsage = `[--name "..."] [--script path] [--type cron|random] [--cron "m h dom mon dow"] [--start HH:MM] [--end HH:MM] [--disabled|--enabled]`

func (b *Bot) taskCommands() []router.Command {
	return []router.Command{
		{
			Route:       "tasks",
			Description: "list scheduled tasks",
			Usage:       "/tasks [page]",
			Access:      router.AccessOwnerOnly,
			Handle:      b.withSession(b.cmdTasks),
		},
		{
			Route:       "task show",
			Description: "show a task and its next runs",
			Usage:       "/task show <id>",
			Access:      router.AccessOwnerOnly,
			Handle:      b.withSession(b.cmdTaskShow),
		},
		{
			Route:       "task add",
			Description: "create a task",
			Usage:       "/task add <name> " + taskFormUsage,
			Access:      router.AccessOwnerOnly,
			Handle:      b.withSession(b.cmdTaskAdd),
		},
		{
			Route:       "task edit",
			Description: "change a task",
			Usage:       "/task edit <id> " + taskFormUsage,
			Access:      router.AccessOwnerOnly,
			Handle:      b.withSession(b.cmdTaskEdit),
		},
		{
			Route:       "task delete",
			Description: "delete a task (asks first)",
			Usage:       "/task delete <id>",
			Aliases:     []string{"task_rm"},
			Access:      router.AccessOwnerOnly,
			Handle:      b.withSession(b.cmdTaskDelete),
		},
		{
			Route:       "task run",
			Description: "run a task now",
			Usage:       "/task run <id>",
			Access:      router.AccessOwnerOnly,
			Handle:      b.withSession(b.cmdTaskRun),
		},
		{
			Route:       "task toggle",
			Description: "enable or disable a task",
			Usage:       "/task toggle <id>",
			Access:      router.AccessOwnerOnly,
			Handle:      b.withSession(b.cmdTaskToggle),
		},
		{
			Route:       "scripts",
			Description: "list selectable scripts",
			Usage:       "/scripts [--refresh]",
			Access:      router.AccessOwnerOnly,
			Handle:      b.withSession(b.cmdScripts),
		},
	}
}

func (b *Bot) taskCallbacks() []router.CallbackRoute {
	return []router.CallbackRoute{
		{Scope: scopeTasks, Action: "page", Handle: b.withSessionCB(b.cbTasksPage)},
		{Scope: scopeTask, Action: "show", Handle: b.withSessionCB(b.cbTaskShow)},
		{Scope: scopeTask, Action: "run", Handle: b.withSessionCB(b.cbTaskRun)},
		{Scope: scopeTask, Action: "toggle", Handle: b.withSessionCB(b.cbTaskToggle)},
		{Scope: scopeTask, Action: "del", Handle: b.withSessionCB(b.cbTaskDelete)},
		{Scope: scopeTask, Action: "delok", Handle: b.withSessionCB(b.cbTaskDeleteConfirmed)},
	}
}

func usage(ctx context.Context, req *router.Request, u string) error {
	_, err := req.Reply(ctx, "Usage: "+tgui.Code(u).String())
	return err
}

// taskID reads the first positional argument as a task id.
func taskID(req *router.Request) (int64, bool) {
	if len(req.Args) == 0 {
		return 0, false
	}
	return parseID(strings.TrimPrefix(req.Args[0], "#"))
}

func msgRef(req *router.Request) kit.MessageRef {
	if req.MessageID == 0 {
		return kit.MessageRef{}
	}
	return kit.MessageRef{ChatID: req.Chat.ChatID, ThreadID: req.Chat.ThreadID, MessageID: req.MessageID}
}

// showTasks renders the list card. A non-zero ref is edited in place; if
// that fails (message gone, too old) a new card is sent.
func (s *session) showTasks(ctx context.Context, page int, ref kit.MessageRef) error {
	tasks, err := s.ctrl.ListTasks(ctx)
	var msg tgui.Message
	if err != nil {
		msg = tgui.New().Title("⚠️", "Tasks").Line("Load failed: " + err.Error()).Build()
	} else {
		sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
		msg = renderTaskList(tasks, page, s.bot.options().Location)
	}
	s.listPage = page

	if ref.MessageID != 0 {
		err := msg.Edit(ctx, s.bot.adapter, ref, s.chat)
		if err == nil {
			s.listRef = ref
			return nil
		}
		s.bot.log.Debug("task card edit failed; sending new", logx.Err(err))
	}
	newRef, err := msg.Send(ctx, s.bot.adapter, s.chat)
	if err != nil {
		return err
	}
	s.listRef = newRef
	return nil
}

func (b *Bot) cmdTasks(ctx context.Context, s *session, req *router.Request) error {
	page := 0
	if len(req.Args) > 0 {
		if n, err := strconv.Atoi(req.Args[0]); err == nil && n > 0 {
			page = n - 1
		}
	}
	return s.showTasks(ctx, page, kit.MessageRef{})
}

func (b *Bot) cbTasksPage(ctx context.Context, s *session, req *router.Request, payload string) error {
	page, _ := strconv.Atoi(payload)
	return s.showTasks(ctx, max(page, 0), msgRef(req))
}

func (b *Bot) renderTaskCard(ctx context.Context, s *session, id int64) (tgui.Message, bool) {
	t, err := s.ctrl.GetTask(ctx, id)
	if err != nil {
		return tgui.Message{}, false
	}
	o := b.options()
	pv, pvErr := panel.PreviewSchedule(t, o.PreviewCount, b.now().In(o.Location))
	return renderTask(t, pv, pvErr, o.Location), true
}

func (b *Bot) cmdTaskShow(ctx context.Context, s *session, req *router.Request) error {
	id, ok := taskID(req)
	if !ok {
		return usage(ctx, req, "/task show <id>")
	}
	msg, ok := b.renderTaskCard(ctx, s, id)
	if !ok {
		return nil
	}
	return s.editOrSend(ctx, req, msg)
}

func (b *Bot) cbTaskShow(ctx context.Context, s *session, req *router.Request, payload string) error {
	id, ok := parseID(payload)
	if !ok {
		return nil
	}
	msg, ok := b.renderTaskCard(ctx, s, id)
	if !ok {
		return nil
	}
	return s.editOrSend(ctx, req, msg)
}

// applyFormFlags copies the task flags present on req into f. Without
// --type, a --cron flag selects cron and --start/--end select random.
func applyFormFlags(f *panel.TaskForm, req *router.Request) error {
	if v, ok := req.Flag("name", "n"); ok {
		f.Name = v
	}
	if v, ok := req.Flag("script", "s"); ok {
		f.ScriptPath = v
	}
	cron, hasCron := req.Flag("cron", "c")
	start, hasStart := req.Flag("start")
	end, hasEnd := req.Flag("end")
	if hasCron {
		f.CronExpression = cron
	}
	if hasStart {
		f.RandomStart = start
	}
	if hasEnd {
		f.RandomEnd = end
	}

	if v, ok := req.Flag("type", "t"); ok {
		st, err := api.ParseScheduleType(v)
		if err != nil {
			return err
		}
		f.SetScheduleType(st)
	} else if hasCron && !hasStart && !hasEnd {
		f.SetScheduleType(api.ScheduleCron)
	} else if !hasCron && (hasStart || hasEnd) {
		f.SetScheduleType(api.ScheduleRandom)
	}

	switch {
	case req.Bool("disabled"):
		f.Enabled = false
	case req.Bool("enabled"):
		f.Enabled = true
	}
	return nil
}

func (b *Bot) cmdTaskAdd(ctx context.Context, s *session, req *router.Request) error {
	s.ctrl.OpenAddTask()
	f := s.ctrl.State().Form
	if len(req.Args) > 0 {
		f.Name = strings.Join(req.Args, " ")
	}
	if err := applyFormFlags(&f, req); err != nil {
		s.ctrl.CloseTaskModal()
		_, rerr := req.Reply(ctx, tgui.Esc(err.Error()).String())
		return rerr
	}
	s.ctrl.SetScheduleType(f.ScheduleType())

	// A fresh list card makes the result visible at the bottom of the chat.
	s.listRef = kit.MessageRef{}
	id, err := s.ctrl.CreateTask(ctx, f)
	if err != nil {
		return nil
	}
	req.Logger.Info("task created", logx.Int64("task_id", id), logx.String("name", f.Name))
	return nil
}

func (b *Bot) cmdTaskEdit(ctx context.Context, s *session, req *router.Request) error {
	id, ok := taskID(req)
	if !ok {
		return usage(ctx, req, "/task edit <id> "+taskFormUsage)
	}
	if len(req.Flags) == 0 && len(req.BoolFlags) == 0 {
		return usage(ctx, req, "/task edit <id> "+taskFormUsage)
	}
	f, err := s.ctrl.OpenEditTask(ctx, id)
	if err != nil {
		return nil
	}
	if err := applyFormFlags(&f, req); err != nil {
		s.ctrl.CloseTaskModal()
		_, rerr := req.Reply(ctx, tgui.Esc(err.Error()).String())
		return rerr
	}
	s.ctrl.SetScheduleType(f.ScheduleType())
	s.listRef = kit.MessageRef{}
	_ = s.ctrl.SubmitTask(ctx, f)
	return nil
}

func (b *Bot) confirmDeleteTask(id int64) tgui.Message {
	ref := strconv.FormatInt(id, 10)
	return renderConfirm("Delete task", panel.MsgConfirmDelete, "#"+ref, tgui.Data(scopeTask, "delok", b.tokens.Put(ref)))
}

func (b *Bot) cmdTaskDelete(ctx context.Context, s *session, req *router.Request) error {
	id, ok := taskID(req)
	if !ok {
		return usage(ctx, req, "/task delete <id>")
	}
	return s.editOrSend(ctx, req, b.confirmDeleteTask(id))
}

func (b *Bot) cbTaskDelete(ctx context.Context, s *session, req *router.Request, payload string) error {
	id, ok := parseID(payload)
	if !ok {
		return nil
	}
	return s.editOrSend(ctx, req, b.confirmDeleteTask(id))
}

// cbTaskDeleteConfirmed is the confirm card's "yes". The token is single
// use, like the file one. On success the reload turns the card into the
// task list.
func (b *Bot) cbTaskDeleteConfirmed(ctx context.Context, s *session, req *router.Request, payload string) error {
	ref, ok := b.tokens.Take(payload)
	if !ok {
		return s.editOrSend(ctx, req, tgui.New().Line("This button has expired. Send /tasks again.").Build())
	}
	id, ok := parseID(ref)
	if !ok {
		return nil
	}
	s.listRef = msgRef(req)
	if err := s.ctrl.DeleteTask(withConfirmed(ctx), id); err != nil {
		return s.editOrSend(ctx, req, tgui.New().Line("Task not deleted.").Build())
	}
	return nil
}

func (b *Bot) cmdTaskRun(ctx context.Context, s *session, req *router.Request) error {
	id, ok := taskID(req)
	if !ok {
		return usage(ctx, req, "/task run <id>")
	}
	_ = s.ctrl.RunTaskNow(ctx, id)
	return nil
}

func (b *Bot) cbTaskRun(ctx context.Context, s *session, req *router.Request, payload string) error {
	if id, ok := parseID(payload); ok {
		_ = s.ctrl.RunTaskNow(ctx, id)
	}
	return nil
}

func (b *Bot) cmdTaskToggle(ctx context.Context, s *session, req *router.Request) error {
	id, ok := taskID(req)
	if !ok {
		return usage(ctx, req, "/task toggle <id>")
	}
	s.listRef = kit.MessageRef{}
	_ = s.ctrl.ToggleTask(ctx, id)
	return nil
}

func (b *Bot) cbTaskToggle(ctx context.Context, s *session, req *router.Request, payload string) error {
	if id, ok := parseID(payload); ok {
		s.listRef = msgRef(req)
		_ = s.ctrl.ToggleTask(ctx, id)
	}
	return nil
}

const scriptsKey = "scripts"

// listScripts serves the script list from a short-lived cache; the backend
// walks the script directories on every call.
func (b *Bot) listScripts(ctx context.Context, s *session, refresh bool) ([]api.Script, error) {
	if !refresh {
		if v, ok := b.scripts.Get(scriptsKey); ok {
			return v, nil
		}
	}
	out, err := s.ctrl.ListScripts(ctx)
	if err != nil {
		return nil, err
	}
	b.scripts.Add(scriptsKey, out)
	return out, nil
}

func (b *Bot) cmdScripts(ctx context.Context, s *session, req *router.Request) error {
	scripts, err := b.listScripts(ctx, s, req.Bool("refresh", "r"))
	if err != nil {
		_, rerr := req.Reply(ctx, tgui.Esc("Load failed: "+err.Error()).String())
		return rerr
	}
	_, err = renderScripts(scripts).Send(ctx, b.adapter, req.Chat)
	return err
}
