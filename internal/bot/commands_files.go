package bot

import (
	"context"
	"strconv"
	"strings"

	"taskpanel/internal/panel"
	"taskpanel/internal/transport/telegram/router"
	"taskpanel/pkg/tgui"
)

func (b *Bot) fileCommands() []router.Command {
	return []router.Command{
		{
			Route:       "files",
			Description: "browse a script folder",
			Usage:       "/files [downloads|autokey] [page]",
			Access:      router.AccessOwnerOnly,
			Handle:      b.withSession(b.cmdFiles),
		},
		{
			Route:       "file show",
			Description: "open a file",
			Usage:       "/file show <folder> <name>",
			Access:      router.AccessOwnerOnly,
			Handle:      b.withSession(b.cmdFileShow),
		},
		{
			Route:       "file new",
			Description: "start a new file",
			Usage:       "/file new [folder]",
			Access:      router.AccessOwnerOnly,
			Handle:      b.withSession(b.cmdFileNew),
		},
		{
			Route:       "file save",
			Description: "save a file (content on the following lines)",
			Usage:       "/file save [folder] <name>\n<content...>",
			Access:      router.AccessOwnerOnly,
			Handle:      b.withSession(b.cmdFileSave),
		},
		{
			Route:       "file delete",
			Description: "delete a file (asks first)",
			Usage:       "/file delete <folder> <name>",
			Aliases:     []string{"file_rm"},
			Access:      router.AccessOwnerOnly,
			Handle:      b.withSession(b.cmdFileDelete),
		},
	}
}

func (b *Bot) fileCallbacks() []router.CallbackRoute {
	return []router.CallbackRoute{
		{Scope: scopeFiles, Action: "open", Handle: b.withSessionCB(b.cbFilesOpen)},
		{Scope: scopeFiles, Action: "page", Handle: b.withSessionCB(b.cbFilesPage)},
		{Scope: scopeFile, Action: "show", Handle: b.withSessionCB(b.cbFileShow)},
		{Scope: scopeFile, Action: "del", Handle: b.withSessionCB(b.cbFileDelete)},
		{Scope: scopeFile, Action: "delok", Handle: b.withSessionCB(b.cbFileDeleteConfirmed)},
	}
}

// filesCard renders the session's current listing.
func (b *Bot) filesCard(s *session, page int) tgui.Message {
	st := s.ctrl.State()
	return renderFiles(st.CurrentFolder, st.Files, page, b.options().Location, b.tokens)
}

func (b *Bot) cmdFiles(ctx context.Context, s *session, req *router.Request) error {
	folder := s.ctrl.State().CurrentFolder
	page := 0
	for _, a := range req.Args {
		if n, err := strconv.Atoi(a); err == nil {
			page = max(n-1, 0)
			continue
		}
		f, err := panel.ParseFolder(a)
		if err != nil {
			_, rerr := req.Reply(ctx, tgui.Esc(err.Error()).String())
			return rerr
		}
		folder = f
	}
	if _, err := s.ctrl.SwitchFolder(ctx, folder); err != nil {
		return nil
	}
	return s.editOrSend(ctx, req, b.filesCard(s, page))
}

func (b *Bot) cbFilesOpen(ctx context.Context, s *session, req *router.Request, payload string) error {
	folder, err := panel.ParseFolder(payload)
	if err != nil {
		return nil
	}
	if _, err := s.ctrl.SwitchFolder(ctx, folder); err != nil {
		return nil
	}
	return s.editOrSend(ctx, req, b.filesCard(s, 0))
}

func (b *Bot) cbFilesPage(ctx context.Context, s *session, req *router.Request, payload string) error {
	page, _ := strconv.Atoi(payload)
	if _, err := s.ctrl.ListFiles(ctx, s.ctrl.State().CurrentFolder); err != nil {
		return nil
	}
	return s.editOrSend(ctx, req, b.filesCard(s, max(page, 0)))
}

// fileArgs reads "<folder> <name>"; the name may contain spaces.
func fileArgs(args []string) (panel.Folder, string, bool) {
	if len(args) < 2 {
		return "", "", false
	}
	folder, err := panel.ParseFolder(args[0])
	if err != nil {
		return "", "", false
	}
	name := strings.TrimSpace(strings.Join(args[1:], " "))
	return folder, name, name != ""
}

func (b *Bot) openFile(ctx context.Context, s *session, req *router.Request, folder panel.Folder, name string) error {
	ed, err := s.ctrl.OpenFile(ctx, folder, name)
	if err != nil {
		return nil
	}
	// File cards go out as new messages so the listing stays usable.
	_, err = renderFile(ed.Folder, ed.Filename, ed.Content, b.tokens).Send(ctx, b.adapter, req.Chat)
	return err
}

func (b *Bot) cmdFileShow(ctx context.Context, s *session, req *router.Request) error {
	folder, name, ok := fileArgs(req.Args)
	if !ok {
		return usage(ctx, req, "/file show <folder> <name>")
	}
	return b.openFile(ctx, s, req, folder, name)
}

func (b *Bot) cbFileShow(ctx context.Context, s *session, req *router.Request, payload string) error {
	key, ok := b.tokens.Get(payload)
	if !ok {
		return s.editOrSend(ctx, req, tgui.New().Line("This button has expired. Send /files again.").Build())
	}
	folder, name, ok := splitFileKey(key)
	if !ok {
		return nil
	}
	return b.openFile(ctx, s, req, folder, name)
}

func (b *Bot) cmdFileNew(ctx context.Context, s *session, req *router.Request) error {
	if len(req.Args) > 0 {
		folder, err := panel.ParseFolder(req.Args[0])
		if err != nil {
			_, rerr := req.Reply(ctx, tgui.Esc(err.Error()).String())
			return rerr
		}
		if _, err := s.ctrl.SwitchFolder(ctx, folder); err != nil {
			return nil
		}
	}
	ed := s.ctrl.OpenNewFile()
	_, err := req.Reply(ctx, tgui.JoinH(" ",
		tgui.Esc("New file in"), tgui.B(ed.Folder.String())+tgui.Esc("."),
		tgui.Esc("Send /file save <name> with the content on the following lines."),
	).String())
	return err
}

// splitBody separates the command line from the message body.
func splitBody(text string) (head, body string) {
	head, body, _ = strings.Cut(text, "\n")
	return head, body
}

// cmdFileSave takes its content from the lines after the command. With one
// argument the name is saved into the open editor's folder; with two the
// folder is explicit.
func (b *Bot) cmdFileSave(ctx context.Context, s *session, req *router.Request) error {
	const u = "/file save [folder] <name>\n<content...>"
	if req.Update.Message == nil {
		return nil
	}
	head, body := splitBody(req.Update.Message.Text)
	args := strings.Fields(head)
	// Drop "/file save" (or an alias with no subcommand word).
	if len(args) > 0 && strings.HasPrefix(args[0], "/") {
		args = args[1:]
	}
	if len(args) > 0 && args[0] == "save" {
		args = args[1:]
	}
	if len(args) == 0 || strings.TrimSpace(body) == "" {
		return usage(ctx, req, u)
	}

	var err error
	if folder, perr := panel.ParseFolder(args[0]); perr == nil && len(args) > 1 {
		err = s.ctrl.SaveFile(ctx, folder, strings.Join(args[1:], " "), body)
	} else {
		err = s.ctrl.SaveEditor(ctx, strings.Join(args, " "), body)
	}
	if err == nil {
		b.scripts.Remove(scriptsKey)
	}
	return nil
}

func confirmDeleteFile(folder panel.Folder, name string, tokens *tgui.TokenStore) tgui.Message {
	tok := tokens.Put(fileKey(folder, name))
	return renderConfirm("Delete file", panel.MsgConfirmDeleteFile, fileKey(folder, name), tgui.Data(scopeFile, "delok", tok))
}

func (b *Bot) cmdFileDelete(ctx context.Context, s *session, req *router.Request) error {
	folder, name, ok := fileArgs(req.Args)
	if !ok {
		return usage(ctx, req, "/file delete <folder> <name>")
	}
	return s.editOrSend(ctx, req, confirmDeleteFile(folder, name, b.tokens))
}

func (b *Bot) cbFileDelete(ctx context.Context, s *session, req *router.Request, payload string) error {
	key, ok := b.tokens.Get(payload)
	if !ok {
		return s.editOrSend(ctx, req, tgui.New().Line("This button has expired. Send /files again.").Build())
	}
	folder, name, ok := splitFileKey(key)
	if !ok {
		return nil
	}
	return s.editOrSend(ctx, req, confirmDeleteFile(folder, name, b.tokens))
}

// cbFileDeleteConfirmed is the confirm card's "yes". The token is single
// use so a double tap cannot send a second request.
func (b *Bot) cbFileDeleteConfirmed(ctx context.Context, s *session, req *router.Request, payload string) error {
	key, ok := b.tokens.Take(payload)
	if !ok {
		return s.editOrSend(ctx, req, tgui.New().Line("This button has expired.").Build())
	}
	folder, name, ok := splitFileKey(key)
	if !ok {
		return nil
	}
	if err := s.ctrl.DeleteFile(withConfirmed(ctx), folder, name); err != nil {
		return s.editOrSend(ctx, req, tgui.New().Line("File not deleted.").Build())
	}
	b.scripts.Remove(scriptsKey)
	return s.editOrSend(ctx, req, b.filesCard(s, 0))
}
