// Package bot is the Telegram front-end of the panel: one panel.Controller
// per chat, rendered as HTML cards with inline buttons.
package bot

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"taskpanel/internal/api"
	"taskpanel/internal/eventbus"
	"taskpanel/internal/panel"
	"taskpanel/internal/storage"
	kit "taskpanel/internal/transport"
	"taskpanel/internal/transport/telegram/router"
	logx "taskpanel/pkg/logx"
	"taskpanel/pkg/tgui"
)

const (
	taskPageSize = 8
	filePageSize = 8

	maxSessions = 256
	sessionIdle = 2 * time.Hour
	scriptTTL   = time.Minute
)

// Options are the hot-reloadable front-end preferences.
type Options struct {
	DefaultFolder panel.Folder
	PreviewCount  int
	Location      *time.Location
}

type Bot struct {
	backend panel.Backend
	adapter kit.Adapter
	bus     eventbus.Bus
	store   storage.Store
	log     logx.Logger
	now     func() time.Time

	optMu sync.RWMutex
	opts  Options

	tokens  *tgui.TokenStore
	scripts *expirable.LRU[string, []api.Script]

	// sessMu serializes get-or-create; the LRU itself is safe for
	// concurrent use.
	sessMu   sync.Mutex
	sessions *expirable.LRU[kit.ChatTarget, *session]
}

// Deps are the collaborators the bot drives. Store may be nil (audit off).
type Deps struct {
	Backend panel.Backend
	Adapter kit.Adapter
	Bus     eventbus.Bus
	Store   storage.Store
	Logger  logx.Logger
}

func New(d Deps, opts Options) *Bot {
	log := d.Logger
	b := &Bot{
		backend:  d.Backend,
		adapter:  d.Adapter,
		bus:      d.Bus,
		store:    d.Store,
		log:      log.With(logx.String("comp", "bot")),
		now:      time.Now,
		tokens:   tgui.NewTokenStore(0, 0),
		scripts:  expirable.NewLRU[string, []api.Script](4, nil, scriptTTL),
		sessions: newSessionCache(sessionIdle),
	}
	b.Apply(opts)
	return b
}

// newSessionCache drops a chat's session after idle without a command or
// callback.
func newSessionCache(idle time.Duration) *expirable.LRU[kit.ChatTarget, *session] {
	return expirable.NewLRU[kit.ChatTarget, *session](maxSessions, nil, idle)
}

// Apply swaps preferences. Existing sessions keep their current folder.
func (b *Bot) Apply(o Options) {
	if o.DefaultFolder == "" {
		o.DefaultFolder = panel.FolderDownloads
	}
	if o.PreviewCount <= 0 {
		o.PreviewCount = 5
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	b.optMu.Lock()
	b.opts = o
	b.optMu.Unlock()
}

func (b *Bot) options() Options {
	b.optMu.RLock()
	defer b.optMu.RUnlock()
	return b.opts
}

// Register installs the bot's commands and callbacks on m.
func (b *Bot) Register(ctx context.Context, m *router.CommandManager) {
	m.SetRegistry(ctx, b.Commands(), b.Callbacks())
}

// Commands returns every text command the bot serves. All are owner-only.
func (b *Bot) Commands() []router.Command {
	cmds := append(b.taskCommands(), b.fileCommands()...)
	cmds = append(cmds, router.Command{
		Route:       "audit",
		Description: "recent panel actions",
		Usage:       "/audit [n]",
		Access:      router.AccessOwnerOnly,
		Handle:      b.withSession(b.cmdAudit),
	})
	return cmds
}

func (b *Bot) Callbacks() []router.CallbackRoute {
	cbs := append(b.taskCallbacks(), b.fileCallbacks()...)
	cbs = append(cbs, router.CallbackRoute{
		Scope:  scopeUI,
		Action: "cancel",
		Handle: b.withSessionCB(b.cbCancel),
	})
	return cbs
}

// Callback scopes.
const (
	scopeTask  = "task"
	scopeTasks = "tasks"
	scopeFile  = "file"
	scopeFiles = "files"
	scopeUI    = "ui"
)

func (b *Bot) cbCancel(ctx context.Context, s *session, req *router.Request, _ string) error {
	return s.editOrSend(ctx, req, tgui.New().Line("Cancelled.").Build())
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}
