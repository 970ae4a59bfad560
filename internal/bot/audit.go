package bot

import (
	"context"
	"strconv"
	"time"

	"taskpanel/internal/eventbus"
	"taskpanel/internal/panel"
	"taskpanel/internal/storage"
	"taskpanel/internal/transport/telegram/router"
	logx "taskpanel/pkg/logx"
	"taskpanel/pkg/tgui"
)

const (
	defaultAuditN = 10
	maxAuditN     = 50
)

// RunAudit copies panel action events into store until ctx ends. List
// reads are not recorded; they fire on every view refresh.
func RunAudit(ctx context.Context, bus eventbus.Bus, store storage.Store, log logx.Logger) error {
	if bus == nil || store == nil {
		return nil
	}
	ch, unsub := bus.Subscribe(256, eventbus.TypePanelAction)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			a, ok := ev.Data.(panel.ActionEvent)
			if !ok || !auditable(a.Action) {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := store.AppendAudit(wctx, auditEntry(ev.Time, a))
			cancel()
			if err != nil {
				log.Warn("audit append failed", logx.String("action", a.Action), logx.Err(err))
			}
		}
	}
}

func auditable(action string) bool {
	switch action {
	case panel.ActionTaskList, panel.ActionScriptList, panel.ActionFileList:
		return false
	}
	return true
}

func auditEntry(at time.Time, a panel.ActionEvent) storage.AuditEntry {
	return storage.AuditEntry{
		At:            at.UTC(),
		ActorID:       a.Actor.ID,
		ActorUsername: a.Actor.Username,
		ChatID:        a.Actor.ChatID,
		ThreadID:      a.Actor.ThreadID,
		Action:        a.Action,
		Target:        a.Target,
		OK:            a.OK,
		Error:         a.Err,
		TookMS:        a.Took.Milliseconds(),
	}
}

func (b *Bot) cmdAudit(ctx context.Context, s *session, req *router.Request) error {
	if b.store == nil {
		_, err := req.Reply(ctx, "Audit log is disabled (storage.driver is none).")
		return err
	}
	n := defaultAuditN
	if len(req.Args) > 0 {
		if v, err := strconv.Atoi(req.Args[0]); err == nil && v > 0 {
			n = min(v, maxAuditN)
		}
	}
	entries, err := b.store.RecentAudit(ctx, n)
	if err != nil {
		_, rerr := req.Reply(ctx, tgui.Esc("Audit read failed: "+err.Error()).String())
		return rerr
	}
	_, err = renderAudit(entries, b.options().Location).Send(ctx, b.adapter, req.Chat)
	return err
}
