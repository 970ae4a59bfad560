// Package router turns chat updates into panel command calls. Text commands
// are matched against a tree of space-separated routes ("task add"), inline
// button presses against "scope:action[:payload]" callback routes. Handlers
// run on a bounded worker pool with per-command timeouts, owner checks and
// request logging.
package router

import (
	"context"
	"time"

	kit "taskpanel/internal/transport"
	logx "taskpanel/pkg/logx"
)

type Access int

const (
	AccessOwnerOnly Access = iota
	AccessEveryone
)

type HandlerFunc func(ctx context.Context, req *Request) error

type CallbackHandlerFunc func(ctx context.Context, req *Request, payload string) error

type Command struct {
	// Route is the space-separated command path, e.g. "tasks" or "task add".
	Route string
	// Aliases are extra single-word names, e.g. "task_rm".
	Aliases     []string
	Description string
	Usage       string
	Access      Access

	// Timeout overrides the manager default when > 0.
	Timeout time.Duration
	Handle  HandlerFunc
}

// CallbackRoute handles button data "scope:action[:payload]".
type CallbackRoute struct {
	Scope   string
	Action  string
	Access  Access
	Timeout time.Duration
	Handle  CallbackHandlerFunc
}

type Request struct {
	Update       kit.Update
	Chat         kit.ChatTarget
	FromID       int64
	FromUsername string

	// Path is the matched route; Command is the route string, or
	// "cb:scope:action" for buttons.
	Path    []string
	Command string

	Args      []string
	RawArgs   []string
	Flags     map[string]string
	BoolFlags map[string]bool

	// Payload and MessageID are set for button presses.
	Payload   string
	MessageID int

	ReqID   string
	Adapter kit.Adapter
	Logger  logx.Logger
}

// Flag returns the value of the first of names that was given.
func (r *Request) Flag(names ...string) (string, bool) {
	for _, n := range names {
		if v, ok := r.Flags[n]; ok {
			return v, true
		}
	}
	return "", false
}

func (r *Request) Bool(names ...string) bool {
	for _, n := range names {
		if r.BoolFlags[n] {
			return true
		}
	}
	return false
}

// Reply sends HTML to the request's chat.
func (r *Request) Reply(ctx context.Context, html string) (kit.MessageRef, error) {
	return r.Adapter.SendText(ctx, r.Chat, html, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
}
