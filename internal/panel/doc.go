// Package panel is the UI-agnostic controller behind the task panel.
//
// A Controller holds the state of one operator session (the open task
// modal, the file manager folder, the editor session) and turns user
// intents into single backend requests. Front-ends plug in through the
// Confirmer, Alerter and Reloader ports.
//
// A Controller is not safe for concurrent use; front-ends serialize calls
// per session.
package panel
