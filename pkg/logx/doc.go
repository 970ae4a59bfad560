// Package logx is the logging layer shared by panelbot and panelctl.
//
// Logger wraps zerolog with a small field API. Loggers created from a
// Service follow its configuration as it is re-applied at runtime; loggers
// from NewWriter/NewConsole are fixed. The Service can fan records out to
// the console, a JSON file and an alert sink that posts WARN and above to
// the operators' Telegram log group.
package logx
