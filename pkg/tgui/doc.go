// Package tgui provides small Telegram UI helpers for the panel bot:
//   - inline keyboard builders
//   - callback data helpers ("scope:action:payload")
//   - an HTML message builder with escaping by default
//   - a token store for payloads that exceed callback_data limits
package tgui
