// Package nvim runs enquote as a Neovim RPC host.
//
// On start the host installs autocommands for *.tex buffers. InsertCharPre
// records the typed character and TextChangedI sends it, with the buffer
// and cursor, in a blocking rpcrequest. The host turns each request into a
// document.changed event on the bus; the substitutor then edits the buffer
// through a Surface that converts between Neovim byte columns and the
// character columns used everywhere else.
//
// The global variable g:enquote_active, when set, overrides enquote.active
// for as long as it stays set.
package nvim
