// Package enquote replaces a typed double quote with one half of the
// csquotes \enquote{...} macro.
//
// When the user types `"` into the active document, the Substitutor
// replaces it with Opening (`\enquote{`) at the start of a line or after
// whitespace, and with Closing (`}`) anywhere else. The caret is placed
// right after the inserted delimiter, so typing `"`, a word and `"` yields
// a balanced \enquote{word}.
//
// Whether the substitution runs is decided by the enquote.active setting:
//
//   - "true": always
//   - "false": never
//   - "auto" (default): only when the project's root file contains
//     \usepackage{csquotes}
//
// In auto mode the root file is re-read on every typed quote until the
// import is found. Once found, the result is remembered for the lifetime of
// the Substitutor; it is never forgotten, even if the import is later
// removed.
//
// Only single-change events whose text is exactly `"` are considered.
// Pastes, multi-cursor edits and deletions pass through untouched.
package enquote
