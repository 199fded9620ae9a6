// Package project resolves the root file of a LaTeX project.
//
// A LaTeX project is a workspace directory whose documents are compiled
// from one root file: the file containing \begin{document}. The Manager
// finds it using, in order:
//
//  1. the latex.rootFile setting, relative to the workspace;
//  2. a "% !TEX root = <file>" magic comment near the top of the active document;
//  3. the active document itself when it contains \begin{document};
//  4. a breadth-first scan of the workspace for a .tex file containing
//     \begin{document}, bounded by latex.searchDepth.
//
// Scan results are cached for a short time and dropped when a .tex file in
// the workspace changes. Every change of the resolved root is published as
// project.root.changed.
//
// # Sub-packages
//
//   - vfs: file system abstraction (OS and in-memory)
//   - watcher: fsnotify-based change detection
package project
