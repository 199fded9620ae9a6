package project

import (
	"bufio"
	"path/filepath"
	"regexp"
	"strings"
)

// DocumentMarker identifies a root file.
const DocumentMarker = `\begin{document}`

// magicCommentLines is how many leading lines are searched for a magic comment.
const magicCommentLines = 20

var magicRootComment = regexp.MustCompile(`(?i)^\s*%\s*!\s*TeX\s+root\s*=\s*(.+?)\s*$`)

// MagicRoot returns the root file named by a "% !TEX root = file" comment
// in the first lines of text. The result is resolved against dir.
func MagicRoot(text, dir string) (string, bool) {
	sc := bufio.NewScanner(strings.NewReader(text))
	for i := 0; i < magicCommentLines && sc.Scan(); i++ {
		m := magicRootComment.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		target := m[1]
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, target)
		}
		return filepath.Clean(target), true
	}
	return "", false
}

// IsRootDocument reports whether text contains \begin{document} outside a
// comment.
func IsRootDocument(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		idx := strings.Index(line, DocumentMarker)
		if idx < 0 {
			continue
		}
		if !commentedOut(line[:idx]) {
			return true
		}
	}
	return false
}

// commentedOut reports whether prefix contains an unescaped %.
func commentedOut(prefix string) bool {
	escaped := false
	for _, r := range prefix {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			return true
		}
	}
	return false
}

// isTeXFile reports whether name has a .tex extension.
func isTeXFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".tex")
}
