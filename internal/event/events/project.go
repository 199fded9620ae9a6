package events

import "github.com/dshills/enquote/internal/event/topic"

// Project event topics.
const (
	// TopicProjectRootChanged is published when the resolved root file changes.
	TopicProjectRootChanged topic.Topic = "project.root.changed"
)

// RootSource describes how a root file was resolved.
type RootSource string

// Root file resolution strategies, in order of precedence.
const (
	RootSourceNone         RootSource = "none"
	RootSourceConfig       RootSource = "config"
	RootSourceMagicComment RootSource = "magic-comment"
	RootSourceActive       RootSource = "active-document"
	RootSourceWorkspace    RootSource = "workspace-scan"
)

// ProjectRootChanged is published when the resolved root file changes.
type ProjectRootChanged struct {
	// OldRoot is the previously resolved root file (empty if none).
	OldRoot string

	// NewRoot is the newly resolved root file (empty if none).
	NewRoot string

	// Source tells how NewRoot was found.
	Source RootSource
}
