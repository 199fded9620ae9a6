// Package topic provides hierarchical topic types and pattern matching for the event bus.
//
// Topics use dot-notation to create hierarchical namespaces:
//
//	document.changed
//	enquote.package.detected
//	config.changed
//
// Two wildcard patterns are supported:
//
//   - "*" matches exactly one segment
//   - "**" matches zero or more segments
//
// Examples:
//
//	document.*     matches document.changed, document.activated
//	enquote.**     matches enquote.applied, enquote.package.detected
//	*.changed      matches config.changed, document.changed
//	**             matches everything
package topic
