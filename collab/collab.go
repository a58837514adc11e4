// Package collab defines the opaque collaborator contracts named in
// spec.md §6: narrow interfaces the core depends on but never implements
// beyond a test double. Each concrete backing (a config file, a
// terminal UI, a database) lives outside this module's scope and is
// wired in by a composition root such as cmd/agentcored.
package collab

import (
	"context"

	"agentcore/core"
	"agentcore/runner"
)

// SettingsProvider resolves user-configurable defaults the core falls
// back to when a caller doesn't specify a value explicitly.
type SettingsProvider interface {
	DefaultModel(provider string) string
	Temperature() float32
	MaxTokens() int
	CapDirectories() []string
}

// HardwareProfile reports resource ceilings the Memory Strategy and
// Rate Budget size themselves against; this core never measures a
// machine's resources itself.
type HardwareProfile interface {
	MaxWarmChunks() int
	MaxContextTokens() int
}

// SessionSink persists a finished or in-progress Conversation somewhere
// durable. Nothing in this module calls it; a composition root decides
// when to record, and the contract has no opinion on where a
// Conversation ends up.
type SessionSink interface {
	Record(ctx context.Context, conversation core.Conversation) error
}

// ProgressSink is the terminal UI (or any other) consumer of Runner
// progress events. The Runner never calls a ProgressSink: it only ever
// writes to its Progress channel of runner.ProgressEvent values, which
// any ProgressSink can drain through Consume. This interface exists as
// the typed form of that contract for composition roots.
type ProgressSink interface {
	Consume(ctx context.Context, events <-chan runner.ProgressEvent) error
}
