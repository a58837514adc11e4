package collab

import (
	"context"
	"testing"

	"agentcore/core"
	"agentcore/runner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticSettings is a test double for SettingsProvider; production
// composition roots back this interface with a koanf-loaded config
// struct instead (see package config).
type staticSettings struct {
	defaults map[string]string
	temp     float32
	maxTok   int
	caps     []string
}

func (s staticSettings) DefaultModel(provider string) string { return s.defaults[provider] }
func (s staticSettings) Temperature() float32                { return s.temp }
func (s staticSettings) MaxTokens() int                      { return s.maxTok }
func (s staticSettings) CapDirectories() []string            { return s.caps }

func TestSettingsProvider_ContractSatisfiedByTestDouble(t *testing.T) {
	var s SettingsProvider = staticSettings{
		defaults: map[string]string{"anthropic": "claude-sonnet"},
		temp:     0.7,
		maxTok:   4096,
		caps:     []string{"/tmp/project"},
	}
	assert.Equal(t, "claude-sonnet", s.DefaultModel("anthropic"))
	assert.Equal(t, float32(0.7), s.Temperature())
	assert.Equal(t, 4096, s.MaxTokens())
	assert.Equal(t, []string{"/tmp/project"}, s.CapDirectories())
}

type staticHardware struct {
	warmChunks   int
	contextToken int
}

func (h staticHardware) MaxWarmChunks() int    { return h.warmChunks }
func (h staticHardware) MaxContextTokens() int { return h.contextToken }

func TestHardwareProfile_ContractSatisfiedByTestDouble(t *testing.T) {
	var h HardwareProfile = staticHardware{warmChunks: 8, contextToken: 128000}
	assert.Equal(t, 8, h.MaxWarmChunks())
	assert.Equal(t, 128000, h.MaxContextTokens())
}

type recordingSessionSink struct {
	recorded []core.Conversation
}

func (s *recordingSessionSink) Record(ctx context.Context, conversation core.Conversation) error {
	s.recorded = append(s.recorded, conversation)
	return nil
}

func TestSessionSink_ContractSatisfiedByTestDouble(t *testing.T) {
	sink := &recordingSessionSink{}
	var s SessionSink = sink
	conv := core.Conversation{SystemPrompt: "be helpful"}
	require.NoError(t, s.Record(context.Background(), conv))
	require.Len(t, sink.recorded, 1)
	assert.Equal(t, "be helpful", sink.recorded[0].SystemPrompt)
}

type countingProgressSink struct {
	seen int
}

func (p *countingProgressSink) Consume(ctx context.Context, events <-chan runner.ProgressEvent) error {
	for range events {
		p.seen++
	}
	return nil
}

func TestProgressSink_ContractSatisfiedByTestDouble(t *testing.T) {
	sink := &countingProgressSink{}
	events := make(chan runner.ProgressEvent, 2)
	events <- runner.ProgressEvent{Kind: runner.ProgressMemoryAction}
	events <- runner.ProgressEvent{Kind: runner.ProgressMemoryAction}
	close(events)

	var p ProgressSink = sink
	require.NoError(t, p.Consume(context.Background(), events))
	assert.Equal(t, 2, sink.seen)
}
