// Package agent implements the six pipeline agents. Agents never call each
// other: staged records in the store are the only inter-agent medium, and
// each agent owns the records it has claimed until it writes their terminal
// status.
package agent

import "context"

// Agent is one periodic pipeline worker driven by the engine.
type Agent interface {
	// Name returns the agent's stable identifier ("research", "extraction", ...).
	Name() string

	// Process runs one iteration and returns an implementation-specific
	// result summary. A returned error covers the whole iteration;
	// per-record failures are absorbed into the result counts.
	Process(ctx context.Context) (any, error)

	// Shutdown is the cleanup hook invoked by the engine on stop, bounded
	// by the engine's shutdown timeout.
	Shutdown(ctx context.Context) error
}

// Agent name constants, used by the engine registry and the CLI.
const (
	NameResearch          = "research"
	NameExtraction        = "extraction"
	NameValidation        = "validation"
	NameKnowledgeBase     = "knowledge_base"
	NameConflict          = "conflict"
	NamePromptEngineering = "prompt_engineering"
)
