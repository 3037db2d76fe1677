/*
Package ports defines the driven ports (interfaces) for the workflow engine.

These interfaces decouple the core logic from external implementations,
allowing the engine to work with various LLM providers, tool transports, and
storage backends.

# Key Interfaces

  - ChatCompleter: one round-trip to a conversational agent backend.
  - ToolRegistry: discovery and execution of external tools.
  - WorkflowStore / AgentStore / PromptStore: definition persistence.
  - SessionStore: per-session conversation context persistence.
  - DistributedLocker: cross-replica session locking.
*/
package ports
