/*
Package domain contains the core domain models for the workflow engine.

It defines the declarative workflow graph (Nodes, Edges, Conditions), the
execution state threaded through a run, and the conversation message types
exchanged with agents and tools. This package is kept pure and free of
external dependencies like I/O or persistence, following Hexagonal
Architecture principles.

# Key Entities

  - WorkflowDefinition: a named graph of nodes and edges, authored externally.
  - Node: a single step: a control marker (start/end), an agent invocation,
    or a conditional branch point.
  - ExecutionState: the accumulating snapshot threaded through a run
    (history, last output, derived metadata).
  - Message: a role-tagged conversation turn; tool results are a distinct
    variant, flattened to plain role/content at each provider boundary.
*/
package domain
