/*
Package dragent is a conversational workflow engine.

A workflow is a declarative graph of agent, orchestrator and conditional
nodes authored by an external editor. The engine compiles the graph once,
caches the compiled form, and executes it turn by turn: each agent node runs
an LLM-backed tool loop, conditional nodes route on the metadata those tools
produce, and the final node's output becomes the reply.

The package layering follows a hexagonal layout. Domain types and ports live
under pkg/domain and pkg/ports; storage, provider and tool adapters under
pkg/adapters; the compiler, runtime and HTTP surface under internal. The
Service type in this package wires a configured stack together for the CLI
and for embedding.
*/
package dragent
