/*
Package dsl provides a fluent builder for constructing workflow definitions in Go.

It lets developers assemble a workflow graph programmatically instead of
authoring JSON or YAML by hand, which is useful for dynamic workflow
generation, seeding stores, and unit tests.

Example usage:

	wf := dsl.New("travel-desk").
		Name("Travel Desk")

	wf.Start().To("triage")
	wf.Agent("triage", "triage-bot").To("decide")
	wf.Conditional("decide").
		When("flights", "flight-desk").
		When("hotels", "hotel-desk").
		Default("concierge")
	wf.Agent("flight-desk", "flight-bot").End()
	wf.Agent("hotel-desk", "hotel-bot").End()
	wf.Agent("concierge", "concierge-bot").End()

	def, err := wf.Build()
	// ... save def to a ports.WorkflowStore or compile it directly
*/
package dsl
