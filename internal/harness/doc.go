// Package harness runs binding scenarios and records what they did.
//
// A scenario builds a small element tree over observable source records,
// binds element properties to paths into those records, then applies a list
// of steps and checks expectations. Every property change, source change and
// asynchronous binding failure is appended to a trace stamped by a
// per-run sequence counter, so the same scenario always produces the same
// trace and traces can be compared against golden files.
//
// # Scenario Format
//
// Scenarios are YAML or CUE files; both are validated against the CUE
// schema in schema.cue before they are decoded.
//
//	name: context_order
//	description: "The context binding settles before its siblings"
//	dispatcher: loop            # or worker
//	sources:
//	  model:
//	    Selected: "@alice"
//	  alice: { Name: Alice }
//	elements:
//	  - name: root
//	    context: model
//	  - name: row
//	    parent: root
//	    bindings:
//	      - { property: DataContext, path: Selected }
//	      - { property: Text, path: Name }
//	steps:
//	  - set_source: { source: model, path: Selected, value: "@bob" }
//	  - expect: { element: row, property: Text, value: Bob }
//
// A string value "@name" refers to the source record of that name; nested
// maps in sources become nested records. A binding source names a source
// record or an element.
//
// # Steps
//
//   - set_source: writes a member path of a source record
//   - set_property: sets a property of an element
//   - set_context: replaces the context of an element
//   - refresh: requests a refresh of an element's bindings
//   - expect: compares an element property or a source path with a value
//
// Steps that can fail accept an error field: the step must then fail with an
// error containing that text.
package harness
