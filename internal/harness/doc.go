// Package harness runs YAML conformance scenarios against the normalizing
// dispatch pipeline.
//
// # Scenario Format
//
//	name: user_loaded
//	description: "A user payload is flattened and its schema stripped"
//	schemas: schemas            # CUE directory, relative to this file
//	steps:
//	  - dispatch:
//	      type: USER_LOADED
//	      payload: { id: 1, name: Ada }
//	      meta: { schema: user }
//	    expect:
//	      normalized: true
//	      schema_stripped: true
//	      result: 1
//	  - dispatch:
//	      type: USER_LOADED
//	      payload: { name: "no id" }
//	      meta: { schema: user }
//	    expect:
//	      error: MISSING_ID
//	assertions:
//	  - type: entity
//	    key: users
//	    id: "1"
//	    fields: { name: Ada }
//	  - type: forwarded_count
//	    count: 1
//
// # Expectations
//
//   - passthrough: the forwarded action equals the dispatched one
//   - normalized: the forwarded action differs (its payload was replaced)
//   - schema_stripped: the forwarded meta carries no schema
//   - payload: the forwarded payload equals this value
//   - result: the forwarded payload's "result" equals this value
//   - error: dispatch failed with this error code or message fragment
//
// # Assertion Types
//
//   - entity: the final state holds an entity whose fields include the given ones
//   - forwarded_count: N actions (optionally of one type) reached the reducer
//   - forwarded_order: action types reached the reducer in this order
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory journal with a deterministic clock and
// fixed entry ids, so traces are byte-identical between runs and can be
// compared against golden files with RunWithGolden.
package harness
