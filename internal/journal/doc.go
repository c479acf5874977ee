// Package journal records dispatched actions in a SQLite database.
//
// Each entry stores the action as canonical JSON together with a
// domain-separated digest, a logical sequence number and a UUIDv7 id.
// Entries read back in seq order, so a journal doubles as a trace of what
// a store's reducer saw:
//
//	j, err := journal.Open("actions.db", journal.WithRegistry(reg))
//	store := dispatch.New(reducer, ir.Object{},
//	    normalizer.Factory(),
//	    j.Recorder(),
//	)
//
// Installed after the normalizer, the recorder journals normalized
// payloads; installed before it, the raw ones.
package journal
