// Package schema describes entity schemas and normalizes nested payloads
// against them.
//
// Normalizing replaces every nested entity with its id and collects the
// entities, flattened, into a map keyed by entity type then id:
//
//	user := schema.NewEntity("users")
//	article := schema.NewEntity("articles").Define(map[string]schema.Schema{
//	    "author": user,
//	})
//	res, err := schema.Normalize(payload, schema.ArrayOf(article))
//	// res.Result:   [1, 2]
//	// res.Entities: {"articles": {"1": {..., "author": 7}}, "users": {"7": {...}}}
//
// Schemas are immutable once built, except that Entity.Define may be called
// until the first Normalize to close reference cycles.
package schema
