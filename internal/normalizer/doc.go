// Package normalizer provides the dispatch interceptor that flattens action
// payloads into entity maps.
//
// An action asks for normalization by carrying a schema in its meta:
//
//	action.Action{
//	    Type:    "USER_LOADED",
//	    Payload: ir.Object{"id": ir.Int(123), "name": ir.String("user name")},
//	    Meta:    &action.Meta{Schema: users},
//	}
//
// The interceptor forwards a copy whose payload is
//
//	{"entities": {"users": {"123": {...}}}, "result": 123}
//
// and whose meta no longer carries the schema. Actions without meta, schema
// or payload, and error actions, are forwarded untouched. The dispatched
// action itself is never modified.
package normalizer
