package schema

import (
	"fmt"
	"sort"

	"github.com/roach88/normware/internal/ir"
)

// Entities maps entity key to entity id to the flattened entity.
type Entities map[string]map[string]ir.Object

// Result is the output of Normalize.
type Result struct {
	// Result is the input skeleton with every entity replaced by its id.
	Result ir.Value

	// Entities holds every entity found, keyed by schema key then id.
	Entities Entities
}

// Value returns the result as the payload object
// {"entities": {key: {id: entity}}, "result": skeleton}.
func (r *Result) Value() ir.Object {
	entities := make(ir.Object, len(r.Entities))
	for key, bucket := range r.Entities {
		byID := make(ir.Object, len(bucket))
		for id, entity := range bucket {
			byID[id] = entity
		}
		entities[key] = byID
	}
	return ir.Object{
		"entities": entities,
		"result":   r.Result,
	}
}

// Entity looks up a stored entity.
func (r *Result) Entity(key, id string) (ir.Object, bool) {
	e, ok := r.Entities[key][id]
	return e, ok
}

// Keys returns the entity keys present, sorted.
func (r *Result) Keys() []string {
	keys := make([]string, 0, len(r.Entities))
	for k := range r.Entities {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Count returns the total number of stored entities.
func (r *Result) Count() int {
	n := 0
	for _, bucket := range r.Entities {
		n += len(bucket)
	}
	return n
}

// ResultFromValue parses a payload produced by Result.Value back into a Result.
func ResultFromValue(v ir.Value) (*Result, error) {
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("normalized payload must be an object, got %s", kindOf(v))
	}
	result, ok := obj["result"]
	if !ok {
		return nil, fmt.Errorf("normalized payload has no \"result\"")
	}
	rawEntities, ok := obj["entities"].(ir.Object)
	if !ok {
		return nil, fmt.Errorf("normalized payload has no \"entities\" object")
	}

	entities := make(Entities, len(rawEntities))
	for key, rawBucket := range rawEntities {
		bucket, ok := rawBucket.(ir.Object)
		if !ok {
			return nil, fmt.Errorf("entities[%q] must be an object, got %s", key, kindOf(rawBucket))
		}
		entities[key] = make(map[string]ir.Object, len(bucket))
		for id, rawEntity := range bucket {
			entity, ok := rawEntity.(ir.Object)
			if !ok {
				return nil, fmt.Errorf("entities[%q][%q] must be an object, got %s", key, id, kindOf(rawEntity))
			}
			entities[key][id] = entity
		}
	}
	return &Result{Result: result, Entities: entities}, nil
}
