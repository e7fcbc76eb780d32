package interpreter

import "github.com/oraichain/ibc-routing/tracker/store"

// Effect is a persistence action a transition asks the runtime to perform.
type Effect interface {
	isEffect()
}

// InsertEffect stores a new hop. Inserting an existing key is a no-op.
type InsertEffect struct {
	Record store.Record
}

// UpdateEffect patches the hops of Domain selected by Where. When Required is set
// and nothing matched, the predecessor is missing and the instance fails.
type UpdateEffect struct {
	Domain   store.Domain
	Patch    map[string]any
	Where    map[string]any
	Required bool
}

func (InsertEffect) isEffect() {}
func (UpdateEffect) isEffect() {}

// finish marks the predecessor hop as complete.
func finish(k *RecordKey, extra map[string]any) UpdateEffect {
	patch := map[string]any{store.ColumnStatus: string(store.StatusFinished)}
	for col, v := range extra {
		patch[col] = v
	}
	return UpdateEffect{
		Domain:   k.Domain,
		Patch:    patch,
		Where:    k.Where(),
		Required: true,
	}
}
