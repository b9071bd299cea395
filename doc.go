// Package optcache is an optimistic, identity-preserving result cache.
//
// Consumers that bind to cached objects by reference (view models, template
// scopes) keep the same *value.Object or *value.Sequence for the life of a
// key: every later resolution is merged into it in place.
//
// Components:
//   - Mapper: raw payload -> domain value (value.FromRaw when unset).
//   - value.Merge: in-place reconciliation of objects and sequences.
//   - Store: keyed registry of entries; list payloads seed child entries
//     ("users" -> "users/1", "users/2") so a later per-item fetch is served
//     from cache before its own response arrives.
//   - Handle: returned by Store.Cache; Bind assigns the canonical value into a
//     Target, Then chains on the resolution.
//
// Usage:
//
//	store, _ := optcache.New(optcache.Options{})
//	vm := optcache.NewScope()
//	store.Cache(optcache.Fetch(ctx, loadUser), "users/1", optcache.FetchOptions{}).
//		Bind(vm, "user").
//		Then(func(v value.Value) { render(vm) }, func(err error) { showError(err) })
//
// If "users" was fetched earlier, vm's "user" is assigned immediately and
// later updated in place when loadUser returns.
//
// Snapshots (optional): with Options.Snapshots set (see persist), canonical
// values are written out after each resolution and Store.Warm pre-fills
// entries from them at start-up.
package optcache
