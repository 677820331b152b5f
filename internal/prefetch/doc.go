// Package prefetch implements the annotation session: a bounded, ordered
// cache of loaded images around a cursor.
//
// Every cursor move requests a prefetch pass. A pass loads the cursor item,
// NextRadius items ahead and PrevRadius items behind that are not yet cached,
// concurrently and independently; when all loads have finished it inserts the
// results in index order and evicts every entry outside
// [cursor-(PrevRadius+KeepBuffer), cursor+(NextRadius+KeepBuffer)]. The cache
// therefore never holds more than Window.Capacity entries after a pass.
//
// Only one pass runs at a time. A request arriving while a pass runs is
// merged into a single follow-up pass (PassPolicyCoalesce) or discarded
// (PassPolicyDrop). Loads are not cancelled when the cursor moves on; their
// results are cleaned up by the next eviction. While a Pressure source
// reports memory pressure, passes load only the cursor item.
//
// Labels are validated against the sidecar's modification time on each read,
// detections are loaded once per entry, and SaveLabels writes through to disk
// before touching the cache.
//
// DeltaSince serves consumers that keep their own copy of the cache: it
// returns the entries they have not seen and an End marker with the
// retention radii they should evict with.
package prefetch
