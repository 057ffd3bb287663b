// Package match correlates image-similarity hits with known reports and
// merges user-edited matches back into the report store.
//
// Correlation and merging are synchronous transformations over in-memory
// slices. Callers pass a stable snapshot of the store (RecordStore.List
// returns a copy) so concurrent writers never race with a scan.
package match
