// Package query builds and executes attribute queries with grouping and
// aggregation over a snapshot of cached records.
//
// A query is described by an immutable Spec, built with Builder. Execute
// resolves every referenced attribute, scans the source once in store order,
// partitions matching records by their group-by values and folds each group
// through the requested aggregations (SUM, AVERAGE, COUNT, MIN, MAX).
//
// Sources implementing IndexedSource let equality criteria on indexed
// attributes narrow the scan to candidate rows.
package query
