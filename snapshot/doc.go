// Package snapshot persists cache contents to a blob store.
//
// A snapshot is a small binary header followed by compressed blocks of
// codec-encoded entries. The Manager writes numbered versions and publishes
// them through a Committer:
//
//	mgr, err := snapshot.NewManager[string, Order](blobstore.NewLocalStore(dir),
//		snapshot.WithCompression(snapshot.CompressionZSTD),
//		snapshot.WithRetain(3),
//	)
//	version, err := mgr.Save(ctx, c.Snapshot().Entries())
//
// Several processes sharing one bucket should use a conditional committer
// such as s3.DDBCommitter.
package snapshot
