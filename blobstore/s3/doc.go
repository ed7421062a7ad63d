// Package s3 provides an S3 implementation of the blobstore.BlobStore interface
// and a DynamoDB-backed snapshot committer.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("caches/orders/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	mgr := snapshot.NewManager(store,
//	    snapshot.WithCommitter(s3.NewDDBCommitter(ddb, "searchcache-commits", "s3://my-bucket/caches/orders/")),
//	)
//
// # Features
//
//   - Multipart uploads for large snapshots
//   - CRC32C integrity checks
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
//   - Conditional commits through DynamoDB for concurrent writers
package s3
