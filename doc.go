// Package searchcache provides an in-memory key/value cache whose entries can
// be queried by named search attributes, with SQL-style grouping and the
// aggregate functions SUM, AVERAGE, COUNT, MIN and MAX.
//
// # Quick Start
//
//	type Order struct {
//	    Customer string
//	    City     string
//	    Price    int
//	}
//
//	c, err := searchcache.New[int, Order]("orders",
//	    searchcache.WithSearchAttributes(
//	        attribute.Field[int]("customer", func(o Order) any { return o.Customer }),
//	        attribute.Field[int]("city", func(o Order) any { return o.City }),
//	        attribute.Field[int]("price", func(o Order) any { return o.Price }),
//	    ),
//	    searchcache.WithIndexedAttributes("city"),
//	)
//
//	_ = c.Put(1, Order{Customer: "Alpha", City: "New York", Price: 100})
//
//	rs, err := c.CreateQuery().
//	    Include("customer", "city").
//	    GroupBy("customer", "city").
//	    IncludeAggregator(query.Sum("price")).
//	    Execute(ctx)
//	for row := range rs.Rows() {
//	    customer, _ := row.Attribute("customer")
//	    fmt.Println(customer, row.Aggregates())
//	}
//
// # Search attributes
//
// Attributes are declared with the attribute package: direct field accessors
// (attribute.Field), reflective path expressions (attribute.Expression) and
// user supplied extractors (attribute.Custom). Attributes listed in
// WithIndexedAttributes keep an equality index that narrows queries with
// equality or IN criteria.
//
// # Grouping
//
// Entries with equal values for every GROUP BY attribute form one result row.
// Rows appear in the order their group was first encountered while scanning
// the cache in insertion order, unless the query orders them explicitly.
// Aggregates skip null values; SUM and AVERAGE reject non-numeric values.
//
// # Resource control and persistence
//
// WithResourceConfig bounds concurrent queries and the query rate. Snapshots
// of the cache contents are written through snapshot.Manager to any
// blobstore.BlobStore (local disk, memory, S3, MinIO).
package searchcache
