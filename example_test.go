package searchcache_test

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/hupe1980/searchcache"
	"github.com/hupe1980/searchcache/attribute"
	"github.com/hupe1980/searchcache/query"
)

type Order struct {
	OrderID    int
	OrderPrice int
	City       string
	Customer   string
}

// customerName is a custom extractor, as opposed to the expression-based
// attributes.
type customerName struct{}

func (customerName) AttributeFor(_ int, o Order, _ string) (attribute.Value, error) {
	return attribute.String(o.Customer), nil
}

func newOrderCache() *searchcache.Cache[int, Order] {
	c, err := searchcache.New[int, Order]("orders",
		searchcache.WithSearchAttributes(
			attribute.MustExpression[int, Order]("orderId", "value.OrderID"),
			attribute.MustExpression[int, Order]("orderPrice", "value.OrderPrice"),
			attribute.MustExpression[int, Order]("city", "value.City"),
			attribute.Custom[int, Order]("customerName", customerName{}),
		),
		searchcache.WithIndexedAttributes("city"),
	)
	if err != nil {
		log.Fatal(err)
	}

	orders := []Order{
		{1, 100, "NY", "Alpha"},
		{2, 160, "SFO", "Romeo"},
		{3, 70, "NY", "Alpha"},
		{4, 30, "MI", "John"},
		{5, 200, "AZ", "Romeo"},
		{6, 200, "LA", "Sam"},
		{7, 50, "NY", "John"},
		{8, 60, "SFO", "Beta"},
		{9, 80, "NY", "Alpha"},
		{10, 10, "MI", "John"},
		{11, 100, "AZ", "Bravo"},
		{12, 300, "LA", "Sam"},
	}
	for _, o := range orders {
		if err := c.Put(o.OrderID, o); err != nil {
			log.Fatal(err)
		}
	}
	return c
}

func str(row query.Row, name string) string {
	v, _ := row.Attribute(name)
	s, _ := v.AsString()
	return s
}

// Example_groupBySum sums order prices per customer and city.
func Example_groupBySum() {
	c := newOrderCache()

	rs, err := c.CreateQuery().
		Include("customerName", "city").
		IncludeAggregator(query.Sum("orderPrice")).
		GroupBy("customerName", "city").
		Execute(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Has aggregators:", rs.HasAggregators())
	for row := range rs.Rows() {
		fmt.Printf("%s,%s,%v\n", str(row, "customerName"), str(row, "city"), row.Aggregates()[0])
	}
	// Output:
	// Has aggregators: true
	// Alpha,NY,250
	// Romeo,SFO,160
	// John,MI,40
	// Romeo,AZ,200
	// Sam,LA,500
	// John,NY,50
	// Beta,SFO,60
	// Bravo,AZ,100
}

// Example_groupByAverage averages order prices per customer.
func Example_groupByAverage() {
	c := newOrderCache()

	rs, err := c.CreateQuery().
		Include("customerName").
		IncludeAggregator(query.Average("orderPrice")).
		GroupBy("customerName").
		Execute(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	for row := range rs.Rows() {
		avg, _ := row.Aggregates()[0].AsFloat64()
		fmt.Printf("%s,%.2f\n", str(row, "customerName"), avg)
	}
	// Output:
	// Alpha,83.33
	// Romeo,180.00
	// John,30.00
	// Sam,250.00
	// Beta,60.00
	// Bravo,100.00
}

// Example_criteria uses the city index and orders the result.
func Example_criteria() {
	c := newOrderCache()

	rs, err := c.CreateQuery().
		Include("city").
		IncludeAggregator(query.Sum("orderPrice"), query.Count()).
		AddCriteria(query.In("city", "NY", "LA", "MI")).
		GroupBy("city").
		AddOrderBy("city", query.Ascending).
		Execute(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	var lines []string
	for row := range rs.Rows() {
		aggs := row.Aggregates()
		lines = append(lines, fmt.Sprintf("%s sum=%v count=%v", str(row, "city"), aggs[0], aggs[1]))
	}
	fmt.Println(strings.Join(lines, "\n"))
	// Output:
	// LA sum=500 count=2
	// MI sum=40 count=2
	// NY sum=300 count=4
}
