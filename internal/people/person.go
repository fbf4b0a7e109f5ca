// Package people serves CRUD over the "people" grid map. Every request is
// answered with exactly one call on the injected Store.
package people

import (
	"context"
)

// MapName is the grid map holding Person records keyed by id.
const MapName = "people"

// Person is the record stored under its ID in the people map.
type Person struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// Store is the subset of the grid map the handlers use. It is satisfied by
// *grid.NamedMap[int, Person].
type Store interface {
	Get(ctx context.Context, id int) (*Person, error)
	Put(ctx context.Context, id int, p Person) (*Person, error)
	Remove(ctx context.Context, id int) (*Person, error)
	Values(ctx context.Context) ([]Person, error)
}
