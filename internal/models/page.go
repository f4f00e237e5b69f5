package models

// Page is one window of a paginated listing. Count is the total number of
// matches for the query and never depends on skip or limit.
type Page[T any] struct {
	Data  []T `json:"data"`
	Count int `json:"count"`
}

// EmptyPage returns a page with no data and the given total count.
func EmptyPage[T any](count int) Page[T] {
	return Page[T]{Data: []T{}, Count: count}
}
