package models

// Product is a catalog feed offer after group de-duplication: one
// entry per group, the cheapest variant wins.
type Product struct {
  Id          string
  OfferId     string
  Title       string
  FullName    string
  Price       int64
  Pictures    []string
  Description string
  URL         string
}
