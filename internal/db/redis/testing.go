package redis

import "github.com/redis/rueidis"

// NewStoreForTest wraps an existing rueidis client (mock).
func NewStoreForTest(c rueidis.Client, prefix string) *Store {
	return newStore(c, prefix)
}
