package generator

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator is an interface that defines a method to generate a new value of type T.
type Generator[T any] interface {
	Next() (T, error)
}

// UUIDV4Generator produces UUIDv4 strings. The session signer uses it for
// request nonces.
type UUIDV4Generator struct{}

func (g *UUIDV4Generator) Next() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var _ Generator[string] = &UUIDV4Generator{}

// Counter produces increasing decimal strings with an optional prefix.
// It never fails and is safe for concurrent use, which makes it suitable
// for tagging sound instances on the trigger path.
type Counter struct {
	Prefix string
	n      atomic.Uint64
}

func (c *Counter) Next() (string, error) {
	return c.Prefix + strconv.FormatUint(c.n.Add(1), 10), nil
}

var _ Generator[string] = &Counter{}
