package exchange

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// provisionalPrefix namespaces not-yet-persisted message IDs. The
// persistence layer never issues IDs with this prefix, so recognizing a
// provisional message is a cheap prefix check.
const provisionalPrefix = "temp-"

// IDSource produces one collision-resistant identifier.
type IDSource interface {
	NewID() (string, error)
}

// uuidSource is the strong source: a version 4 UUID from crypto/rand.
type uuidSource struct{}

func (uuidSource) NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Allocator issues provisional message IDs, falling back to a
// timestamp-plus-random-suffix composite when the strong source fails.
type Allocator struct {
	source IDSource
}

// NewAllocator returns an allocator backed by the crypto-strong UUID
// source.
func NewAllocator() *Allocator {
	return &Allocator{source: uuidSource{}}
}

// NewAllocatorWithSource returns an allocator backed by src.
func NewAllocatorWithSource(src IDSource) *Allocator {
	return &Allocator{source: src}
}

// Allocate returns a fresh provisional message ID.
func (a *Allocator) Allocate() string {
	id, err := a.source.NewID()
	if err != nil {
		id = fmt.Sprintf("%d-%06d", time.Now().UnixNano(), rand.Intn(1000000))
	}
	return provisionalPrefix + id
}

// IsProvisionalID reports whether id names a provisional (unpersisted)
// message.
func IsProvisionalID(id string) bool {
	return strings.HasPrefix(id, provisionalPrefix)
}
