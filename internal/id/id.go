// Package id produces ULID identifiers. Simulation runs need
// byte-identical output across replays, so the Generator draws its
// entropy from a fixed-seed PRNG and its timestamps from simulated
// time, never from the wall clock.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator emits time-sortable ULIDs for one simulation run.
type Generator struct {
	mono io.Reader
}

// NewGenerator seeds a deterministic entropy source. The same seed and
// the same sequence of timestamps reproduce the same IDs.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		mono: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
	}
}

// At returns the next ULID stamped with the given simulated time.
func (g *Generator) At(t time.Time) string {
	id, err := ulid.New(ulid.Timestamp(t.UTC()), g.mono)
	if err != nil {
		// Only reachable if the entropy source fails, which the
		// deterministic PRNG cannot.
		panic(err)
	}
	return id.String()
}

// New returns a wall-clock ULID for identifiers outside the replay
// path, such as run IDs.
func New() string {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mono := ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), mono)
	if err != nil {
		panic(err)
	}
	return id.String()
}
