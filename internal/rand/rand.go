package rand

import (
	cryptorand "crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

const (
	bytesInUint64 = 8
	charset       = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789" // reduced base64
)

var charsetLen = len(charset)

// Source is a mutex-guarded PCG stream. A seeded Source replays the same
// sequence of draws for the same seed string; an unseeded one starts from
// crypto/rand entropy and never repeats across processes.
type Source struct {
	mut sync.Mutex
	rng *rand.Rand
}

// NewSeeded derives the two PCG seed words from a SHA-256 digest of the
// seed string, so equal seeds yield equal streams across instances and runs.
func NewSeeded(seed string) *Source {
	sum := sha256.Sum256([]byte(seed))

	return &Source{
		rng: rand.New(rand.NewPCG(
			binary.LittleEndian.Uint64(sum[:bytesInUint64]),
			binary.LittleEndian.Uint64(sum[bytesInUint64 : 2*bytesInUint64]),
		)),
	}
}

// New returns a Source seeded from crypto/rand.
func New() *Source {
	randomBytes := make([]byte, bytesInUint64*2)

	if _, err := cryptorand.Read(randomBytes); err != nil {
		panic("unreachable")
	}

	return &Source{
		//nolint:gosec // no security required
		rng: rand.New(rand.NewPCG(
			binary.LittleEndian.Uint64(randomBytes[:bytesInUint64]),
			binary.LittleEndian.Uint64(randomBytes[bytesInUint64:]),
		)),
	}
}

// Float64 draws one value in [0, 1).
func (s *Source) Float64() float64 {
	s.mut.Lock()
	defer s.mut.Unlock()

	return s.rng.Float64()
}

var defaultSource = New()

// NewRequestID returns a base62 identifier of the given length, suitable for
// correlating one caller operation across failure records and logs.
// Distribution is not perfectly uniform; not security-critical in this case,
// so acceptable.
func NewRequestID(requestIDLength int) string {
	buf := make([]byte, requestIDLength)

	defaultSource.mut.Lock()
	for i := range buf {
		buf[i] = charset[defaultSource.rng.IntN(charsetLen)]
	}
	defaultSource.mut.Unlock()

	return string(buf)
}
