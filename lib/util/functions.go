package util

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// --------------------------------------------------------------------------
// General Utility Functions
// --------------------------------------------------------------------------

// GenerateSeed returns a random 64 bit value, falling back to the clock
func GenerateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

// UintKey is a hashed key
type UintKey uint64

// HashString hashes s with FNV-1a, mixing in seed
func HashString(s string, seed uint64) UintKey {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)

	hash := uint64(offset64) ^ seed
	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= prime64
	}
	return UintKey(hash)
}

// StringHasher adapts HashString to the hasher signature of xsync.NewMapOfWithHasher
func StringHasher(s string, seed uint64) uint64 {
	return uint64(HashString(s, seed))
}

// BucketID returns the id a bucket name travels as in every frame header
func BucketID(name string) uint64 {
	return uint64(HashString(name, 0))
}
