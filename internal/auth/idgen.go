// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GridHive Contributors

package auth

import (
	"crypto/rand"

	"github.com/samber/oops"
)

// IDKind selects the entity an identifier is generated for. Each kind
// has a fixed length so identifiers are recognizable in logs and
// support responses.
type IDKind int

// Identifier kinds.
const (
	IDKindUser IDKind = iota
	IDKindToken
	IDKindOtp
)

// Length returns the identifier length for the kind.
func (k IDKind) Length() int {
	switch k {
	case IDKindUser:
		return 10
	case IDKindToken:
		return 16
	case IDKindOtp:
		return 12
	default:
		return 16
	}
}

func (k IDKind) String() string {
	switch k {
	case IDKindUser:
		return "user"
	case IDKindToken:
		return "token"
	case IDKindOtp:
		return "otp"
	default:
		return "unknown"
	}
}

// idAlphabet keeps identifiers URL-safe and case-insensitive-unambiguous.
const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// IDGenerator produces collision-resistant identifiers of a fixed
// length per entity kind.
type IDGenerator interface {
	Generate(kind IDKind) (string, error)
}

// RandomIDGenerator implements IDGenerator with crypto/rand.
type RandomIDGenerator struct{}

// NewRandomIDGenerator creates a RandomIDGenerator.
func NewRandomIDGenerator() *RandomIDGenerator {
	return &RandomIDGenerator{}
}

// Generate returns a new identifier for the kind. Bytes at or above
// the largest multiple of the alphabet size are rejected so characters
// stay uniformly distributed.
func (g *RandomIDGenerator) Generate(kind IDKind) (string, error) {
	const limit = 252
	length := kind.Length()
	id := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(id) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", oops.Code("AUTH_ID_GENERATE_FAILED").
				With("kind", kind.String()).
				Wrap(err)
		}
		for _, c := range buf {
			if c >= limit {
				continue
			}
			id = append(id, idAlphabet[int(c)%len(idAlphabet)])
			if len(id) == length {
				break
			}
		}
	}
	return string(id), nil
}
