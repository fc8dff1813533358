// Package fheint implements the server-side homomorphic execution engine
// for encrypted multi-block integers.
//
// Integers are represented as sequences of encrypted blocks (radix digits,
// two's-complement signed digits, or CRT residues). Every block carries a
// degree: an upper bound on the plaintext it can currently hold. Operations
// consume degree; only a programmable bootstrap resets it. The engine keeps
// that bookkeeping exact so composite operations (conditional selection,
// scalar arithmetic) never leave the regime the cryptography guarantees.
//
// The lattice cryptography itself is consumed through the Backend contract:
// block-level linear operations plus an opaque "apply lookup table" bootstrap
// primitive. A lattice-backed implementation built on luxfi/lattice blind
// rotation lives in this package; alternate backends (GPU kernels, remote
// coprocessors) plug in behind the same contract.
//
// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause
package fheint

import (
	"fmt"
	"math/bits"
	"runtime"
)

// Parameters fixes the plaintext geometry of every block handled by a
// ServerKey: the message alphabet size and the carry headroom above it.
// A block's degree must stay below MessageModulus*CarryModulus at all times.
type Parameters struct {
	// MessageModulus is the size of the plaintext alphabet of one block.
	// Must be a power of two: radix digits are MessageModulus-based.
	MessageModulus uint64
	// CarryModulus is the headroom factor above the message space that
	// operations may consume before a bootstrap becomes mandatory.
	CarryModulus uint64
}

// Standard parameter sets, named after their message/carry bit split.
var (
	// ParamMessage1Carry1 gives 1 bit of message and 1 bit of carry.
	ParamMessage1Carry1 = Parameters{MessageModulus: 2, CarryModulus: 2}
	// ParamMessage2Carry2 gives 2 bits of message and 2 bits of carry.
	// This is the default trade-off for radix integers.
	ParamMessage2Carry2 = Parameters{MessageModulus: 4, CarryModulus: 4}
	// ParamMessage3Carry3 gives 3 bits of message and 3 bits of carry,
	// large enough for CRT bases with moduli up to 8.
	ParamMessage3Carry3 = Parameters{MessageModulus: 8, CarryModulus: 8}
)

// TotalModulus returns the full plaintext space of one block,
// message space times carry space.
func (p Parameters) TotalModulus() uint64 {
	return p.MessageModulus * p.CarryModulus
}

// MessageBits returns log2(MessageModulus), the radix digit width.
func (p Parameters) MessageBits() int {
	return bits.TrailingZeros64(p.MessageModulus)
}

func (p Parameters) validate() error {
	if p.MessageModulus < 2 || p.MessageModulus&(p.MessageModulus-1) != 0 {
		return fmt.Errorf("message modulus must be a power of two >= 2, got %d", p.MessageModulus)
	}
	if p.CarryModulus < 2 {
		return fmt.Errorf("carry modulus must be >= 2, got %d", p.CarryModulus)
	}
	return nil
}

// Payload is the opaque encrypted payload of a single block. The engine
// never inspects it; only the Backend that produced it can operate on it.
type Payload interface {
	// Clone returns a deep copy of the payload.
	Clone() Payload
}

// Backend is the block-level contract between the engine and the underlying
// cryptography. Linear operations are cheap and noise-additive; Bootstrap is
// the expensive primitive that evaluates a lookup table and resets noise.
//
// All methods return new payloads; inputs are never mutated.
type Backend interface {
	// Add homomorphically adds two payloads.
	Add(a, b Payload) (Payload, error)
	// ScalarAdd homomorphically adds a plaintext scalar to a payload.
	ScalarAdd(a Payload, scalar uint64) (Payload, error)
	// ScalarMul homomorphically multiplies a payload by a small plaintext scalar.
	ScalarMul(a Payload, scalar uint64) (Payload, error)
	// Trivial produces a noiseless encryption of a known value.
	Trivial(value uint64) (Payload, error)
	// Bootstrap applies a lookup table to a payload via programmable
	// bootstrapping, producing a fresh payload.
	Bootstrap(a Payload, lut *LookupTable) (Payload, error)
	// BootstrapMany extracts one output payload per table in lut from a
	// single evaluation of the input payload.
	BootstrapMany(a Payload, lut *ManyLookupTable) ([]Payload, error)
	// MarshalPayload serializes a payload for storage or transport.
	MarshalPayload(p Payload) ([]byte, error)
	// UnmarshalPayload reverses MarshalPayload.
	UnmarshalPayload(data []byte) (Payload, error)
}

// ServerKey drives homomorphic operations on encrypted integers. It holds
// the immutable modulus configuration and the bootstrap capability; it is
// safe for concurrent use by multiple goroutines.
type ServerKey struct {
	params  Parameters
	backend Backend

	// maxWorkers bounds the per-block fan-out of parallelized operations.
	maxWorkers int

	// Tables shared by every selection operation.
	messageExtractLUT *LookupTable // x -> x % MessageModulus
	carryExtractLUT   *LookupTable // x -> x / MessageModulus
	booleanNotLUT     *LookupTable // x -> 1 - (x & 1)
}

// NewServerKey creates a server key over the given backend.
func NewServerKey(params Parameters, backend Backend) (*ServerKey, error) {
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("server key parameters: %w", err)
	}
	sk := &ServerKey{
		params:     params,
		backend:    backend,
		maxWorkers: runtime.GOMAXPROCS(0),
	}
	msgMod := params.MessageModulus
	sk.messageExtractLUT = sk.GenerateLookupTable(func(x uint64) uint64 { return x % msgMod })
	sk.carryExtractLUT = sk.GenerateLookupTable(func(x uint64) uint64 { return x / msgMod })
	sk.booleanNotLUT = sk.GenerateLookupTable(func(x uint64) uint64 { return 1 - (x & 1) })
	return sk, nil
}

// Parameters returns the modulus configuration.
func (sk *ServerKey) Parameters() Parameters { return sk.params }

// MessageModulus returns the plaintext alphabet size of one block.
func (sk *ServerKey) MessageModulus() uint64 { return sk.params.MessageModulus }

// CarryModulus returns the carry headroom factor of one block.
func (sk *ServerKey) CarryModulus() uint64 { return sk.params.CarryModulus }
