// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fheint

import "fmt"

// Block is the atomic encrypted unit: one digit of a multi-block integer.
//
// Degree is an upper bound on the plaintext value the block currently
// represents. The engine maintains the invariant Degree < TotalModulus();
// violating it before a lookup table is applied is a programming error,
// not a runtime condition.
type Block struct {
	// Payload is the opaque ciphertext, owned by the backend.
	Payload Payload
	// Degree bounds the plaintext value currently held.
	Degree uint64
	// MessageModulus is the plaintext alphabet of this block. Radix blocks
	// share the server key's message modulus; CRT blocks carry their own
	// basis modulus here.
	MessageModulus uint64
	// CarryModulus is the headroom factor above the message space.
	CarryModulus uint64
}

// TotalModulus returns the block's full plaintext space.
func (b *Block) TotalModulus() uint64 {
	return b.MessageModulus * b.CarryModulus
}

// CarryIsEmpty reports whether the block holds no pending carry,
// i.e. its degree is below the message modulus.
func (b *Block) CarryIsEmpty() bool {
	return b.Degree < b.MessageModulus
}

// Clone returns a deep copy of the block.
func (b *Block) Clone() *Block {
	return &Block{
		Payload:        b.Payload.Clone(),
		Degree:         b.Degree,
		MessageModulus: b.MessageModulus,
		CarryModulus:   b.CarryModulus,
	}
}

// BooleanBlock is a block constrained to encrypt 0 or 1. It is produced by
// comparisons and logical operations and consumed as a selector by the
// conditional-select engine.
type BooleanBlock struct {
	block *Block
}

// NewBooleanBlock wraps a block known to encrypt 0 or 1.
// Panics if the block's degree exceeds 1.
func NewBooleanBlock(b *Block) *BooleanBlock {
	if b.Degree > 1 {
		panic(fmt.Sprintf("fheint: boolean block with degree %d", b.Degree))
	}
	return &BooleanBlock{block: b}
}

// AsBlock exposes the underlying block.
func (c *BooleanBlock) AsBlock() *Block { return c.block }

// Clone returns a deep copy of the boolean block.
func (c *BooleanBlock) Clone() *BooleanBlock {
	return &BooleanBlock{block: c.block.Clone()}
}

// TrivialBlock creates a noiseless block encrypting value in the server
// key's plaintext space. Its degree equals the value itself, so a trivial
// zero is provably zero to every degree check downstream.
func (sk *ServerKey) TrivialBlock(value uint64) (*Block, error) {
	value %= sk.params.TotalModulus()
	p, err := sk.backend.Trivial(value)
	if err != nil {
		return nil, fmt.Errorf("trivial block: %w", err)
	}
	return &Block{
		Payload:        p,
		Degree:         value,
		MessageModulus: sk.params.MessageModulus,
		CarryModulus:   sk.params.CarryModulus,
	}, nil
}

// NewTrivialBoolean creates a noiseless boolean block.
func (sk *ServerKey) NewTrivialBoolean(v bool) (*BooleanBlock, error) {
	var value uint64
	if v {
		value = 1
	}
	b, err := sk.TrivialBlock(value)
	if err != nil {
		return nil, err
	}
	return NewBooleanBlock(b), nil
}

// uncheckedAddAssign adds src into dst homomorphically. Degrees add;
// the caller is responsible for having checked the budget.
func (sk *ServerKey) uncheckedAddAssign(dst, src *Block) error {
	p, err := sk.backend.Add(dst.Payload, src.Payload)
	if err != nil {
		return fmt.Errorf("block add: %w", err)
	}
	dst.Payload = p
	dst.Degree += src.Degree
	return nil
}

// uncheckedScalarAddAssign adds a plaintext scalar into dst. The scalar
// must already be reduced modulo the block's message modulus domain.
func (sk *ServerKey) uncheckedScalarAddAssign(dst *Block, scalar uint64) error {
	if scalar == 0 {
		return nil
	}
	p, err := sk.backend.ScalarAdd(dst.Payload, scalar)
	if err != nil {
		return fmt.Errorf("block scalar add: %w", err)
	}
	dst.Payload = p
	dst.Degree += scalar
	return nil
}

// uncheckedScalarMulAssign multiplies dst by a small plaintext scalar.
func (sk *ServerKey) uncheckedScalarMulAssign(dst *Block, scalar uint64) error {
	p, err := sk.backend.ScalarMul(dst.Payload, scalar)
	if err != nil {
		return fmt.Errorf("block scalar mul: %w", err)
	}
	dst.Payload = p
	dst.Degree *= scalar
	return nil
}
