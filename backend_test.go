// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fheint

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"testing"
)

// plainPayload is a plaintext stand-in for an encrypted block payload. It
// lets the engine tests verify the arithmetic and the degree bookkeeping
// exactly, independent of any lattice noise.
type plainPayload struct {
	value uint64
}

func (p *plainPayload) Clone() Payload {
	return &plainPayload{value: p.value}
}

// plainBackend implements Backend over plaintext values modulo the block's
// total plaintext space. It counts bootstrap calls so tests can assert on
// the exact cost of an operation.
type plainBackend struct {
	total      uint64
	bootstraps atomic.Int64
}

func newPlainBackend(params Parameters) *plainBackend {
	return &plainBackend{total: params.TotalModulus()}
}

func (be *plainBackend) value(p Payload) uint64 {
	return p.(*plainPayload).value
}

func (be *plainBackend) Add(a, b Payload) (Payload, error) {
	return &plainPayload{value: (be.value(a) + be.value(b)) % be.total}, nil
}

func (be *plainBackend) ScalarAdd(a Payload, scalar uint64) (Payload, error) {
	return &plainPayload{value: (be.value(a) + scalar) % be.total}, nil
}

func (be *plainBackend) ScalarMul(a Payload, scalar uint64) (Payload, error) {
	return &plainPayload{value: (be.value(a) * scalar) % be.total}, nil
}

func (be *plainBackend) Trivial(value uint64) (Payload, error) {
	return &plainPayload{value: value % be.total}, nil
}

func (be *plainBackend) Bootstrap(a Payload, lut *LookupTable) (Payload, error) {
	be.bootstraps.Add(1)
	return &plainPayload{value: lut.Entries[be.value(a)%be.total]}, nil
}

func (be *plainBackend) BootstrapMany(a Payload, lut *ManyLookupTable) ([]Payload, error) {
	be.bootstraps.Add(1)
	out := make([]Payload, len(lut.Tables))
	for i, t := range lut.Tables {
		out[i] = &plainPayload{value: t.Entries[be.value(a)%be.total]}
	}
	return out, nil
}

func (be *plainBackend) MarshalPayload(p Payload) ([]byte, error) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, be.value(p))
	return buf, nil
}

func (be *plainBackend) UnmarshalPayload(data []byte) (Payload, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("unmarshal payload: %d bytes, want 8", len(data))
	}
	return &plainPayload{value: binary.LittleEndian.Uint64(data)}, nil
}

// testServerKey builds a server key over a fresh plain backend.
func testServerKey(t *testing.T, params Parameters) (*ServerKey, *plainBackend) {
	t.Helper()
	be := newPlainBackend(params)
	sk, err := NewServerKey(params, be)
	if err != nil {
		t.Fatalf("NewServerKey: %v", err)
	}
	return sk, be
}

// freshBlock models a freshly encrypted digit: full message degree, empty carry.
func freshBlock(sk *ServerKey, value uint64) *Block {
	return &Block{
		Payload:        &plainPayload{value: value % sk.params.MessageModulus},
		Degree:         sk.params.MessageModulus - 1,
		MessageModulus: sk.params.MessageModulus,
		CarryModulus:   sk.params.CarryModulus,
	}
}

// freshBoolean models a freshly encrypted boolean selector.
func freshBoolean(sk *ServerKey, v bool) *BooleanBlock {
	var value uint64
	if v {
		value = 1
	}
	return NewBooleanBlock(&Block{
		Payload:        &plainPayload{value: value},
		Degree:         1,
		MessageModulus: sk.params.MessageModulus,
		CarryModulus:   sk.params.CarryModulus,
	})
}

// freshRadix models a freshly encrypted radix integer.
func freshRadix(sk *ServerKey, value uint64, numBlocks int) *RadixCiphertext {
	digits := decomposeUnsigned(value, sk.params.MessageModulus, numBlocks)
	blocks := make([]*Block, numBlocks)
	for i, d := range digits {
		blocks[i] = freshBlock(sk, d)
	}
	return NewRadixCiphertext(blocks)
}

// freshSignedRadix models a freshly encrypted signed radix integer.
func freshSignedRadix(sk *ServerKey, value int64, numBlocks int) *SignedRadixCiphertext {
	digits := decomposeSigned(value, sk.params.MessageModulus, numBlocks, sk.params.MessageBits())
	blocks := make([]*Block, numBlocks)
	for i, d := range digits {
		blocks[i] = freshBlock(sk, d)
	}
	return NewSignedRadixCiphertext(blocks)
}

// freshCrt models a freshly encrypted CRT integer over the given basis.
func freshCrt(sk *ServerKey, value uint64, moduli []uint64) *CrtCiphertext {
	total := sk.params.TotalModulus()
	blocks := make([]*Block, len(moduli))
	for i, m := range moduli {
		blocks[i] = &Block{
			Payload:        &plainPayload{value: value % m},
			Degree:         m - 1,
			MessageModulus: m,
			CarryModulus:   total / m,
		}
	}
	basis := make([]uint64, len(moduli))
	copy(basis, moduli)
	return NewCrtCiphertext(blocks, basis)
}

// decryptRadix reads a radix value back from plain payloads, folding pending
// carries into higher digits the way propagation would.
func decryptRadix(sk *ServerKey, ct IntegerCiphertext) uint64 {
	msgMod := sk.params.MessageModulus
	var value, carry, shift uint64 = 0, 0, 1
	for _, b := range ct.Blocks() {
		raw := b.Payload.(*plainPayload).value + carry
		value += (raw % msgMod) * shift
		carry = raw / msgMod
		shift *= msgMod
	}
	return value
}

// decryptSignedRadix is decryptRadix with two's-complement interpretation.
func decryptSignedRadix(sk *ServerKey, ct *SignedRadixCiphertext) int64 {
	bits := sk.params.MessageBits() * len(ct.Blocks())
	value := decryptRadix(sk, ct)
	if bits >= 64 {
		return int64(value)
	}
	mask := uint64(1)<<bits - 1
	value &= mask
	if value&(1<<(bits-1)) != 0 {
		return int64(value | ^mask)
	}
	return int64(value)
}

// decryptCrt reads a CRT value back from plain payloads.
func decryptCrt(ct *CrtCiphertext) uint64 {
	moduli := ct.Moduli()
	residues := make([]uint64, len(ct.Blocks()))
	for i, b := range ct.Blocks() {
		residues[i] = b.Payload.(*plainPayload).value % moduli[i]
	}
	return CrtRecompose(residues, moduli)
}

// decryptBool reads a boolean selector back from its plain payload.
func decryptBool(c *BooleanBlock) bool {
	return c.AsBlock().Payload.(*plainPayload).value%2 == 1
}

func TestParametersValidate(t *testing.T) {
	for _, p := range []Parameters{ParamMessage1Carry1, ParamMessage2Carry2, ParamMessage3Carry3} {
		if err := p.validate(); err != nil {
			t.Errorf("standard parameters %+v rejected: %v", p, err)
		}
	}
	bad := []Parameters{
		{MessageModulus: 3, CarryModulus: 4},
		{MessageModulus: 0, CarryModulus: 4},
		{MessageModulus: 4, CarryModulus: 1},
	}
	for _, p := range bad {
		if err := p.validate(); err == nil {
			t.Errorf("parameters %+v accepted", p)
		}
	}
}

func TestTrivialBlockDegree(t *testing.T) {
	sk, _ := testServerKey(t, ParamMessage2Carry2)

	for _, v := range []uint64{0, 1, 3, 7, 15} {
		b, err := sk.TrivialBlock(v)
		if err != nil {
			t.Fatalf("TrivialBlock(%d): %v", v, err)
		}
		if b.Degree != v {
			t.Errorf("TrivialBlock(%d): degree %d, want %d", v, b.Degree, v)
		}
	}

	// Degree 0 marks a provable zero; it is what lets the zero-out path
	// skip a trivially zero block without a bootstrap.
	zero, err := sk.TrivialBlock(0)
	if err != nil {
		t.Fatalf("TrivialBlock(0): %v", err)
	}
	if zero.Degree != 0 {
		t.Errorf("trivial zero degree = %d, want 0", zero.Degree)
	}
}

func TestUncheckedBlockArithmeticDegrees(t *testing.T) {
	sk, _ := testServerKey(t, ParamMessage2Carry2)

	a := freshBlock(sk, 2)
	b := freshBlock(sk, 3)

	if err := sk.uncheckedAddAssign(a, b); err != nil {
		t.Fatalf("add: %v", err)
	}
	if a.Degree != 6 {
		t.Errorf("add degree = %d, want 6", a.Degree)
	}
	if got := a.Payload.(*plainPayload).value; got != 5 {
		t.Errorf("add value = %d, want 5", got)
	}

	c := freshBlock(sk, 1)
	if err := sk.uncheckedScalarAddAssign(c, 2); err != nil {
		t.Fatalf("scalar add: %v", err)
	}
	if c.Degree != 5 {
		t.Errorf("scalar add degree = %d, want 5", c.Degree)
	}

	d := freshBlock(sk, 2)
	if err := sk.uncheckedScalarMulAssign(d, 3); err != nil {
		t.Fatalf("scalar mul: %v", err)
	}
	if d.Degree != 9 {
		t.Errorf("scalar mul degree = %d, want 9", d.Degree)
	}
	if got := d.Payload.(*plainPayload).value; got != 6 {
		t.Errorf("scalar mul value = %d, want 6", got)
	}
}

func TestScalarAddZeroIsFree(t *testing.T) {
	sk, _ := testServerKey(t, ParamMessage2Carry2)

	b := freshBlock(sk, 2)
	before := b.Payload
	if err := sk.uncheckedScalarAddAssign(b, 0); err != nil {
		t.Fatalf("scalar add 0: %v", err)
	}
	if b.Payload != before {
		t.Error("adding 0 replaced the payload")
	}
	if b.Degree != sk.params.MessageModulus-1 {
		t.Errorf("adding 0 changed the degree to %d", b.Degree)
	}
}

func TestDigitDecomposeRecompose(t *testing.T) {
	for _, v := range []uint64{0, 1, 13, 200, 255} {
		digits := decomposeUnsigned(v, 4, 4)
		if got := recomposeUnsigned(digits, 4); got != v {
			t.Errorf("recompose(decompose(%d)) = %d", v, got)
		}
	}
	// Values past base^n wrap, matching radix arithmetic.
	digits := decomposeUnsigned(256+13, 4, 4)
	if got := recomposeUnsigned(digits, 4); got != 13 {
		t.Errorf("recompose of wrapped 269 = %d, want 13", got)
	}
}

func TestBooleanBlockRejectsWideDegree(t *testing.T) {
	sk, _ := testServerKey(t, ParamMessage2Carry2)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for degree > 1")
		}
	}()
	NewBooleanBlock(freshBlock(sk, 2)) // fresh degree is 3
}
