// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fheint

import "fmt"

// IntegerCiphertext is the capability interface shared by the radix
// ciphertext shapes. The conditional-select engine and the zero-out
// primitive are written once against it; each shape is a tagged structural
// type rather than a subclass.
type IntegerCiphertext interface {
	// Blocks returns the ciphertext's blocks, little-endian.
	// Mutating the returned blocks mutates the ciphertext.
	Blocks() []*Block
	// FromBlocks builds a new ciphertext of the same concrete shape
	// around the given blocks.
	FromBlocks(blocks []*Block) IntegerCiphertext
	// BlockCarriesAreEmpty reports whether every block's degree is below
	// its message modulus, i.e. no carry propagation is pending.
	BlockCarriesAreEmpty() bool
	// Clone returns a deep copy preserving the concrete shape.
	Clone() IntegerCiphertext
}

func carriesAreEmpty(blocks []*Block) bool {
	for _, b := range blocks {
		if !b.CarryIsEmpty() {
			return false
		}
	}
	return true
}

func cloneBlocks(blocks []*Block) []*Block {
	out := make([]*Block, len(blocks))
	for i, b := range blocks {
		out[i] = b.Clone()
	}
	return out
}

// RadixCiphertext is an unsigned integer stored as little-endian digits in
// base MessageModulus, one digit per block.
type RadixCiphertext struct {
	blocks []*Block
}

// NewRadixCiphertext builds a radix ciphertext around existing blocks.
func NewRadixCiphertext(blocks []*Block) *RadixCiphertext {
	return &RadixCiphertext{blocks: blocks}
}

func (ct *RadixCiphertext) Blocks() []*Block { return ct.blocks }

func (ct *RadixCiphertext) FromBlocks(blocks []*Block) IntegerCiphertext {
	return &RadixCiphertext{blocks: blocks}
}

func (ct *RadixCiphertext) BlockCarriesAreEmpty() bool {
	return carriesAreEmpty(ct.blocks)
}

func (ct *RadixCiphertext) Clone() IntegerCiphertext {
	return &RadixCiphertext{blocks: cloneBlocks(ct.blocks)}
}

// SignedRadixCiphertext is a signed integer stored like RadixCiphertext,
// with the most significant block interpreted via two's complement.
type SignedRadixCiphertext struct {
	blocks []*Block
}

// NewSignedRadixCiphertext builds a signed radix ciphertext around existing blocks.
func NewSignedRadixCiphertext(blocks []*Block) *SignedRadixCiphertext {
	return &SignedRadixCiphertext{blocks: blocks}
}

func (ct *SignedRadixCiphertext) Blocks() []*Block { return ct.blocks }

func (ct *SignedRadixCiphertext) FromBlocks(blocks []*Block) IntegerCiphertext {
	return &SignedRadixCiphertext{blocks: blocks}
}

func (ct *SignedRadixCiphertext) BlockCarriesAreEmpty() bool {
	return carriesAreEmpty(ct.blocks)
}

func (ct *SignedRadixCiphertext) Clone() IntegerCiphertext {
	return &SignedRadixCiphertext{blocks: cloneBlocks(ct.blocks)}
}

// CrtCiphertext is an integer stored as residues modulo a pairwise-coprime
// basis, one residue per block. Blocks are mutually independent: no
// inter-block carry exists, so scalar arithmetic decomposes per channel.
// The value is determined modulo the product of the basis and is
// reconstructed by Chinese Remainder recombination in basis order.
type CrtCiphertext struct {
	blocks []*Block
	moduli []uint64
}

// NewCrtCiphertext builds a CRT ciphertext around existing blocks and their basis.
// Panics if blocks and moduli differ in length.
func NewCrtCiphertext(blocks []*Block, moduli []uint64) *CrtCiphertext {
	if len(blocks) != len(moduli) {
		panic(fmt.Sprintf("fheint: %d blocks for %d CRT moduli", len(blocks), len(moduli)))
	}
	return &CrtCiphertext{blocks: blocks, moduli: moduli}
}

// Blocks returns the residue blocks in basis order.
func (ct *CrtCiphertext) Blocks() []*Block { return ct.blocks }

// Moduli returns the CRT basis in the order used to build the ciphertext.
func (ct *CrtCiphertext) Moduli() []uint64 { return ct.moduli }

// Clone returns a deep copy.
func (ct *CrtCiphertext) Clone() *CrtCiphertext {
	moduli := make([]uint64, len(ct.moduli))
	copy(moduli, ct.moduli)
	return &CrtCiphertext{blocks: cloneBlocks(ct.blocks), moduli: moduli}
}

// decomposeUnsigned splits value into n little-endian digits in the given base.
func decomposeUnsigned(value uint64, base uint64, n int) []uint64 {
	digits := make([]uint64, n)
	for i := 0; i < n; i++ {
		digits[i] = value % base
		value /= base
	}
	return digits
}

// decomposeSigned sign-extends value to n digits of the given power-of-two
// base and returns the two's-complement digit expansion.
func decomposeSigned(value int64, base uint64, n int, bitsPerDigit int) []uint64 {
	width := uint(n * bitsPerDigit)
	u := uint64(value)
	if width < 64 {
		u &= (uint64(1) << width) - 1
	}
	return decomposeUnsigned(u, base, n)
}

// recomposeUnsigned folds little-endian digits back into a value,
// reducing modulo base^n.
func recomposeUnsigned(digits []uint64, base uint64) uint64 {
	var value, mul uint64 = 0, 1
	for _, d := range digits {
		value += d * mul
		mul *= base
	}
	return value
}

// NewTrivialRadix creates a noiseless radix ciphertext of numBlocks digits
// encrypting value.
func (sk *ServerKey) NewTrivialRadix(value uint64, numBlocks int) (*RadixCiphertext, error) {
	digits := decomposeUnsigned(value, sk.params.MessageModulus, numBlocks)
	blocks, err := sk.trivialBlocks(digits)
	if err != nil {
		return nil, err
	}
	return &RadixCiphertext{blocks: blocks}, nil
}

// NewTrivialZeroRadix creates a noiseless all-zero radix ciphertext.
func (sk *ServerKey) NewTrivialZeroRadix(numBlocks int) (*RadixCiphertext, error) {
	return sk.NewTrivialRadix(0, numBlocks)
}

// NewTrivialSignedRadix creates a noiseless signed radix ciphertext of
// numBlocks digits encrypting value in two's complement.
func (sk *ServerKey) NewTrivialSignedRadix(value int64, numBlocks int) (*SignedRadixCiphertext, error) {
	digits := decomposeSigned(value, sk.params.MessageModulus, numBlocks, sk.params.MessageBits())
	blocks, err := sk.trivialBlocks(digits)
	if err != nil {
		return nil, err
	}
	return &SignedRadixCiphertext{blocks: blocks}, nil
}

// NewTrivialCrt creates a noiseless CRT ciphertext of value over the given
// pairwise-coprime basis. Each block's message modulus is its basis modulus.
func (sk *ServerKey) NewTrivialCrt(value uint64, moduli []uint64) (*CrtCiphertext, error) {
	total := sk.params.TotalModulus()
	blocks := make([]*Block, len(moduli))
	for i, m := range moduli {
		if m < 2 || m >= total {
			return nil, fmt.Errorf("crt modulus %d out of range [2, %d)", m, total)
		}
		b, err := sk.TrivialBlock(value % m)
		if err != nil {
			return nil, err
		}
		b.MessageModulus = m
		b.CarryModulus = total / m
		blocks[i] = b
	}
	basis := make([]uint64, len(moduli))
	copy(basis, moduli)
	return &CrtCiphertext{blocks: blocks, moduli: basis}, nil
}

func (sk *ServerKey) trivialBlocks(digits []uint64) ([]*Block, error) {
	blocks := make([]*Block, len(digits))
	for i, d := range digits {
		b, err := sk.TrivialBlock(d)
		if err != nil {
			return nil, err
		}
		blocks[i] = b
	}
	return blocks, nil
}

// CreateTrivialZeroAssign overwrites every block of ct with a noiseless
// zero, preserving each block's modulus pair.
func (sk *ServerKey) CreateTrivialZeroAssign(ct IntegerCiphertext) error {
	for _, b := range ct.Blocks() {
		p, err := sk.backend.Trivial(0)
		if err != nil {
			return fmt.Errorf("trivial zero assign: %w", err)
		}
		b.Payload = p
		b.Degree = 0
	}
	return nil
}

// CrtRecompose reconstructs the value represented by residues over the given
// basis via Chinese Remainder recombination. The basis must be supplied in
// the same order used to build the ciphertext.
func CrtRecompose(residues, moduli []uint64) uint64 {
	if len(residues) != len(moduli) {
		panic(fmt.Sprintf("fheint: %d residues for %d moduli", len(residues), len(moduli)))
	}
	var product uint64 = 1
	for _, m := range moduli {
		product *= m
	}
	var value uint64
	for i, m := range moduli {
		q := product / m
		value = (value + (residues[i]%m)*q*modularInverse(q%m, m)) % product
	}
	return value
}

// modularInverse computes a^-1 mod m for coprime a, m by extended Euclid.
func modularInverse(a, m uint64) uint64 {
	if m == 1 {
		return 0
	}
	var t, newT int64 = 0, 1
	var r, newR = int64(m), int64(a % m)
	for newR != 0 {
		q := r / newR
		t, newT = newT, t-q*newT
		r, newR = newR, r-q*newR
	}
	if t < 0 {
		t += int64(m)
	}
	return uint64(t)
}
