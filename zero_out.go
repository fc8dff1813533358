// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fheint

import "fmt"

// ZeroOutIfConditionIsFalse zeroes every block of ct if conditionBlock
// encrypts 0, and leaves ct unchanged otherwise. conditionBlock must
// encrypt a boolean value.
func (sk *ServerKey) ZeroOutIfConditionIsFalse(ct IntegerCiphertext, conditionBlock *Block) error {
	if conditionBlock.Degree > 1 {
		panic(fmt.Sprintf("fheint: condition block degree %d exceeds 1", conditionBlock.Degree))
	}
	return sk.ZeroOutIfConditionEquals(ct, conditionBlock, 0)
}

// ZeroOutIfConditionEquals zeroes every block of ct if conditionBlock
// encrypts value, and leaves ct unchanged otherwise.
func (sk *ServerKey) ZeroOutIfConditionEquals(ct IntegerCiphertext, conditionBlock *Block, value uint64) error {
	if value >= conditionBlock.MessageModulus {
		panic(fmt.Sprintf("fheint: condition value %d outside message modulus %d", value, conditionBlock.MessageModulus))
	}
	return sk.ZeroOutIf(ct, conditionBlock, func(x uint64) bool { return x == value })
}

// ZeroOutIf zeroes every block of ct if pred holds on the plaintext of
// conditionBlock, and leaves ct unchanged otherwise, without decrypting.
//
// When the condition is provably the constant 0 (degree 0), pred(0) is
// resolved directly and no bootstrap is spent. Otherwise a bivariate table
// pairing each block with the shared condition is applied in parallel,
// skipping blocks that are already provably zero.
func (sk *ServerKey) ZeroOutIf(ct IntegerCiphertext, conditionBlock *Block, pred func(uint64) bool) error {
	if conditionBlock.Degree >= conditionBlock.MessageModulus {
		panic(fmt.Sprintf("fheint: condition block degree %d not below message modulus %d",
			conditionBlock.Degree, conditionBlock.MessageModulus))
	}

	if conditionBlock.Degree == 0 {
		// The block encrypts 0, and only 0.
		if pred(0) {
			return sk.CreateTrivialZeroAssign(ct)
		}
		return nil
	}

	lut := sk.GenerateBivariateLookupTable(func(block, condition uint64) uint64 {
		if pred(condition) {
			return 0
		}
		return block
	})

	return sk.parallelForEachBlock(ct.Blocks(), func(i int, b *Block) error {
		if b.Degree == 0 {
			return nil
		}
		if err := sk.ApplyBivariateLookupTableAssign(b, conditionBlock, lut); err != nil {
			return fmt.Errorf("zero out block %d: %w", i, err)
		}
		return nil
	})
}
