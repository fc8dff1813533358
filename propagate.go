// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fheint

import "fmt"

// FullPropagateAssign resolves every pending carry in a radix ciphertext,
// walking the blocks LSB to MSB. Each dirty block costs two bootstraps: one
// to extract the carry headed for the next block, one to collapse the block
// back below the message modulus. The walk is sequential because each
// block's carry feeds the next block's degree.
func (sk *ServerKey) FullPropagateAssign(ct IntegerCiphertext) error {
	var carry *Block
	for i, b := range ct.Blocks() {
		if carry != nil {
			if err := sk.uncheckedAddAssign(b, carry); err != nil {
				return fmt.Errorf("propagate carry into block %d: %w", i, err)
			}
			carry = nil
		}
		if b.CarryIsEmpty() {
			continue
		}
		c, err := sk.ApplyLookupTable(b, sk.carryExtractLUT)
		if err != nil {
			return fmt.Errorf("extract carry from block %d: %w", i, err)
		}
		if err := sk.MessageExtractAssign(b); err != nil {
			return fmt.Errorf("extract message of block %d: %w", i, err)
		}
		carry = c
	}
	// A final carry out of the most significant block is discarded:
	// radix arithmetic wraps modulo base^n.
	return nil
}

// fullPropagateClone returns ct itself when its carries are already empty,
// or a propagated private copy otherwise. Non-assigning entry points use it
// so callers' operands are never mutated.
func (sk *ServerKey) fullPropagateClone(ct IntegerCiphertext) (IntegerCiphertext, error) {
	if ct.BlockCarriesAreEmpty() {
		return ct, nil
	}
	c := ct.Clone()
	if err := sk.FullPropagateAssign(c); err != nil {
		return nil, err
	}
	return c, nil
}
