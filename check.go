// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fheint

import (
	"errors"
	"fmt"
)

// CheckError reports that an operation would push a block's degree past its
// noise budget. It names the offending operand and block so the caller can
// decide whether to refresh and retry.
type CheckError struct {
	// Op is the operation whose capacity check failed.
	Op string
	// BlockIndex is the index of the offending block within its ciphertext.
	BlockIndex int
	// Degree is the degree the operation would have produced.
	Degree uint64
	// MaxDegree is the block's noise budget, exclusive.
	MaxDegree uint64
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("%s: block %d would reach degree %d, exceeding the noise budget of %d",
		e.Op, e.BlockIndex, e.Degree, e.MaxDegree)
}

// IsCheckError reports whether err is a capacity CheckError.
func IsCheckError(err error) bool {
	var ce *CheckError
	return errors.As(err, &ce)
}

// isScalarAddPossible is the capacity predicate for adding a plaintext
// scalar (already reduced to the block's domain) to one block. Pure; no
// side effects.
func isScalarAddPossible(op string, index int, b *Block, scalar uint64) error {
	if d := b.Degree + scalar; d >= b.TotalModulus() {
		return &CheckError{Op: op, BlockIndex: index, Degree: d, MaxDegree: b.TotalModulus()}
	}
	return nil
}

// IsCrtScalarAddPossible checks whether scalar can be added to every residue
// channel of ct without exceeding any channel's budget.
func (sk *ServerKey) IsCrtScalarAddPossible(ct *CrtCiphertext, scalar uint64) error {
	for i, b := range ct.blocks {
		if err := isScalarAddPossible("crt scalar add", i, b, scalar%ct.moduli[i]); err != nil {
			return err
		}
	}
	return nil
}
