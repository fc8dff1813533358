// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fheint

import "fmt"

// UncheckedCrtScalarAdd adds a plaintext scalar to a CRT ciphertext without
// checking the noise budget; correctness is the caller's obligation. The
// result is returned as a new ciphertext.
func (sk *ServerKey) UncheckedCrtScalarAdd(ct *CrtCiphertext, scalar uint64) (*CrtCiphertext, error) {
	result := ct.Clone()
	if err := sk.UncheckedCrtScalarAddAssign(result, scalar); err != nil {
		return nil, err
	}
	return result, nil
}

// UncheckedCrtScalarAddAssign adds a plaintext scalar to ct in place without
// checking the noise budget. The scalar's CRT representation is added to the
// ciphertext: scalar mod m_i into channel i. No cross-channel carry exists
// by construction.
func (sk *ServerKey) UncheckedCrtScalarAddAssign(ct *CrtCiphertext, scalar uint64) error {
	for i, b := range ct.blocks {
		if err := sk.uncheckedScalarAddAssign(b, scalar%ct.moduli[i]); err != nil {
			return fmt.Errorf("crt channel %d: %w", i, err)
		}
	}
	return nil
}

// CheckedCrtScalarAdd adds a plaintext scalar to a CRT ciphertext after
// validating every channel's budget. On a capacity failure the CheckError is
// returned and ct is left untouched.
func (sk *ServerKey) CheckedCrtScalarAdd(ct *CrtCiphertext, scalar uint64) (*CrtCiphertext, error) {
	if err := sk.IsCrtScalarAddPossible(ct, scalar); err != nil {
		return nil, err
	}
	return sk.UncheckedCrtScalarAdd(ct, scalar)
}

// CheckedCrtScalarAddAssign is CheckedCrtScalarAdd with the result assigned
// to ct. On a capacity failure ct is not modified.
func (sk *ServerKey) CheckedCrtScalarAddAssign(ct *CrtCiphertext, scalar uint64) error {
	if err := sk.IsCrtScalarAddPossible(ct, scalar); err != nil {
		return err
	}
	return sk.UncheckedCrtScalarAddAssign(ct, scalar)
}

// SmartCrtScalarAdd adds a plaintext scalar to a CRT ciphertext, refreshing
// ct first when its budget would overflow. The refresh mutates ct as an
// observable side effect; the returned flag reports whether it happened.
// A refreshed channel always has minimal degree, so at most one refresh is
// ever needed and the operation never fails from capacity alone.
func (sk *ServerKey) SmartCrtScalarAdd(ct *CrtCiphertext, scalar uint64) (*CrtCiphertext, bool, error) {
	refreshed, err := sk.smartCrtScalarAddPrepare(ct, scalar)
	if err != nil {
		return nil, false, err
	}
	result, err := sk.UncheckedCrtScalarAdd(ct, scalar)
	return result, refreshed, err
}

// SmartCrtScalarAddAssign is SmartCrtScalarAdd with the result assigned to ct.
func (sk *ServerKey) SmartCrtScalarAddAssign(ct *CrtCiphertext, scalar uint64) (bool, error) {
	refreshed, err := sk.smartCrtScalarAddPrepare(ct, scalar)
	if err != nil {
		return false, err
	}
	return refreshed, sk.UncheckedCrtScalarAddAssign(ct, scalar)
}

func (sk *ServerKey) smartCrtScalarAddPrepare(ct *CrtCiphertext, scalar uint64) (bool, error) {
	if sk.IsCrtScalarAddPossible(ct, scalar) == nil {
		return false, nil
	}
	if err := sk.FullExtractMessageAssign(ct); err != nil {
		return false, err
	}
	if err := sk.IsCrtScalarAddPossible(ct, scalar); err != nil {
		// A fresh channel has degree below its basis modulus, so this
		// only trips when the scalar residue alone exceeds a budget.
		return true, fmt.Errorf("crt scalar add after refresh: %w", err)
	}
	return true, nil
}

// FullExtractMessageAssign refreshes every residue channel of ct back to its
// canonical degree < m_i regime, one bootstrap per channel, in parallel.
func (sk *ServerKey) FullExtractMessageAssign(ct *CrtCiphertext) error {
	luts := make([]*LookupTable, len(ct.moduli))
	for i, m := range ct.moduli {
		luts[i] = sk.GenerateLookupTable(func(x uint64) uint64 { return x % m })
	}
	return sk.parallelForEachBlock(ct.blocks, func(i int, b *Block) error {
		if err := sk.ApplyLookupTableAssign(b, luts[i]); err != nil {
			return fmt.Errorf("extract message of crt channel %d: %w", i, err)
		}
		return nil
	})
}
