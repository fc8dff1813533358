// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fheint

import "fmt"

// LookupTable is the table form of a univariate plaintext function,
// consumable by the backend's bootstrap primitive. A table built once is
// reusable across every block sharing the server key's modulus pair.
type LookupTable struct {
	// Entries maps each plaintext in [0, TotalModulus) to its output.
	Entries []uint64
	// OutputDegree is the largest entry: the degree of any block the
	// bootstrap produces from this table.
	OutputDegree uint64
}

// GenerateLookupTable builds the table of f over the full block plaintext
// space. Outputs are reduced modulo the total modulus.
func (sk *ServerKey) GenerateLookupTable(f func(uint64) uint64) *LookupTable {
	total := sk.params.TotalModulus()
	lut := &LookupTable{Entries: make([]uint64, total)}
	for x := uint64(0); x < total; x++ {
		y := f(x) % total
		lut.Entries[x] = y
		if y > lut.OutputDegree {
			lut.OutputDegree = y
		}
	}
	return lut
}

// BivariateLookupTable is the table form of a two-input plaintext function.
// The two inputs are packed into one bootstrap input as
// lhs*MessageModulus + rhs, which requires rhs to hold no pending carry.
type BivariateLookupTable struct {
	lut *LookupTable
}

// GenerateBivariateLookupTable builds the table of f(lhs, rhs) packed over
// the shared message modulus.
func (sk *ServerKey) GenerateBivariateLookupTable(f func(lhs, rhs uint64) uint64) *BivariateLookupTable {
	msgMod := sk.params.MessageModulus
	return &BivariateLookupTable{
		lut: sk.GenerateLookupTable(func(x uint64) uint64 {
			return f(x/msgMod, x%msgMod)
		}),
	}
}

// ManyLookupTable packs several univariate functions so a single bootstrap
// of one input block yields one output block per function.
type ManyLookupTable struct {
	// Tables holds one table per packed function, in input order.
	Tables []*LookupTable
}

// MaxManyFunctions returns how many functions one many-output evaluation
// can extract when the input is a boolean block.
func (sk *ServerKey) MaxManyFunctions() int {
	return int(sk.params.TotalModulus() / 2)
}

// GenerateManyLookupTable packs fns into one many-output table.
// Panics if fns exceeds the modulus budget for a boolean input.
func (sk *ServerKey) GenerateManyLookupTable(fns []func(uint64) uint64) *ManyLookupTable {
	if max := sk.MaxManyFunctions(); len(fns) > max {
		panic(fmt.Sprintf("fheint: %d functions exceed the many-output budget of %d", len(fns), max))
	}
	tables := make([]*LookupTable, len(fns))
	for i, f := range fns {
		tables[i] = sk.GenerateLookupTable(f)
	}
	return &ManyLookupTable{Tables: tables}
}

// ApplyLookupTableAssign bootstraps b through lut in place, resetting its
// degree to the table's output range.
func (sk *ServerKey) ApplyLookupTableAssign(b *Block, lut *LookupTable) error {
	p, err := sk.backend.Bootstrap(b.Payload, lut)
	if err != nil {
		return fmt.Errorf("apply lookup table: %w", err)
	}
	b.Payload = p
	b.Degree = lut.OutputDegree
	return nil
}

// ApplyLookupTable bootstraps b through lut into a new block.
func (sk *ServerKey) ApplyLookupTable(b *Block, lut *LookupTable) (*Block, error) {
	out := b.Clone()
	if err := sk.ApplyLookupTableAssign(out, lut); err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyBivariateLookupTableAssign bootstraps the packed pair (lhs, rhs)
// through lut, writing the result into lhs. rhs is read-only.
//
// Preconditions (programmer errors): rhs carries must be empty, and the
// packed degree lhs.Degree*MessageModulus + rhs.Degree must fit the budget.
func (sk *ServerKey) ApplyBivariateLookupTableAssign(lhs, rhs *Block, lut *BivariateLookupTable) error {
	msgMod := sk.params.MessageModulus
	if rhs.Degree >= msgMod {
		panic(fmt.Sprintf("fheint: bivariate rhs degree %d not below message modulus %d", rhs.Degree, msgMod))
	}
	if packed := lhs.Degree*msgMod + rhs.Degree; packed >= lhs.TotalModulus() {
		panic(fmt.Sprintf("fheint: bivariate packing degree %d exceeds budget %d", packed, lhs.TotalModulus()))
	}
	if err := sk.uncheckedScalarMulAssign(lhs, msgMod); err != nil {
		return err
	}
	if err := sk.uncheckedAddAssign(lhs, rhs); err != nil {
		return err
	}
	return sk.ApplyLookupTableAssign(lhs, lut.lut)
}

// ApplyManyLookupTable evaluates every function packed in lut against b with
// a single bootstrap call, returning one block per function in input order.
func (sk *ServerKey) ApplyManyLookupTable(b *Block, lut *ManyLookupTable) ([]*Block, error) {
	payloads, err := sk.backend.BootstrapMany(b.Payload, lut)
	if err != nil {
		return nil, fmt.Errorf("apply many lookup table: %w", err)
	}
	if len(payloads) != len(lut.Tables) {
		return nil, fmt.Errorf("apply many lookup table: backend returned %d outputs for %d tables",
			len(payloads), len(lut.Tables))
	}
	out := make([]*Block, len(payloads))
	for i, p := range payloads {
		out[i] = &Block{
			Payload:        p,
			Degree:         lut.Tables[i].OutputDegree,
			MessageModulus: sk.params.MessageModulus,
			CarryModulus:   sk.params.CarryModulus,
		}
	}
	return out, nil
}

// MessageExtractAssign collapses a block back into the canonical
// degree < MessageModulus regime with one bootstrap.
func (sk *ServerKey) MessageExtractAssign(b *Block) error {
	return sk.ApplyLookupTableAssign(b, sk.messageExtractLUT)
}

// BooleanBitNot returns the logical negation of a boolean block. A single
// cheap table lookup; the input is read-only.
func (sk *ServerKey) BooleanBitNot(c *BooleanBlock) (*BooleanBlock, error) {
	b, err := sk.ApplyLookupTable(c.block, sk.booleanNotLUT)
	if err != nil {
		return nil, err
	}
	return NewBooleanBlock(b), nil
}
