// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fheint

import "fmt"

// IfThenElse returns a new ciphertext that encrypts the same value as
// trueCt when condition encrypts 1, and as falseCt when it encrypts 0.
//
// The result encrypts the same value as one of the inputs but is never that
// input's encryption. Operands with pending carries are normalized on
// private copies; the caller's ciphertexts are never mutated.
func (sk *ServerKey) IfThenElse(condition *BooleanBlock, trueCt, falseCt IntegerCiphertext) (IntegerCiphertext, error) {
	var t, f IntegerCiphertext
	err := join(
		func() (err error) { t, err = sk.fullPropagateClone(trueCt); return },
		func() (err error) { f, err = sk.fullPropagateClone(falseCt); return },
	)
	if err != nil {
		return nil, err
	}
	return sk.UncheckedIfThenElse(condition, t, f)
}

// Select is another name for IfThenElse.
func (sk *ServerKey) Select(condition *BooleanBlock, trueCt, falseCt IntegerCiphertext) (IntegerCiphertext, error) {
	return sk.IfThenElse(condition, trueCt, falseCt)
}

// Cmux is another name for IfThenElse.
func (sk *ServerKey) Cmux(condition *BooleanBlock, trueCt, falseCt IntegerCiphertext) (IntegerCiphertext, error) {
	return sk.IfThenElse(condition, trueCt, falseCt)
}

// UncheckedIfThenElse is IfThenElse without the empty-carry normalization.
// The caller is responsible for having validated that both operands hold no
// pending carries.
func (sk *ServerKey) UncheckedIfThenElse(condition *BooleanBlock, trueCt, falseCt IntegerCiphertext) (IntegerCiphertext, error) {
	return sk.uncheckedProgrammableIfThenElse(condition.block, trueCt, falseCt,
		func(x uint64) bool { return x == 1 }, true)
}

// SmartIfThenElse is IfThenElse with in-place normalization: operands whose
// carries are not empty are refreshed before selection, as an observable
// side effect. The returned flag reports whether any refresh occurred, so
// callers can account for the extra bootstraps deterministically.
func (sk *ServerKey) SmartIfThenElse(condition *BooleanBlock, trueCt, falseCt IntegerCiphertext) (IntegerCiphertext, bool, error) {
	refreshed := false
	if !condition.block.CarryIsEmpty() {
		if err := sk.MessageExtractAssign(condition.block); err != nil {
			return nil, false, err
		}
		refreshed = true
	}
	for _, ct := range []IntegerCiphertext{trueCt, falseCt} {
		if !ct.BlockCarriesAreEmpty() {
			refreshed = true
		}
	}
	err := join(
		func() error {
			if trueCt.BlockCarriesAreEmpty() {
				return nil
			}
			return sk.FullPropagateAssign(trueCt)
		},
		func() error {
			if falseCt.BlockCarriesAreEmpty() {
				return nil
			}
			return sk.FullPropagateAssign(falseCt)
		},
	)
	if err != nil {
		return nil, false, err
	}
	out, err := sk.UncheckedIfThenElse(condition, trueCt, falseCt)
	return out, refreshed, err
}

// uncheckedProgrammableIfThenElse selects between trueCt and falseCt based
// on pred applied to the condition block's plaintext: the result is trueCt
// where pred holds and falseCt where it does not.
//
// The two branches are zeroed out concurrently and joined before the
// block-wise combine: exactly one side is non-zero per block, so the
// combine is a plain addition. When cleanMessage is false the final message
// extraction is skipped; that is the one documented low-level escape hatch,
// permitted only when the caller immediately applies its own table-based
// operation and has validated that the combined degree still fits the
// budget.
func (sk *ServerKey) uncheckedProgrammableIfThenElse(
	conditionBlock *Block,
	trueCt, falseCt IntegerCiphertext,
	pred func(uint64) bool,
	cleanMessage bool,
) (IntegerCiphertext, error) {
	if len(trueCt.Blocks()) != len(falseCt.Blocks()) {
		panic(fmt.Sprintf("fheint: if-then-else over %d and %d blocks",
			len(trueCt.Blocks()), len(falseCt.Blocks())))
	}

	invertedPred := func(x uint64) bool { return !pred(x) }

	var kept, masked IntegerCiphertext
	err := join(
		func() error {
			c := trueCt.Clone()
			if err := sk.ZeroOutIf(c, conditionBlock, invertedPred); err != nil {
				return fmt.Errorf("zero out true branch: %w", err)
			}
			kept = c
			return nil
		},
		func() error {
			c := falseCt.Clone()
			if err := sk.ZeroOutIf(c, conditionBlock, pred); err != nil {
				return fmt.Errorf("zero out false branch: %w", err)
			}
			masked = c
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	falseBlocks := masked.Blocks()
	if cleanMessage {
		err = sk.parallelForEachBlock(kept.Blocks(), func(i int, b *Block) error {
			if err := sk.uncheckedAddAssign(b, falseBlocks[i]); err != nil {
				return err
			}
			return sk.MessageExtractAssign(b)
		})
	} else {
		// No bootstrap per block, so the fan-out is not worth a pool.
		for i, b := range kept.Blocks() {
			if err = sk.uncheckedAddAssign(b, falseBlocks[i]); err != nil {
				break
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return kept, nil
}

// SelectWithScalarFalse selects between a ciphertext true-value and a
// plaintext false-value. The scalar side costs nothing encrypted, so each
// result block is a single table lookup keyed on 2*block + condition
// instead of the double zero-out-and-add path.
func (sk *ServerKey) SelectWithScalarFalse(condition *BooleanBlock, trueCt *RadixCiphertext, falseValue uint64) (*RadixCiphertext, error) {
	t, err := sk.fullPropagateClone(trueCt)
	if err != nil {
		return nil, err
	}
	digits := decomposeUnsigned(falseValue, sk.params.MessageModulus, len(t.Blocks()))
	blocks, err := sk.uncheckedScalarSelectBlocks(condition.block, t.Blocks(), digits)
	if err != nil {
		return nil, err
	}
	return &RadixCiphertext{blocks: blocks}, nil
}

// SelectWithScalarTrue selects between a plaintext true-value and a
// ciphertext false-value. Implemented by negating the selector and swapping
// operands; boolean negation is a single cheap table lookup.
func (sk *ServerKey) SelectWithScalarTrue(condition *BooleanBlock, trueValue uint64, falseCt *RadixCiphertext) (*RadixCiphertext, error) {
	inverted, err := sk.BooleanBitNot(condition)
	if err != nil {
		return nil, err
	}
	return sk.SelectWithScalarFalse(inverted, falseCt, trueValue)
}

// SignedSelectWithScalarFalse is SelectWithScalarFalse for signed radix
// ciphertexts; the scalar is decomposed in two's complement.
func (sk *ServerKey) SignedSelectWithScalarFalse(condition *BooleanBlock, trueCt *SignedRadixCiphertext, falseValue int64) (*SignedRadixCiphertext, error) {
	t, err := sk.fullPropagateClone(trueCt)
	if err != nil {
		return nil, err
	}
	digits := decomposeSigned(falseValue, sk.params.MessageModulus, len(t.Blocks()), sk.params.MessageBits())
	blocks, err := sk.uncheckedScalarSelectBlocks(condition.block, t.Blocks(), digits)
	if err != nil {
		return nil, err
	}
	return &SignedRadixCiphertext{blocks: blocks}, nil
}

// SignedSelectWithScalarTrue is SelectWithScalarTrue for signed radix
// ciphertexts.
func (sk *ServerKey) SignedSelectWithScalarTrue(condition *BooleanBlock, trueValue int64, falseCt *SignedRadixCiphertext) (*SignedRadixCiphertext, error) {
	inverted, err := sk.BooleanBitNot(condition)
	if err != nil {
		return nil, err
	}
	return sk.SignedSelectWithScalarFalse(inverted, falseCt, trueValue)
}

// uncheckedScalarSelectBlocks pairs each payload block with its scalar
// digit: result block i is a lookup on 2*block_i + condition returning the
// block's digit when the condition bit is 1 and the scalar's digit when it
// is 0.
func (sk *ServerKey) uncheckedScalarSelectBlocks(conditionBlock *Block, blocks []*Block, scalarDigits []uint64) ([]*Block, error) {
	msgMod := sk.params.MessageModulus
	for i, b := range blocks {
		if b.Degree*2 >= b.TotalModulus() {
			panic(fmt.Sprintf("fheint: scalar select block %d degree %d cannot be shifted", i, b.Degree))
		}
	}

	luts := make([]*LookupTable, len(blocks))
	for i := range blocks {
		digit := scalarDigits[i]
		luts[i] = sk.GenerateLookupTable(func(packed uint64) uint64 {
			block := packed / 2
			condition := packed % 2
			if condition == 1 {
				return block % msgMod
			}
			return digit
		})
	}

	out := make([]*Block, len(blocks))
	err := sk.parallelForEachBlock(blocks, func(i int, b *Block) error {
		result := b.Clone()
		if err := sk.uncheckedScalarMulAssign(result, 2); err != nil {
			return err
		}
		if err := sk.uncheckedAddAssign(result, conditionBlock); err != nil {
			return err
		}
		if err := sk.ApplyLookupTableAssign(result, luts[i]); err != nil {
			return err
		}
		out[i] = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ScalarSelect selects between two plaintext values into a fresh radix
// ciphertext of numBlocks digits. Both scalars are decomposed into digits
// and the per-block selection functions are batched through the many-output
// evaluator, so only the selector is bootstrapped, once per chunk.
func (sk *ServerKey) ScalarSelect(condition *BooleanBlock, trueValue, falseValue uint64, numBlocks int) (*RadixCiphertext, error) {
	trueDigits := decomposeUnsigned(trueValue, sk.params.MessageModulus, numBlocks)
	falseDigits := decomposeUnsigned(falseValue, sk.params.MessageModulus, numBlocks)
	blocks, err := sk.scalarSelectBlocks(condition, trueDigits, falseDigits)
	if err != nil {
		return nil, err
	}
	return &RadixCiphertext{blocks: blocks}, nil
}

// SignedScalarSelect is ScalarSelect over two's-complement scalars.
func (sk *ServerKey) SignedScalarSelect(condition *BooleanBlock, trueValue, falseValue int64, numBlocks int) (*SignedRadixCiphertext, error) {
	bitsPerDigit := sk.params.MessageBits()
	trueDigits := decomposeSigned(trueValue, sk.params.MessageModulus, numBlocks, bitsPerDigit)
	falseDigits := decomposeSigned(falseValue, sk.params.MessageModulus, numBlocks, bitsPerDigit)
	blocks, err := sk.scalarSelectBlocks(condition, trueDigits, falseDigits)
	if err != nil {
		return nil, err
	}
	return &SignedRadixCiphertext{blocks: blocks}, nil
}

func (sk *ServerKey) scalarSelectBlocks(condition *BooleanBlock, trueDigits, falseDigits []uint64) ([]*Block, error) {
	fns := make([]func(uint64) uint64, len(trueDigits))
	for i := range fns {
		t, f := trueDigits[i], falseDigits[i]
		fns[i] = func(c uint64) uint64 {
			if c == 1 {
				return t
			}
			return f
		}
	}

	// One evaluation per chunk of at most MaxManyFunctions functions,
	// results concatenated in input order.
	maxFns := sk.MaxManyFunctions()
	var luts []*ManyLookupTable
	for start := 0; start < len(fns); start += maxFns {
		end := min(start+maxFns, len(fns))
		luts = append(luts, sk.GenerateManyLookupTable(fns[start:end]))
	}

	chunks := make([][]*Block, len(luts))
	err := sk.parallelFor(len(luts), func(i int) error {
		out, err := sk.ApplyManyLookupTable(condition.block, luts[i])
		if err != nil {
			return err
		}
		chunks[i] = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	blocks := make([]*Block, 0, len(fns))
	for _, c := range chunks {
		blocks = append(blocks, c...)
	}
	return blocks, nil
}

// IfThenElseBool selects between two boolean blocks. Booleans need only a
// bit of state, so this fast path works directly on single blocks with the
// identity result = (c AND t) OR (NOT c AND f): two shift-add-table
// products joined concurrently, one addition, one parity cleanup.
func (sk *ServerKey) IfThenElseBool(condition, trueCt, falseCt *BooleanBlock) (*BooleanBlock, error) {
	if sk.params.TotalModulus() < 4 {
		panic("fheint: boolean if-then-else needs at least 2 bits of plaintext")
	}

	zeroLUT := sk.GenerateLookupTable(func(x uint64) uint64 {
		if (x>>1)&1 == 1 {
			return x & 1
		}
		return 0
	})

	negated, err := sk.BooleanBitNot(condition)
	if err != nil {
		return nil, err
	}

	var lhs, rhs *Block
	err = join(
		func() error {
			b := condition.block.Clone()
			if err := sk.uncheckedScalarMulAssign(b, 2); err != nil {
				return err
			}
			if err := sk.uncheckedAddAssign(b, trueCt.block); err != nil {
				return err
			}
			if err := sk.ApplyLookupTableAssign(b, zeroLUT); err != nil {
				return err
			}
			lhs = b
			return nil
		},
		func() error {
			b := negated.block.Clone()
			if err := sk.uncheckedScalarMulAssign(b, 2); err != nil {
				return err
			}
			if err := sk.uncheckedAddAssign(b, falseCt.block); err != nil {
				return err
			}
			if err := sk.ApplyLookupTableAssign(b, zeroLUT); err != nil {
				return err
			}
			rhs = b
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	if err := sk.uncheckedAddAssign(lhs, rhs); err != nil {
		return nil, err
	}
	cleanLUT := sk.GenerateLookupTable(func(x uint64) uint64 { return x % 2 })
	if err := sk.ApplyLookupTableAssign(lhs, cleanLUT); err != nil {
		return nil, err
	}
	return NewBooleanBlock(lhs), nil
}
