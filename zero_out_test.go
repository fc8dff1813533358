// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fheint

import (
	"reflect"
	"testing"
)

func TestZeroOutIfConditionIsFalse(t *testing.T) {
	sk, _ := testServerKey(t, ParamMessage2Carry2)

	t.Run("condition true keeps value", func(t *testing.T) {
		ct := freshRadix(sk, 13, 3)
		cond := freshBoolean(sk, true)
		if err := sk.ZeroOutIfConditionIsFalse(ct, cond.AsBlock()); err != nil {
			t.Fatalf("zero out: %v", err)
		}
		if got := decryptRadix(sk, ct); got != 13 {
			t.Errorf("value = %d, want 13", got)
		}
	})

	t.Run("condition false zeroes", func(t *testing.T) {
		ct := freshRadix(sk, 13, 3)
		cond := freshBoolean(sk, false)
		if err := sk.ZeroOutIfConditionIsFalse(ct, cond.AsBlock()); err != nil {
			t.Fatalf("zero out: %v", err)
		}
		if got := decryptRadix(sk, ct); got != 0 {
			t.Errorf("value = %d, want 0", got)
		}
	})
}

func TestZeroOutIsIdempotent(t *testing.T) {
	sk, _ := testServerKey(t, ParamMessage2Carry2)

	ct := freshRadix(sk, 9, 2)
	cond := freshBoolean(sk, false)
	for i := 0; i < 2; i++ {
		if err := sk.ZeroOutIfConditionIsFalse(ct, cond.AsBlock()); err != nil {
			t.Fatalf("round %d: %v", i, err)
		}
	}
	if got := decryptRadix(sk, ct); got != 0 {
		t.Errorf("value = %d, want 0", got)
	}
}

func TestZeroOutTrivialConditionCostsNothing(t *testing.T) {
	sk, be := testServerKey(t, ParamMessage2Carry2)

	// A degree-0 condition block provably encrypts 0; the predicate is
	// resolved in the clear and no bootstrap is spent.
	zero, err := sk.TrivialBlock(0)
	if err != nil {
		t.Fatalf("trivial: %v", err)
	}

	t.Run("statically zeroed", func(t *testing.T) {
		ct := freshRadix(sk, 7, 2)
		before := be.bootstraps.Load()
		if err := sk.ZeroOutIfConditionIsFalse(ct, zero); err != nil {
			t.Fatalf("zero out: %v", err)
		}
		if got := be.bootstraps.Load() - before; got != 0 {
			t.Errorf("spent %d bootstraps, want 0", got)
		}
		if got := decryptRadix(sk, ct); got != 0 {
			t.Errorf("value = %d, want 0", got)
		}
		for i, b := range ct.Blocks() {
			if b.Degree != 0 {
				t.Errorf("block %d degree = %d, want 0", i, b.Degree)
			}
		}
	})

	t.Run("statically kept", func(t *testing.T) {
		ct := freshRadix(sk, 7, 2)
		snapshot := ct.Clone()
		before := be.bootstraps.Load()
		if err := sk.ZeroOutIfConditionEquals(ct, zero, 1); err != nil {
			t.Fatalf("zero out: %v", err)
		}
		if got := be.bootstraps.Load() - before; got != 0 {
			t.Errorf("spent %d bootstraps, want 0", got)
		}
		if !reflect.DeepEqual(ct, snapshot) {
			t.Error("statically kept ciphertext was modified")
		}
	})
}

func TestZeroOutSkipsProvablyZeroBlocks(t *testing.T) {
	sk, be := testServerKey(t, ParamMessage2Carry2)

	// Middle digit is a trivial zero: the zero-out walk must not spend a
	// bootstrap on it.
	blocks := []*Block{freshBlock(sk, 3), nil, freshBlock(sk, 1)}
	zero, err := sk.TrivialBlock(0)
	if err != nil {
		t.Fatalf("trivial: %v", err)
	}
	blocks[1] = zero
	ct := NewRadixCiphertext(blocks)

	cond := freshBoolean(sk, true)
	before := be.bootstraps.Load()
	if err := sk.ZeroOutIfConditionIsFalse(ct, cond.AsBlock()); err != nil {
		t.Fatalf("zero out: %v", err)
	}
	if got := be.bootstraps.Load() - before; got != 2 {
		t.Errorf("spent %d bootstraps, want 2 (one per non-zero block)", got)
	}
	if got := decryptRadix(sk, ct); got != 3+1*16 {
		t.Errorf("value = %d, want %d", got, 3+1*16)
	}
}

func TestZeroOutIfConditionEquals(t *testing.T) {
	sk, _ := testServerKey(t, ParamMessage2Carry2)

	for target := uint64(0); target < 4; target++ {
		for _, held := range []bool{true, false} {
			var condValue uint64
			if held {
				condValue = target % 2 // keep the selector boolean
			} else {
				condValue = (target + 1) % 2
			}
			cond := freshBoolean(sk, condValue == 1)

			ct := freshRadix(sk, 11, 2)
			if err := sk.ZeroOutIfConditionEquals(ct, cond.AsBlock(), target); err != nil {
				t.Fatalf("zero out equals %d: %v", target, err)
			}

			want := uint64(11)
			if condValue == target {
				want = 0
			}
			if got := decryptRadix(sk, ct); got != want {
				t.Errorf("target %d cond %d: value = %d, want %d", target, condValue, got, want)
			}
		}
	}
}

func TestZeroOutRejectsWideCondition(t *testing.T) {
	sk, _ := testServerKey(t, ParamMessage2Carry2)

	ct := freshRadix(sk, 5, 2)
	wide := freshBlock(sk, 1)
	wide.Degree = 7 // carry not empty

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for condition with pending carry")
		}
	}()
	sk.ZeroOutIf(ct, wide, func(x uint64) bool { return x == 0 })
}
