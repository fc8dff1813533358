// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fheint

import "testing"

func TestFullPropagateAssign(t *testing.T) {
	sk, _ := testServerKey(t, ParamMessage2Carry2)

	t.Run("resolves a pending carry", func(t *testing.T) {
		ct := freshRadix(sk, 0, 2)
		ct.Blocks()[0].Payload = &plainPayload{value: 5}
		ct.Blocks()[0].Degree = 5
		ct.Blocks()[1].Payload = &plainPayload{value: 2}

		if err := sk.FullPropagateAssign(ct); err != nil {
			t.Fatalf("propagate: %v", err)
		}

		if !ct.BlockCarriesAreEmpty() {
			t.Error("carries still pending after propagation")
		}
		// 5 + 2*4 = 13 survives the renormalization.
		if got := decryptRadix(sk, ct); got != 13 {
			t.Errorf("value = %d, want 13", got)
		}
		if got := ct.Blocks()[0].Payload.(*plainPayload).value; got != 1 {
			t.Errorf("digit 0 = %d, want 1", got)
		}
		if got := ct.Blocks()[1].Payload.(*plainPayload).value; got != 3 {
			t.Errorf("digit 1 = %d, want 3", got)
		}
	})

	t.Run("carry chains across blocks", func(t *testing.T) {
		// Every digit saturated: carries ripple the whole way up.
		ct := freshRadix(sk, 0, 3)
		for _, b := range ct.Blocks() {
			b.Payload = &plainPayload{value: 7}
			b.Degree = 7
		}

		if err := sk.FullPropagateAssign(ct); err != nil {
			t.Fatalf("propagate: %v", err)
		}
		// 7 + 7*4 + 7*16 = 147 ≡ 19 (mod 64).
		if got := decryptRadix(sk, ct); got != 147%64 {
			t.Errorf("value = %d, want %d", got, 147%64)
		}
		if !ct.BlockCarriesAreEmpty() {
			t.Error("carries still pending after propagation")
		}
	})

	t.Run("discards the final carry", func(t *testing.T) {
		ct := freshRadix(sk, 0, 1)
		ct.Blocks()[0].Payload = &plainPayload{value: 6}
		ct.Blocks()[0].Degree = 6

		if err := sk.FullPropagateAssign(ct); err != nil {
			t.Fatalf("propagate: %v", err)
		}
		if got := decryptRadix(sk, ct); got != 2 {
			t.Errorf("value = %d, want 2 (6 mod 4)", got)
		}
	})
}

func TestFullPropagateSkipsCleanBlocks(t *testing.T) {
	sk, be := testServerKey(t, ParamMessage2Carry2)

	ct := freshRadix(sk, 10, 3)
	before := be.bootstraps.Load()
	if err := sk.FullPropagateAssign(ct); err != nil {
		t.Fatalf("propagate: %v", err)
	}
	if got := be.bootstraps.Load() - before; got != 0 {
		t.Errorf("clean ciphertext spent %d bootstraps, want 0", got)
	}
	if got := decryptRadix(sk, ct); got != 10 {
		t.Errorf("value = %d, want 10", got)
	}
}

func TestFullPropagateCloneLeavesInputAlone(t *testing.T) {
	sk, _ := testServerKey(t, ParamMessage2Carry2)

	dirty := freshRadix(sk, 0, 2)
	dirty.Blocks()[0].Payload = &plainPayload{value: 6}
	dirty.Blocks()[0].Degree = 6

	out, err := sk.fullPropagateClone(dirty)
	if err != nil {
		t.Fatalf("propagate clone: %v", err)
	}
	if !out.BlockCarriesAreEmpty() {
		t.Error("clone still dirty")
	}
	if dirty.BlockCarriesAreEmpty() {
		t.Error("input was mutated")
	}

	// A clean input is returned as-is: no copy, no bootstrap.
	same, err := sk.fullPropagateClone(out)
	if err != nil {
		t.Fatalf("propagate clean: %v", err)
	}
	if same != out {
		t.Error("clean input was copied")
	}
}
