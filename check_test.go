// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fheint

import (
	"errors"
	"fmt"
	"testing"
)

func TestCheckErrorMessage(t *testing.T) {
	err := &CheckError{Op: "crt scalar add", BlockIndex: 2, Degree: 63, MaxDegree: 60}
	want := "crt scalar add: block 2 would reach degree 63, exceeding the noise budget of 60"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsCheckError(t *testing.T) {
	ce := &CheckError{Op: "add", BlockIndex: 0, Degree: 16, MaxDegree: 16}
	if !IsCheckError(ce) {
		t.Error("IsCheckError(CheckError) = false")
	}
	if !IsCheckError(fmt.Errorf("schedule step 3: %w", ce)) {
		t.Error("IsCheckError does not see through wrapping")
	}
	if IsCheckError(errors.New("redis: connection refused")) {
		t.Error("IsCheckError matched an unrelated error")
	}
	if IsCheckError(nil) {
		t.Error("IsCheckError(nil) = true")
	}
}

func TestScalarAddCapacityBoundary(t *testing.T) {
	sk, _ := testServerKey(t, ParamMessage2Carry2)

	b := freshBlock(sk, 1)
	b.Degree = 10

	// 10 + 5 = 15 is the last degree below the budget of 16.
	if err := isScalarAddPossible("scalar add", 0, b, 5); err != nil {
		t.Errorf("degree 15 rejected: %v", err)
	}
	err := isScalarAddPossible("scalar add", 0, b, 6)
	if err == nil {
		t.Fatal("degree 16 accepted, want CheckError")
	}
	var ce *CheckError
	if !errors.As(err, &ce) {
		t.Fatalf("error type = %T, want *CheckError", err)
	}
	if ce.Degree != 16 || ce.MaxDegree != 16 {
		t.Errorf("CheckError = %+v, want Degree 16, MaxDegree 16", ce)
	}
	if b.Degree != 10 {
		t.Errorf("check mutated the block: degree = %d, want 10", b.Degree)
	}
}
