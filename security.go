// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fheint

import "fmt"

// SecurityLevel is the classical security target of a parameter set, in bits.
type SecurityLevel int

const (
	// Security128 provides 128-bit classical security.
	Security128 SecurityLevel = 128
	// Security192 provides 192-bit classical security.
	Security192 SecurityLevel = 192
)

// SecurityParams ties a named security target to a lattice parameter literal
// and the largest block geometry its modulus leaves headroom for. Deployments
// select parameters by name rather than by raw moduli.
type SecurityParams struct {
	// Name identifies the parameter set.
	Name string
	// Security is the classical security target.
	Security SecurityLevel
	// MaxMessageBits is the widest message (and carry) width, in bits per
	// block, that the modulus supports without padding-bit failures.
	MaxMessageBits int
	// Literal is the lattice parameter specification.
	Literal LatticeParametersLiteral
}

// Standard parameter sets.
var (
	// STD128 is the recommended default: 128-bit security, 2-bit blocks.
	STD128 = SecurityParams{
		Name:           "STD128",
		Security:       Security128,
		MaxMessageBits: 2,
		Literal:        PN10QP27,
	}

	// STD128HighPrec trades bootstrap speed for 3-bit blocks, needed by
	// wide CRT bases.
	STD128HighPrec = SecurityParams{
		Name:           "STD128_HIGHPREC",
		Security:       Security128,
		MaxMessageBits: 3,
		Literal:        PN11QP54,
	}
)

// AllSecurityParams returns the named parameter sets.
func AllSecurityParams() []SecurityParams {
	return []SecurityParams{STD128, STD128HighPrec}
}

// GetSecurityParams looks up a parameter set by name.
func GetSecurityParams(name string) (SecurityParams, bool) {
	for _, p := range AllSecurityParams() {
		if p.Name == name {
			return p, true
		}
	}
	return SecurityParams{}, false
}

// LatticeParameters instantiates the set's lattice parameters, rejecting
// block geometries wider than the modulus supports.
func (sp SecurityParams) LatticeParameters(engine Parameters) (LatticeParameters, error) {
	if bits := engine.MessageBits(); bits > sp.MaxMessageBits {
		return LatticeParameters{}, fmt.Errorf("%s supports at most %d message bits, got %d",
			sp.Name, sp.MaxMessageBits, bits)
	}
	return NewLatticeParametersFromLiteral(sp.Literal)
}
