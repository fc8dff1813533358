// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fheint

import (
	"github.com/luxfi/lattice/v7/core/rgsw/blindrot"
	"github.com/luxfi/lattice/v7/core/rlwe"
	"github.com/luxfi/lattice/v7/ring"
	"github.com/luxfi/lattice/v7/utils"
)

// LatticeParameters defines the lattice parameter set backing the block
// payloads: one parameter family for LWE block samples and one for the
// blind rotation performing the programmable bootstrap.
type LatticeParameters struct {
	// paramsLWE defines parameters for LWE samples (encrypted blocks)
	paramsLWE rlwe.Parameters
	// paramsBR defines parameters for blind rotation (bootstrapping)
	paramsBR rlwe.Parameters
	// evkParams defines evaluation key decomposition
	evkParams rlwe.EvaluationKeyParameters
}

// LatticeParametersLiteral is a user-friendly lattice parameter specification.
type LatticeParametersLiteral struct {
	// LogNLWE is log2 of the LWE dimension (typically 9-10)
	LogNLWE int
	// LogNBR is log2 of the blind rotation dimension (typically 10-11)
	LogNBR int
	// QLWE is the LWE modulus
	QLWE uint64
	// QBR is the blind rotation modulus
	QBR uint64
	// BaseTwoDecomposition for key switching (typically 7-10)
	BaseTwoDecomposition int
}

// Standard lattice parameter sets.
var (
	// PN10QP27 provides ~128-bit security with good performance.
	// Uses the same dimension and modulus for LWE and BR to avoid key
	// switching complexity. N=1024, Q=134215681.
	PN10QP27 = LatticeParametersLiteral{
		LogNLWE:              10,
		LogNBR:               10,
		QLWE:                 0x7fff801,
		QBR:                  0x7fff801,
		BaseTwoDecomposition: 7,
	}

	// PN11QP54 provides ~128-bit security with higher precision, enough
	// headroom for 3-bit message / 3-bit carry blocks. N=2048, Q is a
	// 54-bit NTT-friendly prime (1 mod 2N).
	PN11QP54 = LatticeParametersLiteral{
		LogNLWE:              11,
		LogNBR:               11,
		QLWE:                 0x3fffffffef8001,
		QBR:                  0x3fffffffef8001,
		BaseTwoDecomposition: 10,
	}
)

// NewLatticeParametersFromLiteral creates LatticeParameters from a literal
// specification.
func NewLatticeParametersFromLiteral(lit LatticeParametersLiteral) (params LatticeParameters, err error) {
	params.paramsLWE, err = rlwe.NewParametersFromLiteral(rlwe.ParametersLiteral{
		LogN:    lit.LogNLWE,
		Q:       []uint64{lit.QLWE},
		NTTFlag: true,
	})
	if err != nil {
		return
	}

	params.paramsBR, err = rlwe.NewParametersFromLiteral(rlwe.ParametersLiteral{
		LogN:    lit.LogNBR,
		Q:       []uint64{lit.QBR},
		NTTFlag: true,
	})
	if err != nil {
		return
	}

	params.evkParams = rlwe.EvaluationKeyParameters{
		BaseTwoDecomposition: utils.Pointy(lit.BaseTwoDecomposition),
	}

	return
}

// N returns the LWE dimension.
func (p LatticeParameters) N() int { return p.paramsLWE.N() }

// NBR returns the blind rotation dimension.
func (p LatticeParameters) NBR() int { return p.paramsBR.N() }

// QLWE returns the LWE modulus.
func (p LatticeParameters) QLWE() uint64 { return p.paramsLWE.Q()[0] }

// QBR returns the blind rotation modulus.
func (p LatticeParameters) QBR() uint64 { return p.paramsBR.Q()[0] }

// SecretKey contains the LWE and RLWE secret keys.
type SecretKey struct {
	// SKLWE is the LWE secret key encrypting blocks.
	SKLWE *rlwe.SecretKey
	// SKBR is the RLWE secret key for blind rotation results.
	SKBR *rlwe.SecretKey
}

// PublicKey allows clients to encrypt blocks without the secret key.
type PublicKey struct {
	// PKLWE is the LWE public key.
	PKLWE *rlwe.PublicKey
}

// BootstrapKey holds the capability to apply lookup tables to blocks.
type BootstrapKey struct {
	// BRK is the blind rotation key (RGSW encryptions of the LWE secret
	// key bits).
	BRK blindrot.BlindRotationEvaluationKeySet

	params LatticeParameters
}

// KeyGenerator generates the lattice key material.
type KeyGenerator struct {
	params  LatticeParameters
	kgenLWE *rlwe.KeyGenerator
	kgenBR  *rlwe.KeyGenerator
	ringQBR *ring.Ring
}

// NewKeyGenerator creates a new key generator.
func NewKeyGenerator(params LatticeParameters) *KeyGenerator {
	return &KeyGenerator{
		params:  params,
		kgenLWE: rlwe.NewKeyGenerator(params.paramsLWE),
		kgenBR:  rlwe.NewKeyGenerator(params.paramsBR),
		ringQBR: params.paramsBR.RingQ(),
	}
}

// GenSecretKey generates a new secret key pair.
func (kg *KeyGenerator) GenSecretKey() *SecretKey {
	return &SecretKey{
		SKLWE: kg.kgenLWE.GenSecretKeyNew(),
		SKBR:  kg.kgenBR.GenSecretKeyNew(),
	}
}

// GenPublicKey generates a public key from a secret key.
func (kg *KeyGenerator) GenPublicKey(sk *SecretKey) *PublicKey {
	return &PublicKey{
		PKLWE: kg.kgenLWE.GenPublicKeyNew(sk.SKLWE),
	}
}

// GenKeyPair generates both a secret key and its public key.
func (kg *KeyGenerator) GenKeyPair() (*SecretKey, *PublicKey) {
	sk := kg.GenSecretKey()
	return sk, kg.GenPublicKey(sk)
}

// GenBootstrapKey generates the bootstrap key from a secret key.
func (kg *KeyGenerator) GenBootstrapKey(sk *SecretKey) *BootstrapKey {
	brk := blindrot.GenEvaluationKeyNew(kg.params.paramsBR, sk.SKBR, kg.params.paramsLWE, sk.SKLWE, kg.params.evkParams)
	return &BootstrapKey{
		BRK:    brk,
		params: kg.params,
	}
}
