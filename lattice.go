// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fheint

import (
	"fmt"

	"github.com/luxfi/lattice/v7/core/rgsw/blindrot"
	"github.com/luxfi/lattice/v7/core/rlwe"
	"github.com/luxfi/lattice/v7/ring"
)

// LatticeBackend implements the Backend contract on luxfi/lattice
// primitives: LWE payloads, additive homomorphism for the linear
// operations, and blind rotation for the bootstrap.
//
// SECURITY: the backend holds no secret key. Bootstrapping uses blind
// rotation with public sample extraction and modulus switching only.
type LatticeBackend struct {
	params  LatticeParameters
	engine  Parameters
	eval    *blindrot.Evaluator
	bsk     *BootstrapKey
	ringLWE *ring.Ring
	ringBR  *ring.Ring

	// scaleLWE encodes a plaintext in [0, total) into the lower half of
	// the LWE torus: Q / (2 * total).
	scaleLWE float64
	scaleBR  float64
}

// latticePayload is an LWE-encrypted block payload.
type latticePayload struct {
	ct *rlwe.Ciphertext
}

// Clone returns a deep copy of the payload.
func (p *latticePayload) Clone() Payload {
	return &latticePayload{ct: p.ct.CopyNew()}
}

// NewLatticeBackend creates a lattice backend for blocks in the plaintext
// geometry of engine, bootstrapped with bsk.
func NewLatticeBackend(params LatticeParameters, engine Parameters, bsk *BootstrapKey) (*LatticeBackend, error) {
	if err := engine.validate(); err != nil {
		return nil, fmt.Errorf("lattice backend: %w", err)
	}
	total := engine.TotalModulus()
	return &LatticeBackend{
		params:   params,
		engine:   engine,
		eval:     blindrot.NewEvaluator(params.paramsBR, params.paramsLWE),
		bsk:      bsk,
		ringLWE:  params.paramsLWE.RingQ(),
		ringBR:   params.paramsBR.RingQ(),
		scaleLWE: float64(params.QLWE()) / float64(2*total),
		scaleBR:  float64(params.QBR()) / float64(2*total),
	}, nil
}

func (be *LatticeBackend) payload(p Payload) (*latticePayload, error) {
	lp, ok := p.(*latticePayload)
	if !ok {
		return nil, fmt.Errorf("lattice backend: foreign payload %T", p)
	}
	return lp, nil
}

// Add adds two LWE payloads element-wise.
func (be *LatticeBackend) Add(a, b Payload) (Payload, error) {
	pa, err := be.payload(a)
	if err != nil {
		return nil, err
	}
	pb, err := be.payload(b)
	if err != nil {
		return nil, err
	}
	out := rlwe.NewCiphertext(be.params.paramsLWE, 1, pa.ct.Level())
	be.ringLWE.Add(pa.ct.Value[0], pb.ct.Value[0], out.Value[0])
	be.ringLWE.Add(pa.ct.Value[1], pb.ct.Value[1], out.Value[1])
	out.IsNTT = pa.ct.IsNTT
	return &latticePayload{ct: out}, nil
}

// ScalarAdd adds an encoded plaintext scalar to the payload's body term.
func (be *LatticeBackend) ScalarAdd(a Payload, scalar uint64) (Payload, error) {
	pa, err := be.payload(a)
	if err != nil {
		return nil, err
	}
	out := pa.ct.CopyNew()
	encoded := uint64(float64(scalar)*be.scaleLWE + 0.5)
	q := be.params.QLWE()

	if out.IsNTT {
		// A constant shifts every NTT coefficient equally.
		for i := range out.Value[0].Coeffs[0] {
			out.Value[0].Coeffs[0][i] = (out.Value[0].Coeffs[0][i] + encoded) % q
		}
	} else {
		out.Value[0].Coeffs[0][0] = (out.Value[0].Coeffs[0][0] + encoded) % q
	}
	return &latticePayload{ct: out}, nil
}

// ScalarMul multiplies the payload by a small plaintext scalar.
func (be *LatticeBackend) ScalarMul(a Payload, scalar uint64) (Payload, error) {
	pa, err := be.payload(a)
	if err != nil {
		return nil, err
	}
	out := rlwe.NewCiphertext(be.params.paramsLWE, 1, pa.ct.Level())
	be.ringLWE.MulScalar(pa.ct.Value[0], scalar, out.Value[0])
	be.ringLWE.MulScalar(pa.ct.Value[1], scalar, out.Value[1])
	out.IsNTT = pa.ct.IsNTT
	return &latticePayload{ct: out}, nil
}

// Trivial produces a noiseless encryption of value: (b, a) = (encode(value), 0).
func (be *LatticeBackend) Trivial(value uint64) (Payload, error) {
	ct := rlwe.NewCiphertext(be.params.paramsLWE, 1, be.params.paramsLWE.MaxLevel())
	encoded := uint64(float64(value)*be.scaleLWE+0.5) % be.params.QLWE()
	// In the NTT domain a constant sets every coefficient equally.
	for i := range ct.Value[0].Coeffs[0] {
		ct.Value[0].Coeffs[0][i] = encoded
	}
	ct.IsNTT = true
	return &latticePayload{ct: ct}, nil
}

// Bootstrap applies a lookup table via blind rotation and publicly extracts
// the result back to an LWE payload with fresh noise.
func (be *LatticeBackend) Bootstrap(a Payload, lut *LookupTable) (Payload, error) {
	pa, err := be.payload(a)
	if err != nil {
		return nil, err
	}

	testPoly := be.testPolynomial(lut)
	results, err := be.eval.Evaluate(pa.ct, map[int]*ring.Poly{0: testPoly}, be.bsk.BRK)
	if err != nil {
		return nil, fmt.Errorf("blind rotation: %w", err)
	}
	ctBR, ok := results[0]
	if !ok {
		return nil, fmt.Errorf("blind rotation: no result for slot 0")
	}
	out, err := be.sampleExtractAndModSwitch(ctBR)
	if err != nil {
		return nil, err
	}
	return &latticePayload{ct: out}, nil
}

// BootstrapMany evaluates one blind rotation and extracts one output per
// packed table, amortizing the rotation across the whole batch.
func (be *LatticeBackend) BootstrapMany(a Payload, lut *ManyLookupTable) ([]Payload, error) {
	pa, err := be.payload(a)
	if err != nil {
		return nil, err
	}

	testPolys := make(map[int]*ring.Poly, len(lut.Tables))
	for i, t := range lut.Tables {
		testPolys[i] = be.testPolynomial(t)
	}
	results, err := be.eval.Evaluate(pa.ct, testPolys, be.bsk.BRK)
	if err != nil {
		return nil, fmt.Errorf("blind rotation: %w", err)
	}

	out := make([]Payload, len(lut.Tables))
	for i := range lut.Tables {
		ctBR, ok := results[i]
		if !ok {
			return nil, fmt.Errorf("blind rotation: no result for slot %d", i)
		}
		ct, err := be.sampleExtractAndModSwitch(ctBR)
		if err != nil {
			return nil, err
		}
		out[i] = &latticePayload{ct: ct}
	}
	return out, nil
}

// testPolynomial builds the blind rotation test polynomial of a lookup
// table: a step function over [-1, 1] with one step per plaintext.
func (be *LatticeBackend) testPolynomial(lut *LookupTable) *ring.Poly {
	total := float64(len(lut.Entries))
	scale := rlwe.NewScale(be.scaleBR)
	poly := blindrot.InitTestPolynomial(func(x float64) float64 {
		idx := int((x + 1) * total / 2)
		if idx < 0 {
			idx = 0
		}
		if idx >= len(lut.Entries) {
			idx = len(lut.Entries) - 1
		}
		return float64(lut.Entries[idx])*2/total - 1
	}, scale, be.ringBR, -1, 1)
	return &poly
}

// sampleExtractAndModSwitch converts a blind rotation output back to an LWE
// payload. With the recommended same-dimension, same-modulus configuration
// this is a plain copy; otherwise the coefficients are rescaled from QBR to
// QLWE.
//
// SECURITY: a public operation; the ciphertext remains encrypted throughout.
func (be *LatticeBackend) sampleExtractAndModSwitch(ctBR *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	if be.params.N() == be.params.NBR() && be.params.QLWE() == be.params.QBR() {
		return ctBR.CopyNew(), nil
	}

	ringBR := be.ringBR.AtLevel(ctBR.Level())
	qBR := be.params.QBR()
	qLWE := be.params.QLWE()

	c0 := ctBR.Value[0].CopyNew()
	c1 := ctBR.Value[1].CopyNew()
	if ctBR.IsNTT {
		ringBR.INTT(*c0, *c0)
		ringBR.INTT(*c1, *c1)
	}

	nLWE := be.params.N()
	out := rlwe.NewCiphertext(be.params.paramsLWE, 1, be.params.paramsLWE.MaxLevel())
	scaleFactor := float64(qLWE) / float64(qBR)
	for i := 0; i < nLWE; i++ {
		out.Value[0].Coeffs[0][i] = uint64(float64(c0.Coeffs[0][i])*scaleFactor+0.5) % qLWE
		out.Value[1].Coeffs[0][i] = uint64(float64(c1.Coeffs[0][i])*scaleFactor+0.5) % qLWE
	}

	ringLWE := be.ringLWE.AtLevel(be.params.paramsLWE.MaxLevel())
	ringLWE.NTT(out.Value[0], out.Value[0])
	ringLWE.NTT(out.Value[1], out.Value[1])
	out.IsNTT = true
	return out, nil
}

// MarshalPayload serializes an LWE payload.
func (be *LatticeBackend) MarshalPayload(p Payload) ([]byte, error) {
	lp, err := be.payload(p)
	if err != nil {
		return nil, err
	}
	return lp.ct.MarshalBinary()
}

// UnmarshalPayload reverses MarshalPayload.
func (be *LatticeBackend) UnmarshalPayload(data []byte) (Payload, error) {
	ct := new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &latticePayload{ct: ct}, nil
}
