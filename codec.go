// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fheint

import (
	"math/big"

	"github.com/luxfi/lattice/v7/core/rlwe"
	"github.com/luxfi/lattice/v7/ring"
)

// Encryptor encrypts plaintext digits into blocks carried by the lattice
// backend. Freshly encrypted blocks carry a full message and an empty
// carry, so their degree is message_modulus - 1.
type Encryptor struct {
	params    LatticeParameters
	engine    Parameters
	encryptor *rlwe.Encryptor
	scale     float64
}

// NewEncryptor creates a new encryptor from a secret key.
func NewEncryptor(params LatticeParameters, engine Parameters, sk *SecretKey) *Encryptor {
	total := engine.TotalModulus()
	return &Encryptor{
		params:    params,
		engine:    engine,
		encryptor: rlwe.NewEncryptor(params.paramsLWE, sk.SKLWE),
		scale:     float64(params.QLWE()) / float64(2*total),
	}
}

// Encrypt encrypts a digit in [0, message_modulus) into a single block.
// Note: panics on encryption failure (should not happen with valid parameters).
func (enc *Encryptor) Encrypt(value uint64) *Block {
	msgMod := enc.engine.MessageModulus
	return &Block{
		Payload:        enc.encrypt(value % msgMod),
		Degree:         msgMod - 1,
		MessageModulus: msgMod,
		CarryModulus:   enc.engine.CarryModulus,
	}
}

// encrypt encodes and encrypts a raw plaintext in [0, total).
func (enc *Encryptor) encrypt(value uint64) *latticePayload {
	pt := rlwe.NewPlaintext(enc.params.paramsLWE, enc.params.paramsLWE.MaxLevel())
	pt.Value.Coeffs[0][0] = uint64(float64(value)*enc.scale+0.5) % enc.params.QLWE()
	enc.params.paramsLWE.RingQ().NTT(pt.Value, pt.Value)

	ct := rlwe.NewCiphertext(enc.params.paramsLWE, 1, enc.params.paramsLWE.MaxLevel())
	if err := enc.encryptor.Encrypt(pt, ct); err != nil {
		panic(err)
	}
	return &latticePayload{ct: ct}
}

// EncryptBool encrypts a boolean as a degree-1 block.
func (enc *Encryptor) EncryptBool(value bool) *BooleanBlock {
	var v uint64
	if value {
		v = 1
	}
	block := enc.Encrypt(v)
	block.Degree = 1
	return NewBooleanBlock(block)
}

// EncryptRadix encrypts value as numBlocks little-endian base-message_modulus
// digits.
func (enc *Encryptor) EncryptRadix(value uint64, numBlocks int) *RadixCiphertext {
	digits := decomposeUnsigned(value, enc.engine.MessageModulus, numBlocks)
	blocks := make([]*Block, numBlocks)
	for i, d := range digits {
		blocks[i] = enc.Encrypt(d)
	}
	return NewRadixCiphertext(blocks)
}

// EncryptSignedRadix encrypts a signed value in two's complement over
// numBlocks digits.
func (enc *Encryptor) EncryptSignedRadix(value int64, numBlocks int) *SignedRadixCiphertext {
	digits := decomposeSigned(value, enc.engine.MessageModulus, numBlocks, enc.engine.MessageBits())
	blocks := make([]*Block, numBlocks)
	for i, d := range digits {
		blocks[i] = enc.Encrypt(d)
	}
	return NewSignedRadixCiphertext(blocks)
}

// EncryptCrt encrypts value as residues over the given coprime basis. Each
// residue block keeps its own channel modulus so per-channel capacity checks
// see the right budget.
func (enc *Encryptor) EncryptCrt(value uint64, basis []uint64) *CrtCiphertext {
	total := enc.engine.TotalModulus()
	blocks := make([]*Block, len(basis))
	for i, m := range basis {
		blocks[i] = &Block{
			Payload:        enc.encrypt(value % m),
			Degree:         m - 1,
			MessageModulus: m,
			CarryModulus:   total / m,
		}
	}
	return NewCrtCiphertext(blocks, append([]uint64(nil), basis...))
}

// Decryptor decrypts blocks back to plaintext digits.
type Decryptor struct {
	params    LatticeParameters
	engine    Parameters
	decryptor *rlwe.Decryptor
	ringQ     *ring.Ring
}

// NewDecryptor creates a new decryptor from a secret key.
func NewDecryptor(params LatticeParameters, engine Parameters, sk *SecretKey) *Decryptor {
	return &Decryptor{
		params:    params,
		engine:    engine,
		decryptor: rlwe.NewDecryptor(params.paramsLWE, sk.SKLWE),
		ringQ:     params.paramsLWE.RingQ(),
	}
}

// DecryptBlock decrypts a block to its raw plaintext in [0, total). The
// caller reduces modulo the message modulus when the carry is not of
// interest.
func (dec *Decryptor) DecryptBlock(b *Block) uint64 {
	lp, ok := b.Payload.(*latticePayload)
	if !ok {
		panic("decryptor: block does not carry a lattice payload")
	}

	pt := rlwe.NewPlaintext(dec.params.paramsLWE, lp.ct.Level())
	dec.decryptor.Decrypt(lp.ct, pt)
	if pt.IsNTT {
		dec.ringQ.INTT(pt.Value, pt.Value)
	}

	c := pt.Value.Coeffs[0][0]
	q := dec.params.QLWE()
	total := dec.engine.TotalModulus()

	// Decode: round(c * 2*total / Q) mod 2*total, then fold the torus
	// upper half back onto [0, total).
	decoded := uint64(float64(c)*float64(2*total)/float64(q)+0.5) % (2 * total)
	return decoded % total
}

// DecryptBool decrypts a boolean block.
func (dec *Decryptor) DecryptBool(b *BooleanBlock) bool {
	return dec.DecryptBlock(b.AsBlock())%dec.engine.MessageModulus == 1
}

// decryptDigits decrypts the blocks into canonical little-endian digits,
// folding pending carries into higher digits the way lazy propagation would.
func (dec *Decryptor) decryptDigits(blocks []*Block) []uint64 {
	msgMod := dec.engine.MessageModulus
	digits := make([]uint64, len(blocks))
	var carry uint64
	for i, b := range blocks {
		raw := dec.DecryptBlock(b) + carry
		digits[i] = raw % msgMod
		carry = raw / msgMod
	}
	return digits
}

// DecryptRadix decrypts and recomposes an unsigned radix integer.
func (dec *Decryptor) DecryptRadix(ct *RadixCiphertext) uint64 {
	return recomposeUnsigned(dec.decryptDigits(ct.Blocks()), dec.engine.MessageModulus)
}

// DecryptSignedRadix decrypts a signed radix integer in two's complement.
func (dec *Decryptor) DecryptSignedRadix(ct *SignedRadixCiphertext) int64 {
	n := len(ct.Blocks())
	bits := dec.engine.MessageBits() * n
	value := recomposeUnsigned(dec.decryptDigits(ct.Blocks()), dec.engine.MessageModulus)

	if bits >= 64 {
		return int64(value)
	}
	mask := uint64(1)<<bits - 1
	value &= mask
	if value&(1<<(bits-1)) != 0 {
		return int64(value | ^mask)
	}
	return int64(value)
}

// DecryptCrt decrypts each residue and recomposes the value over the basis.
func (dec *Decryptor) DecryptCrt(ct *CrtCiphertext) uint64 {
	moduli := ct.Moduli()
	residues := make([]uint64, len(ct.Blocks()))
	for i, b := range ct.Blocks() {
		residues[i] = dec.DecryptBlock(b) % moduli[i]
	}
	return CrtRecompose(residues, moduli)
}

// DecryptBigInt decrypts a radix integer of any width into a big.Int.
func (dec *Decryptor) DecryptBigInt(ct *RadixCiphertext) *big.Int {
	msgMod := dec.engine.MessageModulus
	value := new(big.Int)
	shift := big.NewInt(1)
	msgModBig := new(big.Int).SetUint64(msgMod)
	var carry uint64
	for _, b := range ct.Blocks() {
		raw := dec.DecryptBlock(b) + carry
		digit := new(big.Int).SetUint64(raw % msgMod)
		value.Add(value, digit.Mul(digit, shift))
		carry = raw / msgMod
		shift.Mul(shift, msgModBig)
	}
	return value
}
