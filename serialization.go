// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fheint

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/luxfi/lattice/v7/core/rlwe"
)

// ========== Secret Key Serialization ==========

// MarshalBinary serializes the secret key to binary format
func (sk *SecretKey) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	if err := serializeSecretKey(&buf, sk.SKLWE); err != nil {
		return nil, fmt.Errorf("serialize SKLWE: %w", err)
	}
	if err := serializeSecretKey(&buf, sk.SKBR); err != nil {
		return nil, fmt.Errorf("serialize SKBR: %w", err)
	}

	return buf.Bytes(), nil
}

// UnmarshalBinary deserializes the secret key from binary format
func (sk *SecretKey) UnmarshalBinary(data []byte) error {
	buf := bytes.NewReader(data)

	sklwe, err := deserializeSecretKey(buf)
	if err != nil {
		return fmt.Errorf("deserialize SKLWE: %w", err)
	}
	sk.SKLWE = sklwe

	skbr, err := deserializeSecretKey(buf)
	if err != nil {
		return fmt.Errorf("deserialize SKBR: %w", err)
	}
	sk.SKBR = skbr

	return nil
}

func serializeSecretKey(w io.Writer, sk *rlwe.SecretKey) error {
	enc := gob.NewEncoder(w)
	return enc.Encode(sk)
}

func deserializeSecretKey(r io.Reader) (*rlwe.SecretKey, error) {
	dec := gob.NewDecoder(r)
	var sk rlwe.SecretKey
	if err := dec.Decode(&sk); err != nil {
		return nil, err
	}
	return &sk, nil
}

// ========== Public Key Serialization ==========

// MarshalBinary serializes the public key to binary format
func (pk *PublicKey) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(pk.PKLWE); err != nil {
		return nil, fmt.Errorf("serialize PKLWE: %w", err)
	}

	return buf.Bytes(), nil
}

// UnmarshalBinary deserializes the public key from binary format
func (pk *PublicKey) UnmarshalBinary(data []byte) error {
	buf := bytes.NewReader(data)

	dec := gob.NewDecoder(buf)
	var pklwe rlwe.PublicKey
	if err := dec.Decode(&pklwe); err != nil {
		return fmt.Errorf("deserialize PKLWE: %w", err)
	}
	pk.PKLWE = &pklwe

	return nil
}

// ========== Bootstrap Key Serialization ==========

// MarshalBinary serializes the bootstrap key to binary format
func (bsk *BootstrapKey) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(bsk.BRK); err != nil {
		return nil, fmt.Errorf("serialize BRK: %w", err)
	}

	return buf.Bytes(), nil
}

// UnmarshalBinary deserializes the bootstrap key from binary format
func (bsk *BootstrapKey) UnmarshalBinary(data []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&bsk.BRK); err != nil {
		return fmt.Errorf("deserialize BRK: %w", err)
	}
	return nil
}

// ========== Block Serialization ==========

// Ciphertext type tags used in the serialized stream.
const (
	ctTagRadix  uint8 = 1
	ctTagSigned uint8 = 2
	ctTagCrt    uint8 = 3
)

// MarshalBlock serializes a block together with its degree metadata. The
// payload bytes come from the backend, so a stream written with one backend
// must be read back with a compatible one.
func (sk *ServerKey) MarshalBlock(b *Block) ([]byte, error) {
	var buf bytes.Buffer
	if err := sk.writeBlock(&buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBlock deserializes a block written by MarshalBlock.
func (sk *ServerKey) UnmarshalBlock(data []byte) (*Block, error) {
	return sk.readBlock(bytes.NewReader(data))
}

func (sk *ServerKey) writeBlock(w io.Writer, b *Block) error {
	payload, err := sk.backend.MarshalPayload(b.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	for _, v := range []uint64{b.Degree, b.MessageModulus, b.CarryModulus, uint64(len(payload))} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	_, err = w.Write(payload)
	return err
}

func (sk *ServerKey) readBlock(r io.Reader) (*Block, error) {
	var header [4]uint64
	for i := range header {
		if err := binary.Read(r, binary.LittleEndian, &header[i]); err != nil {
			return nil, err
		}
	}

	data := make([]byte, header[3])
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	payload, err := sk.backend.UnmarshalPayload(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	return &Block{
		Payload:        payload,
		Degree:         header[0],
		MessageModulus: header[1],
		CarryModulus:   header[2],
	}, nil
}

// ========== Integer Ciphertext Serialization ==========

// MarshalCiphertext serializes a radix or signed radix ciphertext with a
// type tag so the reader recovers the concrete representation. CRT
// ciphertexts carry a basis and go through MarshalCrtCiphertext instead.
func (sk *ServerKey) MarshalCiphertext(ct IntegerCiphertext) ([]byte, error) {
	var buf bytes.Buffer

	var tag uint8
	switch ct.(type) {
	case *RadixCiphertext:
		tag = ctTagRadix
	case *SignedRadixCiphertext:
		tag = ctTagSigned
	default:
		return nil, fmt.Errorf("marshal ciphertext: unsupported type %T", ct)
	}

	if err := binary.Write(&buf, binary.LittleEndian, tag); err != nil {
		return nil, err
	}
	blocks := ct.Blocks()
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(blocks))); err != nil {
		return nil, err
	}
	for i, b := range blocks {
		if err := sk.writeBlock(&buf, b); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
	}

	return buf.Bytes(), nil
}

// UnmarshalCiphertext deserializes a ciphertext written by MarshalCiphertext.
func (sk *ServerKey) UnmarshalCiphertext(data []byte) (IntegerCiphertext, error) {
	buf := bytes.NewReader(data)

	var tag uint8
	if err := binary.Read(buf, binary.LittleEndian, &tag); err != nil {
		return nil, err
	}
	// Reject foreign tags before touching the block stream: a CRT stream
	// carries basis moduli after the count and would misparse as blocks.
	if tag != ctTagRadix && tag != ctTagSigned {
		return nil, fmt.Errorf("unmarshal ciphertext: unknown tag %d", tag)
	}
	var numBlocks uint32
	if err := binary.Read(buf, binary.LittleEndian, &numBlocks); err != nil {
		return nil, err
	}

	blocks := make([]*Block, numBlocks)
	for i := range blocks {
		b, err := sk.readBlock(buf)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		blocks[i] = b
	}

	if tag == ctTagSigned {
		return NewSignedRadixCiphertext(blocks), nil
	}
	return NewRadixCiphertext(blocks), nil
}

// MarshalCrtCiphertext serializes a CRT ciphertext together with its basis.
func (sk *ServerKey) MarshalCrtCiphertext(ct *CrtCiphertext) ([]byte, error) {
	var buf bytes.Buffer

	if err := binary.Write(&buf, binary.LittleEndian, ctTagCrt); err != nil {
		return nil, err
	}
	blocks := ct.Blocks()
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(blocks))); err != nil {
		return nil, err
	}
	for _, m := range ct.Moduli() {
		if err := binary.Write(&buf, binary.LittleEndian, m); err != nil {
			return nil, err
		}
	}
	for i, b := range blocks {
		if err := sk.writeBlock(&buf, b); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
	}

	return buf.Bytes(), nil
}

// UnmarshalCrtCiphertext deserializes a ciphertext written by MarshalCrtCiphertext.
func (sk *ServerKey) UnmarshalCrtCiphertext(data []byte) (*CrtCiphertext, error) {
	buf := bytes.NewReader(data)

	var tag uint8
	if err := binary.Read(buf, binary.LittleEndian, &tag); err != nil {
		return nil, err
	}
	if tag != ctTagCrt {
		return nil, fmt.Errorf("unmarshal crt ciphertext: tag %d is not a CRT stream", tag)
	}
	var numBlocks uint32
	if err := binary.Read(buf, binary.LittleEndian, &numBlocks); err != nil {
		return nil, err
	}

	moduli := make([]uint64, numBlocks)
	for i := range moduli {
		if err := binary.Read(buf, binary.LittleEndian, &moduli[i]); err != nil {
			return nil, err
		}
	}

	blocks := make([]*Block, numBlocks)
	for i := range blocks {
		b, err := sk.readBlock(buf)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		blocks[i] = b
	}

	return NewCrtCiphertext(blocks, moduli), nil
}
