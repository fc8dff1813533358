// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package fheint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockRoundtrip(t *testing.T) {
	sk, _ := testServerKey(t, ParamMessage2Carry2)

	b := freshBlock(sk, 3)
	b.Degree = 7

	data, err := sk.MarshalBlock(b)
	require.NoError(t, err)

	got, err := sk.UnmarshalBlock(data)
	require.NoError(t, err)

	require.Equal(t, b.Degree, got.Degree)
	require.Equal(t, b.MessageModulus, got.MessageModulus)
	require.Equal(t, b.CarryModulus, got.CarryModulus)
	require.Equal(t, b.Payload.(*plainPayload).value, got.Payload.(*plainPayload).value)
}

func TestCiphertextRoundtrip(t *testing.T) {
	sk, _ := testServerKey(t, ParamMessage2Carry2)

	t.Run("radix", func(t *testing.T) {
		ct := freshRadix(sk, 27, 4)
		data, err := sk.MarshalCiphertext(ct)
		require.NoError(t, err)

		got, err := sk.UnmarshalCiphertext(data)
		require.NoError(t, err)
		require.IsType(t, &RadixCiphertext{}, got)
		require.Equal(t, uint64(27), decryptRadix(sk, got))
	})

	t.Run("signed", func(t *testing.T) {
		ct := freshSignedRadix(sk, -42, 4)
		data, err := sk.MarshalCiphertext(ct)
		require.NoError(t, err)

		got, err := sk.UnmarshalCiphertext(data)
		require.NoError(t, err)
		require.IsType(t, &SignedRadixCiphertext{}, got)
		require.Equal(t, int64(-42), decryptSignedRadix(sk, got.(*SignedRadixCiphertext)))
	})

	t.Run("degrees survive the wire", func(t *testing.T) {
		ct := freshRadix(sk, 5, 2)
		ct.Blocks()[1].Degree = 9

		data, err := sk.MarshalCiphertext(ct)
		require.NoError(t, err)
		got, err := sk.UnmarshalCiphertext(data)
		require.NoError(t, err)
		require.Equal(t, uint64(9), got.Blocks()[1].Degree)
	})
}

func TestCrtCiphertextRoundtrip(t *testing.T) {
	sk, _ := testServerKey(t, ParamMessage3Carry3)

	ct := freshCrt(sk, 23, crtBasis)
	data, err := sk.MarshalCrtCiphertext(ct)
	require.NoError(t, err)

	got, err := sk.UnmarshalCrtCiphertext(data)
	require.NoError(t, err)
	require.Equal(t, crtBasis, got.Moduli())
	require.Equal(t, uint64(23), decryptCrt(got))
}

func TestUnmarshalRejectsForeignTags(t *testing.T) {
	sk, _ := testServerKey(t, ParamMessage3Carry3)

	crtData, err := sk.MarshalCrtCiphertext(freshCrt(sk, 7, crtBasis))
	require.NoError(t, err)
	_, err = sk.UnmarshalCiphertext(crtData)
	require.ErrorContains(t, err, "unknown tag")

	radixData, err := sk.MarshalCiphertext(freshRadix(sk, 7, 2))
	require.NoError(t, err)
	_, err = sk.UnmarshalCrtCiphertext(radixData)
	require.ErrorContains(t, err, "not a CRT stream")
}

func TestUnmarshalTruncatedStream(t *testing.T) {
	sk, _ := testServerKey(t, ParamMessage2Carry2)

	data, err := sk.MarshalCiphertext(freshRadix(sk, 9, 2))
	require.NoError(t, err)
	_, err = sk.UnmarshalCiphertext(data[:len(data)-3])
	require.Error(t, err)

	_, err = sk.UnmarshalBlock([]byte{1, 2, 3})
	require.Error(t, err)
}
