package types

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSignature() *Signature {
	return &Signature{
		V: 28,
		R: common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111"),
		S: common.HexToHash("0x2222222222222222222222222222222222222222222222222222222222222222"),
	}
}

func TestSignature_Bytes(t *testing.T) {
	sig := testSignature()
	b := sig.Bytes()
	require.Len(t, b, SignatureLength)
	assert.Equal(t, sig.R.Bytes(), b[0:32])
	assert.Equal(t, sig.S.Bytes(), b[32:64])
	assert.Equal(t, byte(28), b[64])

	parsed, err := SignatureFromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, sig, parsed)

	parsed, err = SignatureFromHex(sig.Hex())
	require.NoError(t, err)
	assert.Equal(t, sig, parsed)
}

func TestSignatureFromBytes(t *testing.T) {
	t.Run("raw recovery id is shifted", func(t *testing.T) {
		for raw, want := range map[byte]uint8{0: 27, 1: 28} {
			b := testSignature().Bytes()
			b[64] = raw
			sig, err := SignatureFromBytes(b)
			require.NoError(t, err)
			assert.Equal(t, want, sig.V)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name  string
			input []byte
		}{
			{"empty", nil},
			{"too short", make([]byte, 64)},
			{"too long", make([]byte, 66)},
			{"v of 2", append(make([]byte, 64), 2)},
			{"v of 29", append(make([]byte, 64), 29)},
			{"v of 255", append(make([]byte, 64), 255)},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := SignatureFromBytes(tt.input)
				require.ErrorIs(t, err, ErrInvalidSignature)
			})
		}
	})

	t.Run("bad hex", func(t *testing.T) {
		_, err := SignatureFromHex("not-hex")
		require.ErrorIs(t, err, ErrInvalidSignature)
	})
}

func TestSignature_UnmarshalJSON(t *testing.T) {
	r := "0x1111111111111111111111111111111111111111111111111111111111111111"
	s := "0x2222222222222222222222222222222222222222222222222222222222222222"

	tests := []struct {
		name string
		v    int
		want uint8
	}{
		{"raw recovery id 0", 0, 27},
		{"raw recovery id 1", 1, 28},
		{"27 unchanged", 27, 27},
		{"28 unchanged", 28, 28},
		{"out of range kept", 29, 29},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := json.Marshal(map[string]interface{}{"v": tt.v, "r": r, "s": s})
			require.NoError(t, err)

			var sig Signature
			require.NoError(t, json.Unmarshal(body, &sig))
			assert.Equal(t, tt.want, sig.V)
			assert.Equal(t, common.HexToHash(r), sig.R)
			assert.Equal(t, common.HexToHash(s), sig.S)
		})
	}

	t.Run("round trip", func(t *testing.T) {
		data, err := json.Marshal(testSignature())
		require.NoError(t, err)
		var sig Signature
		require.NoError(t, json.Unmarshal(data, &sig))
		assert.Equal(t, testSignature(), &sig)
	})
}

func TestPermitMessage_Copy(t *testing.T) {
	msg := &PermitMessage{
		Owner:    common.HexToAddress("0x01"),
		Spender:  common.HexToAddress("0x02"),
		Value:    big.NewInt(100),
		Nonce:    big.NewInt(1),
		Deadline: big.NewInt(5),
	}
	cp := msg.Copy()
	assert.Equal(t, msg, cp)

	cp.Value.SetInt64(1)
	cp.Nonce.SetInt64(9)
	assert.Equal(t, int64(100), msg.Value.Int64())
	assert.Equal(t, int64(1), msg.Nonce.Int64())

	var nilMsg *PermitMessage
	assert.Nil(t, nilMsg.Copy())
}

func TestAuthorization_JSON(t *testing.T) {
	auth := &Authorization{
		ID:           uuid.New(),
		Owner:        common.HexToAddress("0x01"),
		Spender:      common.HexToAddress("0x02"),
		Value:        new(big.Int).Lsh(big.NewInt(1), 200),
		Nonce:        big.NewInt(3),
		Deadline:     big.NewInt(9999999999),
		Digest:       common.HexToHash("0xabcd"),
		AuthorizedAt: 1000000000,
	}

	data, err := json.Marshal(auth)
	require.NoError(t, err)

	var decoded Authorization
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, auth, &decoded)

	original := new(big.Int).Set(auth.Value)
	cp := auth.Copy()
	cp.Value.SetInt64(0)
	cp.Nonce.SetInt64(0)
	assert.Equal(t, 0, auth.Value.Cmp(original))
	assert.Equal(t, int64(3), auth.Nonce.Int64())
}
