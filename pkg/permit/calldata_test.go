package permit

import (
	"math/big"
	"testing"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePermitCall(t *testing.T) {
	owner := common.HexToAddress("0x1111111111111111111111111111111111111111")
	spender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	msg := &types.PermitMessage{
		Owner:    owner,
		Spender:  spender,
		Value:    big.NewInt(100),
		Nonce:    big.NewInt(3),
		Deadline: big.NewInt(9999999999),
	}
	sig := &types.Signature{
		V: 28,
		R: common.HexToHash("0x0101010101010101010101010101010101010101010101010101010101010101"),
		S: common.HexToHash("0x0202020202020202020202020202020202020202020202020202020202020202"),
	}

	data, err := EncodePermitCall(msg, sig)
	require.NoError(t, err)

	// permit(address,address,uint256,uint256,uint8,bytes32,bytes32)
	assert.Equal(t, "0xd505accf", hexutil.Encode(data[:4]))
	assert.Len(t, data, 4+7*32)

	out, err := PermitABI().Methods["permit"].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Len(t, out, 7)

	assert.Equal(t, owner, out[0].(common.Address))
	assert.Equal(t, spender, out[1].(common.Address))
	assert.Equal(t, 0, msg.Value.Cmp(out[2].(*big.Int)))
	assert.Equal(t, 0, msg.Deadline.Cmp(out[3].(*big.Int)))
	assert.Equal(t, uint8(28), out[4].(uint8))
	assert.Equal(t, [32]byte(sig.R), out[5].([32]byte))
	assert.Equal(t, [32]byte(sig.S), out[6].([32]byte))
}

func TestEncodePermitCall_Invalid(t *testing.T) {
	sig := &types.Signature{V: 27}
	msg := &types.PermitMessage{Value: big.NewInt(1), Deadline: big.NewInt(-5)}

	_, err := EncodePermitCall(nil, sig)
	require.ErrorIs(t, err, types.ErrInvalidPermit)

	_, err = EncodePermitCall(msg, nil)
	require.ErrorIs(t, err, types.ErrInvalidSignature)

	_, err = EncodePermitCall(msg, sig)
	require.ErrorIs(t, err, types.ErrInvalidPermit)
}
