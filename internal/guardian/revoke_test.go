package guardian

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRevokeTx_ERC20(t *testing.T) {
	tx, err := BuildRevokeTx(ApprovalERC20, tokenAddr, spenderAddr, "1")
	require.NoError(t, err)

	assert.Equal(t, strings.ToLower(tokenAddr.Hex()), tx.To)
	assert.Equal(t, "0x0", tx.Value)
	assert.Equal(t, "1", tx.ChainID)
	assert.Equal(t, "approve", tx.Function)

	// approve(address,uint256) selector, then spender, then zero amount.
	assert.True(t, strings.HasPrefix(tx.Data, "0x095ea7b3"))
	assert.Contains(t, tx.Data, strings.TrimPrefix(strings.ToLower(spenderAddr.Hex()), "0x"))
	assert.True(t, strings.HasSuffix(tx.Data, strings.Repeat("0", 64)), "amount must be zero")
	// selector + two 32-byte words
	assert.Len(t, tx.Data, 2+8+64+64)
}

func TestBuildRevokeTx_NFT(t *testing.T) {
	tx, err := BuildRevokeTx(ApprovalNFT, tokenAddr, spenderAddr, "137")
	require.NoError(t, err)

	assert.Equal(t, "setApprovalForAll", tx.Function)
	// setApprovalForAll(address,bool) selector, approved=false.
	assert.True(t, strings.HasPrefix(tx.Data, "0xa22cb465"))
	assert.True(t, strings.HasSuffix(tx.Data, strings.Repeat("0", 64)), "approved must be false")
}

func TestBuildRevokeTx_UnknownType(t *testing.T) {
	_, err := BuildRevokeTx(ApprovalType("erc1155"), tokenAddr, common.Address{}, "1")
	assert.Error(t, err)
}
