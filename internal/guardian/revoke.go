package guardian

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	erc20ApproveABI = `[{"name":"approve","type":"function","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}]`
	nftApprovalABI  = `[{"name":"setApprovalForAll","type":"function","inputs":[{"name":"operator","type":"address"},{"name":"approved","type":"bool"}],"outputs":[]}]`
)

var (
	erc20ABI abi.ABI
	nftABI   abi.ABI
)

func init() {
	var err error
	if erc20ABI, err = abi.JSON(strings.NewReader(erc20ApproveABI)); err != nil {
		panic("erc20 abi: " + err.Error())
	}
	if nftABI, err = abi.JSON(strings.NewReader(nftApprovalABI)); err != nil {
		panic("nft abi: " + err.Error())
	}
}

// BuildRevokeTx assembles the unsigned transaction that revokes an
// approval: approve(spender, 0) for ERC-20 allowances,
// setApprovalForAll(operator, false) for NFT collections. The caller
// signs and broadcasts it; this service never holds keys.
func BuildRevokeTx(typ ApprovalType, token, spender common.Address, chainSecurityID string) (*RevokeTx, error) {
	var (
		data []byte
		err  error
		fn   string
	)
	switch typ {
	case ApprovalERC20:
		fn = "approve"
		data, err = erc20ABI.Pack(fn, spender, big.NewInt(0))
	case ApprovalNFT:
		fn = "setApprovalForAll"
		data, err = nftABI.Pack(fn, spender, false)
	default:
		return nil, fmt.Errorf("unknown approval type %q", typ)
	}
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", fn, err)
	}

	return &RevokeTx{
		To:       strings.ToLower(token.Hex()),
		Data:     hexutil.Encode(data),
		Value:    "0x0",
		ChainID:  chainSecurityID,
		Function: fn,
	}, nil
}
