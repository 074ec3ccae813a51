package public

import (
	"math/big"

	"github.com/blocksync/chain/foundation/blockchain/database"
)

// submitTxRequest is the payload for submitting a signed transaction.
type submitTxRequest struct {
	ChainID uint16             `json:"chain_id" validate:"required"`
	Nonce   uint64             `json:"nonce" validate:"required"`
	ToID    database.AccountID `json:"to" validate:"required"`
	Value   uint64             `json:"value" validate:"required"`
	Tip     uint64             `json:"tip"`
	Data    []byte             `json:"data"`
	V       *big.Int           `json:"v" validate:"required"`
	R       *big.Int           `json:"r" validate:"required"`
	S       *big.Int           `json:"s" validate:"required"`
}

// toSignedTx converts the request payload into the database transaction.
func (req submitTxRequest) toSignedTx() database.SignedTx {
	return database.SignedTx{
		Tx: database.Tx{
			ChainID: req.ChainID,
			Nonce:   req.Nonce,
			ToID:    req.ToID,
			Value:   req.Value,
			Tip:     req.Tip,
			Data:    req.Data,
		},
		V: req.V,
		R: req.R,
		S: req.S,
	}
}

// act represents an account and its balance.
type act struct {
	Account database.AccountID `json:"account"`
	Balance uint64             `json:"balance"`
	Nonce   uint64             `json:"nonce"`
}

// accountsResponse returns balances against a specific chain tip so the
// caller knows how current the values are.
type accountsResponse struct {
	LatestBlock string `json:"latest_block"`
	Uncommitted int    `json:"uncommitted"`
	Accounts    []act  `json:"accounts"`
}
