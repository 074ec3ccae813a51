package private

import (
	"math/big"

	"github.com/blocksync/chain/foundation/blockchain/database"
)

// nodeTxRequest is the payload for a transaction shared by a peer. The
// timestamp preserves the mempool ordering of the sharing node.
type nodeTxRequest struct {
	ChainID   uint16             `json:"chain_id" validate:"required"`
	Nonce     uint64             `json:"nonce" validate:"required"`
	ToID      database.AccountID `json:"to" validate:"required"`
	Value     uint64             `json:"value" validate:"required"`
	Tip       uint64             `json:"tip"`
	Data      []byte             `json:"data"`
	V         *big.Int           `json:"v" validate:"required"`
	R         *big.Int           `json:"r" validate:"required"`
	S         *big.Int           `json:"s" validate:"required"`
	TimeStamp uint64             `json:"timestamp" validate:"required"`
}

// toBlockTx converts the request payload into the database transaction.
func (req nodeTxRequest) toBlockTx() database.BlockTx {
	return database.BlockTx{
		SignedTx: database.SignedTx{
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
		},
		TimeStamp: req.TimeStamp,
	}
}

// addPeerRequest is the payload a node sends to announce its availability.
type addPeerRequest struct {
	Host string `json:"host" validate:"required"`
}
