package domain

// TxState clasifica el estado on-chain de una transacción de merge.
type TxState string

const (
	TxConfirmed TxState = "confirmed"
	TxReverted  TxState = "reverted"
	TxPending   TxState = "pending"
	TxUnknown   TxState = "unknown" // hash ausente o nodo inalcanzable
)

// TxStatus es el resultado de verificar el tx_hash que el bot reportó
// en un merge. Solo informativo: nunca altera la reconstrucción.
type TxStatus struct {
	Hash    string  `json:"hash"`
	State   TxState `json:"state"`
	Block   uint64  `json:"block,omitempty"`
	GasUsed uint64  `json:"gas_used,omitempty"`
	FeePOL  float64 `json:"fee_pol,omitempty"`
	FeeUSD  float64 `json:"fee_usd,omitempty"`
}
