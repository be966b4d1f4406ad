package ports

import (
	"context"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

// TxChecker verifica en Polygon los tx hashes que el bot reporta en
// sus merges. Solo lectura: receipt y coste de gas.
type TxChecker interface {
	MergeTxStatus(ctx context.Context, txHash string) (domain.TxStatus, error)
}
