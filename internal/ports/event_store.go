package ports

import (
	"context"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

// EventStore persiste el log append-only del bot y lo sirve a los
// viewers. El orden autoritativo es el de inserción (seq), con el
// timestamp como clave primaria de ordenación en las queries.
type EventStore interface {
	// Append guarda un evento y devuelve el registro almacenado.
	// Si el evento llega sin id, se le asigna uno nuevo.
	Append(ctx context.Context, ev domain.Event) (domain.Event, error)

	// AppendBatch guarda varios eventos en una transacción.
	AppendBatch(ctx context.Context, evs []domain.Event) ([]domain.Event, error)

	// RoundEvents devuelve todos los eventos cuyo payload referencia
	// el market dado, ordenados por (ts, seq) ascendente. Con
	// ModeAll no se filtra por modo.
	RoundEvents(ctx context.Context, market string, mode domain.Mode) ([]domain.Event, error)

	// ListRounds devuelve los markets con al menos un registro, con
	// first/last seen, número de registros y modos observados.
	ListRounds(ctx context.Context, mode domain.Mode) ([]domain.RoundInfo, error)

	// Follow devuelve un canal con los eventos posteriores a afterID
	// (replay) y luego los nuevos según se insertan. Con afterID
	// vacío arranca desde la cola actual. El canal se cierra al
	// cancelar ctx.
	Follow(ctx context.Context, afterID string) (<-chan domain.Event, error)

	// LastID devuelve el id del último evento insertado, o "" si el
	// log está vacío.
	LastID(ctx context.Context) (string, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
