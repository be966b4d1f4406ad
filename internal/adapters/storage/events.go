package storage

// events.go — log append-only de eventos del hedger.
//
// Estrategia:
//   - `events`: una fila por registro, payload JSON verbatim tal y
//     como llegó del bot. `seq` (autoincrement) fija el orden de
//     inserción; `ts` se guarda como RFC3339 UTC de anchura fija
//     (nanosegundos rellenados), que ordena igual como texto que
//     como fecha.
//   - `market` se extrae del payload al insertar, para indexar las
//     queries por ronda sin parsear JSON en cada lectura.
//   - Followers (SSE, tail de consola): un broadcast en memoria los
//     despierta tras cada insert, con un poll de seguridad de 1s.
//   - Prune al arrancar: eventos de simulación con más de 7 días.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

const schema = `
-- Log append-only: una fila por evento del bot
CREATE TABLE IF NOT EXISTS events (
    seq     INTEGER  PRIMARY KEY AUTOINCREMENT,
    id      TEXT     NOT NULL UNIQUE,
    ts      TEXT     NOT NULL,
    mode    TEXT     NOT NULL DEFAULT '',
    kind    TEXT     NOT NULL,
    market  TEXT     NOT NULL DEFAULT '',
    payload TEXT     NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_events_market_ts ON events(market, ts);
CREATE INDEX IF NOT EXISTS idx_events_mode      ON events(mode);
CREATE INDEX IF NOT EXISTS idx_events_ts        ON events(ts);
`

const (
	retentionSim = 7 * 24 * time.Hour // simulación: 7 días y fuera
	followPoll   = time.Second        // poll de seguridad de los followers
	followBuffer = 64                 // backlog por follower antes de bloquear

	// tsLayout rellena los nanosegundos para que el orden
	// lexicográfico del TEXT coincida con el cronológico.
	tsLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// SQLiteStore implementa ports.EventStore usando SQLite (pure Go, sin CGo).
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex
	subs    map[int]chan struct{} // follower id → señal de "hay filas nuevas"
	nextSub int
}

// NewSQLiteStore abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y poda los eventos de simulación antiguos.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}

	s := &SQLiteStore{
		db:   db,
		subs: make(map[int]chan struct{}),
	}
	s.pruneOld(context.Background())
	return s, nil
}

// Append guarda un evento y despierta a los followers. Completa id y
// timestamp si el bot no los mandó.
func (s *SQLiteStore) Append(ctx context.Context, ev domain.Event) (domain.Event, error) {
	stored, err := s.insert(ctx, s.db, ev)
	if err != nil {
		return domain.Event{}, fmt.Errorf("storage.Append: %w", err)
	}
	s.wake()
	return stored, nil
}

// AppendBatch guarda varios eventos en una transacción y despierta a
// los followers una sola vez.
func (s *SQLiteStore) AppendBatch(ctx context.Context, evs []domain.Event) ([]domain.Event, error) {
	if len(evs) == 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("storage.AppendBatch: begin tx: %w", err)
	}
	defer tx.Rollback()

	out := make([]domain.Event, 0, len(evs))
	for _, ev := range evs {
		stored, err := s.insert(ctx, tx, ev)
		if err != nil {
			return nil, fmt.Errorf("storage.AppendBatch: %w", err)
		}
		out = append(out, stored)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("storage.AppendBatch: commit: %w", err)
	}
	s.wake()
	return out, nil
}

// execer cubre *sql.DB y *sql.Tx para reusar insert en ambos caminos.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) insert(ctx context.Context, db execer, ev domain.Event) (domain.Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	payload, err := ev.PayloadJSON()
	if err != nil {
		return domain.Event{}, err
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO events (id, ts, mode, kind, market, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.TS.UTC().Format(tsLayout),
		string(ev.Mode),
		string(ev.Kind),
		ev.Market(),
		string(payload),
	); err != nil {
		return domain.Event{}, fmt.Errorf("insert %s: %w", ev.ID, err)
	}
	return ev, nil
}

// ─── Queries ─────────────────────────────────────────────────────────────────

// RoundEvents devuelve los eventos de una ronda ordenados por
// (ts, seq) ascendente — el orden estable que espera la
// reconstrucción. Con ModeAll o modo vacío no se filtra por modo.
func (s *SQLiteStore) RoundEvents(ctx context.Context, market string, mode domain.Mode) ([]domain.Event, error) {
	if market == "" {
		return nil, errors.New("storage.RoundEvents: empty market")
	}

	query := `
		SELECT id, ts, mode, kind, payload
		FROM events
		WHERE market = ?`
	args := []any{market}
	if mode != "" && mode != domain.ModeAll {
		query += ` AND mode = ?`
		args = append(args, string(mode))
	}
	query += ` ORDER BY ts ASC, seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.RoundEvents: query: %w", err)
	}
	defer rows.Close()

	var evs []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.RoundEvents: %w", err)
		}
		evs = append(evs, ev)
	}
	return evs, rows.Err()
}

// ListRounds agrega el log por market: first/last seen, número de
// registros y modos observados. Ordenado por actividad reciente.
func (s *SQLiteStore) ListRounds(ctx context.Context, mode domain.Mode) ([]domain.RoundInfo, error) {
	query := `
		SELECT market, MIN(ts), MAX(ts), COUNT(*), GROUP_CONCAT(DISTINCT mode)
		FROM events
		WHERE market != ''`
	args := []any{}
	if mode != "" && mode != domain.ModeAll {
		query += ` AND mode = ?`
		args = append(args, string(mode))
	}
	query += `
		GROUP BY market
		ORDER BY MAX(ts) DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ListRounds: query: %w", err)
	}
	defer rows.Close()

	var infos []domain.RoundInfo
	for rows.Next() {
		var info domain.RoundInfo
		var first, last, modes string
		if err := rows.Scan(&info.Market, &first, &last, &info.Records, &modes); err != nil {
			return nil, fmt.Errorf("storage.ListRounds: scan row: %w", err)
		}
		info.FirstSeen = parseTS(first)
		info.LastSeen = parseTS(last)
		for _, m := range strings.Split(modes, ",") {
			if m != "" {
				info.Modes = append(info.Modes, domain.Mode(m))
			}
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// LastID devuelve el id del último evento insertado, o "" con el log vacío.
func (s *SQLiteStore) LastID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM events ORDER BY seq DESC LIMIT 1`,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("storage.LastID: %w", err)
	}
	return id, nil
}

// ─── Follow ──────────────────────────────────────────────────────────────────

// Follow devuelve un canal que primero reproduce los eventos con seq
// posterior a afterID y después entrega los nuevos según llegan. Un
// afterID vacío o desconocido (p.ej. podado) arranca desde la cola
// actual. El canal se cierra al cancelar ctx.
func (s *SQLiteStore) Follow(ctx context.Context, afterID string) (<-chan domain.Event, error) {
	after, err := s.resolveSeq(ctx, afterID)
	if err != nil {
		return nil, fmt.Errorf("storage.Follow: %w", err)
	}

	out := make(chan domain.Event, followBuffer)
	wakeCh, subID := s.subscribe()

	go func() {
		defer close(out)
		defer s.unsubscribe(subID)

		ticker := time.NewTicker(followPoll)
		defer ticker.Stop()

		last := after
		for {
			var err error
			last, err = s.emitAfter(ctx, last, out)
			if err != nil {
				return // ctx cancelado o DB cerrada
			}
			select {
			case <-ctx.Done():
				return
			case <-wakeCh:
			case <-ticker.C:
			}
		}
	}()
	return out, nil
}

// emitAfter manda por out todos los eventos con seq > after y
// devuelve el último seq entregado.
func (s *SQLiteStore) emitAfter(ctx context.Context, after int64, out chan<- domain.Event) (int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, ts, mode, kind, payload
		FROM events
		WHERE seq > ?
		ORDER BY seq ASC`, after)
	if err != nil {
		return after, err
	}
	defer rows.Close()

	last := after
	for rows.Next() {
		var seq int64
		var id, ts, mode, kind, payload string
		if err := rows.Scan(&seq, &id, &ts, &mode, &kind, &payload); err != nil {
			return last, err
		}
		ev := buildEvent(id, ts, mode, kind, payload)
		select {
		case out <- ev:
			last = seq
		case <-ctx.Done():
			return last, ctx.Err()
		}
	}
	return last, rows.Err()
}

// resolveSeq traduce un id de evento a su seq. "" o un id que ya no
// existe → cola actual.
func (s *SQLiteStore) resolveSeq(ctx context.Context, id string) (int64, error) {
	if id != "" {
		var seq int64
		err := s.db.QueryRowContext(ctx, `SELECT seq FROM events WHERE id = ?`, id).Scan(&seq)
		if err == nil {
			return seq, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}
	}
	var tail sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM events`).Scan(&tail); err != nil {
		return 0, err
	}
	return tail.Int64, nil
}

func (s *SQLiteStore) subscribe() (chan struct{}, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{}, 1)
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	return ch, id
}

func (s *SQLiteStore) unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

// wake avisa a todos los followers sin bloquear: si un follower ya
// tiene la señal pendiente, con una basta.
func (s *SQLiteStore) wake() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func scanEvent(rows *sql.Rows) (domain.Event, error) {
	var id, ts, mode, kind, payload string
	if err := rows.Scan(&id, &ts, &mode, &kind, &payload); err != nil {
		return domain.Event{}, fmt.Errorf("scan row: %w", err)
	}
	return buildEvent(id, ts, mode, kind, payload), nil
}

func buildEvent(id, ts, mode, kind, payload string) domain.Event {
	ev := domain.Event{
		ID:   id,
		TS:   parseTS(ts),
		Mode: domain.Mode(mode),
		Kind: domain.EventKind(kind),
	}
	if payload != "" {
		ev.Raw = []byte(payload)
	}
	ev.NormalizePayload()
	return ev
}

// parseTS tolera los dos formatos que han pasado por la DB.
func parseTS(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse("2006-01-02 15:04:05", s)
	}
	return t
}

// pruneOld poda los eventos de simulación antiguos; los de producción
// se conservan enteros, son el histórico real del bot.
func (s *SQLiteStore) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionSim).Format(tsLayout)
	s.db.ExecContext(ctx,
		`DELETE FROM events WHERE mode = ? AND ts < ?`,
		string(domain.ModeSimulation), cutoff,
	)
}
