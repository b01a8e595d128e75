package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists batches, units, history and the delivery/return records
// the engine writes alongside them, in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the statements available inside one engine transaction.
type TxRepository interface {
	InsertBatch(ctx context.Context, batch Batch) error
	GetBatchForUpdate(ctx context.Context, id string) (Batch, error)
	UpdateBatchCounters(ctx context.Context, batch Batch) error
	InsertUnit(ctx context.Context, unit Unit) error
	GetUnitForUpdate(ctx context.Context, id string) (Unit, error)
	GetUnitBySerialForUpdate(ctx context.Context, serial string) (Unit, error)
	OldestAvailableUnitForUpdate(ctx context.Context, sku string) (Unit, error)
	UnitsInStatusForUpdate(ctx context.Context, batchID string, status Status, limit int) ([]Unit, error)
	UpdateUnit(ctx context.Context, unit Unit) error
	SerialExists(ctx context.Context, serial string) (bool, error)
	InsertHistory(ctx context.Context, entry HistoryEntry) error
	InsertDelivery(ctx context.Context, d Delivery) error
	InsertReturn(ctx context.Context, ret Return) error
	GetReturnForUpdate(ctx context.Context, id string) (Return, error)
	UpdateReturn(ctx context.Context, ret Return) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction spanning
// the batch, unit, history and record tables. The callback either commits as
// a unit or leaves every table untouched.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const batchColumns = `id, sku, product_name, total_qty, available_qty, reserved_qty, delivered_qty, returned_qty,
serials_assigned, serials_unassigned, source, source_ref, unit_value, received_date, received_by, created_at`

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	var sourceRef *string
	err := row.Scan(&b.ID, &b.SKU, &b.ProductName, &b.TotalQuantity, &b.AvailableQuantity, &b.ReservedQuantity,
		&b.DeliveredQuantity, &b.ReturnedQuantity, &b.SerialsAssigned, &b.SerialsUnassigned,
		&b.Source, &sourceRef, &b.UnitValue, &b.ReceivedDate, &b.ReceivedBy, &b.CreatedAt)
	if err != nil {
		return Batch{}, err
	}
	if sourceRef != nil {
		b.SourceReference = *sourceRef
	}
	return b, nil
}

const unitColumns = `id, batch_id, serial_number, status, delivery_id, return_id, assigned_date, assigned_by, created_at`

func scanUnit(row pgx.Row) (Unit, error) {
	var u Unit
	var serial, deliveryID, returnID, assignedBy *string
	err := row.Scan(&u.ID, &u.BatchID, &serial, &u.Status, &deliveryID, &returnID, &u.AssignedDate, &assignedBy, &u.CreatedAt)
	if err != nil {
		return Unit{}, err
	}
	if serial != nil {
		u.SerialNumber = *serial
	}
	if deliveryID != nil {
		u.DeliveryID = *deliveryID
	}
	if returnID != nil {
		u.ReturnID = *returnID
	}
	if assignedBy != nil {
		u.AssignedBy = *assignedBy
	}
	return u, nil
}

// GetBatch loads one batch by id.
func (r *Repository) GetBatch(ctx context.Context, id string) (Batch, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM inventory_batches WHERE id=$1`, id)
	batch, err := scanBatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, ErrNotFound
	}
	return batch, err
}

// GetUnit loads one unit by id.
func (r *Repository) GetUnit(ctx context.Context, id string) (Unit, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+unitColumns+` FROM inventory_units WHERE id=$1`, id)
	unit, err := scanUnit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Unit{}, ErrNotFound
	}
	return unit, err
}

// GetUnitBySerial resolves a normalized serial number to its unit.
func (r *Repository) GetUnitBySerial(ctx context.Context, serial string) (Unit, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+unitColumns+` FROM inventory_units WHERE serial_number=$1`, serial)
	unit, err := scanUnit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Unit{}, ErrNotFound
	}
	return unit, err
}

// SerialExists reports whether any unit carries the serial number.
func (r *Repository) SerialExists(ctx context.Context, serial string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM inventory_units WHERE serial_number=$1)`, serial).Scan(&exists)
	return exists, err
}

// BatchFilter narrows ListBatches.
type BatchFilter struct {
	SKU    string
	Source Source
	Limit  int
	Offset int
}

// ListBatches returns batches newest first.
func (r *Repository) ListBatches(ctx context.Context, filter BatchFilter) ([]Batch, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+batchColumns+` FROM inventory_batches
WHERE ($1 = '' OR sku = $1) AND ($2 = '' OR source = $2)
ORDER BY created_at DESC, id DESC
LIMIT $3 OFFSET $4`, filter.SKU, string(filter.Source), limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	batches := []Batch{}
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

// ListUnitsByBatch returns all units of one batch in creation order.
func (r *Repository) ListUnitsByBatch(ctx context.Context, batchID string) ([]Unit, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+unitColumns+` FROM inventory_units WHERE batch_id=$1 ORDER BY created_at ASC, id ASC`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	units := []Unit{}
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

// UnitsNeedingSerial lists available units without a serial number, oldest first.
func (r *Repository) UnitsNeedingSerial(ctx context.Context, limit int) ([]Unit, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+unitColumns+` FROM inventory_units
WHERE serial_number IS NULL AND status=$1 ORDER BY created_at ASC, id ASC LIMIT $2`, string(StatusAvailable), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	units := []Unit{}
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

// History lists the append-only entries for one unit, oldest first.
func (r *Repository) History(ctx context.Context, unitID string) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, serial_number, unit_id, action, action_date, action_by, details, COALESCE(reference_id, '')
FROM unit_history WHERE unit_id=$1 ORDER BY id ASC`, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.SerialNumber, &e.UnitID, &e.Action, &e.ActionDate, &e.ActionBy, &e.Details, &e.ReferenceID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const deliveryColumns = `id, serial_number, unit_id, batch_id, sku, product_name, carrier, tracking_number, address,
customer_name, customer_phone, delivered_by, created_at`

func scanDelivery(row pgx.Row) (Delivery, error) {
	var d Delivery
	err := row.Scan(&d.ID, &d.SerialNumber, &d.UnitID, &d.BatchID, &d.SKU, &d.ProductName, &d.Carrier,
		&d.TrackingNumber, &d.Address, &d.CustomerName, &d.CustomerPhone, &d.DeliveredBy, &d.CreatedAt)
	return d, err
}

// GetDelivery loads one delivery record.
func (r *Repository) GetDelivery(ctx context.Context, id string) (Delivery, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id=$1`, id)
	d, err := scanDelivery(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Delivery{}, ErrNotFound
	}
	return d, err
}

// ListDeliveries returns delivery records newest first.
func (r *Repository) ListDeliveries(ctx context.Context, limit, offset int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+deliveryColumns+` FROM deliveries ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	deliveries := []Delivery{}
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

const returnColumns = `id, serial_number, unit_id, batch_id, delivery_id, status, decision, lpn, tracking_number,
condition, quantity, notes, decision_notes, decision_by, decision_at, received_by, created_at`

func scanReturn(row pgx.Row) (Return, error) {
	var ret Return
	var deliveryID, decisionBy *string
	err := row.Scan(&ret.ID, &ret.SerialNumber, &ret.UnitID, &ret.BatchID, &deliveryID, &ret.Status, &ret.Decision,
		&ret.LPN, &ret.TrackingNumber, &ret.Condition, &ret.Quantity, &ret.Notes, &ret.DecisionNotes,
		&decisionBy, &ret.DecisionAt, &ret.ReceivedBy, &ret.CreatedAt)
	if err != nil {
		return Return{}, err
	}
	if deliveryID != nil {
		ret.DeliveryID = *deliveryID
	}
	if decisionBy != nil {
		ret.DecisionBy = *decisionBy
	}
	return ret, nil
}

// GetReturn loads one return record.
func (r *Repository) GetReturn(ctx context.Context, id string) (Return, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+returnColumns+` FROM returns WHERE id=$1`, id)
	ret, err := scanReturn(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Return{}, ErrNotFound
	}
	return ret, err
}

// ListReturns returns return records newest first, optionally by decision.
func (r *Repository) ListReturns(ctx context.Context, decision ReturnDecision, limit, offset int) ([]Return, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+returnColumns+` FROM returns
WHERE ($1 = '' OR decision = $1) ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, string(decision), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	returns := []Return{}
	for rows.Next() {
		ret, err := scanReturn(rows)
		if err != nil {
			return nil, err
		}
		returns = append(returns, ret)
	}
	return returns, rows.Err()
}

func (r *txRepository) InsertBatch(ctx context.Context, batch Batch) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_batches
(id, sku, product_name, total_qty, available_qty, reserved_qty, delivered_qty, returned_qty,
 serials_assigned, serials_unassigned, source, source_ref, unit_value, received_date, received_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,NOW())`,
		batch.ID, batch.SKU, batch.ProductName, batch.TotalQuantity, batch.AvailableQuantity, batch.ReservedQuantity,
		batch.DeliveredQuantity, batch.ReturnedQuantity, batch.SerialsAssigned, batch.SerialsUnassigned,
		string(batch.Source), nullString(batch.SourceReference), batch.UnitValue, batch.ReceivedDate, batch.ReceivedBy)
	return err
}

func (r *txRepository) GetBatchForUpdate(ctx context.Context, id string) (Batch, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+batchColumns+` FROM inventory_batches WHERE id=$1 FOR UPDATE`, id)
	batch, err := scanBatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, ErrNotFound
	}
	return batch, err
}

func (r *txRepository) UpdateBatchCounters(ctx context.Context, batch Batch) error {
	_, err := r.tx.Exec(ctx, `UPDATE inventory_batches SET
available_qty=$2, reserved_qty=$3, delivered_qty=$4, returned_qty=$5, serials_assigned=$6, serials_unassigned=$7
WHERE id=$1`,
		batch.ID, batch.AvailableQuantity, batch.ReservedQuantity, batch.DeliveredQuantity, batch.ReturnedQuantity,
		batch.SerialsAssigned, batch.SerialsUnassigned)
	return err
}

func (r *txRepository) InsertUnit(ctx context.Context, unit Unit) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_units
(id, batch_id, serial_number, status, delivery_id, return_id, assigned_date, assigned_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		unit.ID, unit.BatchID, nullString(unit.SerialNumber), string(unit.Status),
		nullString(unit.DeliveryID), nullString(unit.ReturnID), unit.AssignedDate, nullString(unit.AssignedBy), unit.CreatedAt)
	return err
}

func (r *txRepository) GetUnitForUpdate(ctx context.Context, id string) (Unit, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+unitColumns+` FROM inventory_units WHERE id=$1 FOR UPDATE`, id)
	unit, err := scanUnit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Unit{}, ErrNotFound
	}
	return unit, err
}

func (r *txRepository) GetUnitBySerialForUpdate(ctx context.Context, serial string) (Unit, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+unitColumns+` FROM inventory_units WHERE serial_number=$1 FOR UPDATE`, serial)
	unit, err := scanUnit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Unit{}, ErrNotFound
	}
	return unit, err
}

func (r *txRepository) OldestAvailableUnitForUpdate(ctx context.Context, sku string) (Unit, error) {
	row := r.tx.QueryRow(ctx, `SELECT u.id, u.batch_id, u.serial_number, u.status, u.delivery_id, u.return_id, u.assigned_date, u.assigned_by, u.created_at
FROM inventory_units u
JOIN inventory_batches b ON b.id = u.batch_id
WHERE b.sku=$1 AND u.status=$2
ORDER BY u.created_at ASC, u.id ASC
LIMIT 1
FOR UPDATE OF u`, sku, string(StatusAvailable))
	unit, err := scanUnit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Unit{}, ErrNotFound
	}
	return unit, err
}

func (r *txRepository) UnitsInStatusForUpdate(ctx context.Context, batchID string, status Status, limit int) ([]Unit, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+unitColumns+` FROM inventory_units
WHERE batch_id=$1 AND status=$2 ORDER BY created_at ASC, id ASC LIMIT $3 FOR UPDATE`, batchID, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	units := []Unit{}
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

func (r *txRepository) UpdateUnit(ctx context.Context, unit Unit) error {
	_, err := r.tx.Exec(ctx, `UPDATE inventory_units SET
serial_number=$2, status=$3, delivery_id=$4, return_id=$5, assigned_date=$6, assigned_by=$7
WHERE id=$1`,
		unit.ID, nullString(unit.SerialNumber), string(unit.Status),
		nullString(unit.DeliveryID), nullString(unit.ReturnID), unit.AssignedDate, nullString(unit.AssignedBy))
	return err
}

func (r *txRepository) SerialExists(ctx context.Context, serial string) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM inventory_units WHERE serial_number=$1)`, serial).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertHistory(ctx context.Context, entry HistoryEntry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO unit_history (serial_number, unit_id, action, action_date, action_by, details, reference_id)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		entry.SerialNumber, entry.UnitID, string(entry.Action), entry.ActionDate, entry.ActionBy, entry.Details, nullString(entry.ReferenceID))
	return err
}

func (r *txRepository) InsertDelivery(ctx context.Context, d Delivery) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO deliveries
(id, serial_number, unit_id, batch_id, sku, product_name, carrier, tracking_number, address, customer_name, customer_phone, delivered_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		d.ID, d.SerialNumber, d.UnitID, d.BatchID, d.SKU, d.ProductName, d.Carrier, d.TrackingNumber,
		d.Address, d.CustomerName, d.CustomerPhone, d.DeliveredBy, d.CreatedAt)
	return err
}

func (r *txRepository) InsertReturn(ctx context.Context, ret Return) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO returns
(id, serial_number, unit_id, batch_id, delivery_id, status, decision, lpn, tracking_number, condition, quantity, notes, decision_notes, decision_by, decision_at, received_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		ret.ID, ret.SerialNumber, ret.UnitID, ret.BatchID, nullString(ret.DeliveryID), string(ret.Status), string(ret.Decision),
		ret.LPN, ret.TrackingNumber, ret.Condition, ret.Quantity, ret.Notes, ret.DecisionNotes,
		nullString(ret.DecisionBy), ret.DecisionAt, ret.ReceivedBy, ret.CreatedAt)
	return err
}

func (r *txRepository) GetReturnForUpdate(ctx context.Context, id string) (Return, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+returnColumns+` FROM returns WHERE id=$1 FOR UPDATE`, id)
	ret, err := scanReturn(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Return{}, ErrNotFound
	}
	return ret, err
}

func (r *txRepository) UpdateReturn(ctx context.Context, ret Return) error {
	_, err := r.tx.Exec(ctx, `UPDATE returns SET status=$2, decision=$3, decision_notes=$4, decision_by=$5, decision_at=$6 WHERE id=$1`,
		ret.ID, string(ret.Status), string(ret.Decision), ret.DecisionNotes, nullString(ret.DecisionBy), ret.DecisionAt)
	return err
}

// StatusCounts is a per-batch recount of unit states, used by the integrity job.
type StatusCounts struct {
	BatchID   string
	Available int
	Reserved  int
	Delivered int
	Returned  int
	Assigned  int
}

// RecountUnits recomputes unit status counts per batch straight from the unit
// table, bypassing the denormalized batch counters.
func (r *Repository) RecountUnits(ctx context.Context) ([]StatusCounts, error) {
	rows, err := r.pool.Query(ctx, `SELECT batch_id,
COUNT(*) FILTER (WHERE status='available'),
COUNT(*) FILTER (WHERE status='reserved'),
COUNT(*) FILTER (WHERE status='delivered'),
COUNT(*) FILTER (WHERE status='returned'),
COUNT(*) FILTER (WHERE serial_number IS NOT NULL)
FROM inventory_units GROUP BY batch_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := []StatusCounts{}
	for rows.Next() {
		var c StatusCounts
		if err := rows.Scan(&c.BatchID, &c.Available, &c.Reserved, &c.Delivered, &c.Returned, &c.Assigned); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// Stats aggregates unit counts by status plus valuation of sellable stock.
type Stats struct {
	UnitsAvailable int             `json:"units_available"`
	UnitsReserved  int             `json:"units_reserved"`
	UnitsDelivered int             `json:"units_delivered"`
	UnitsReturned  int             `json:"units_returned"`
	NeedingSerial  int             `json:"needing_serial"`
	Batches        int             `json:"batches"`
	StockValue     decimal.Decimal `json:"stock_value"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// GetStats computes dashboard aggregates as pure projections over the stores.
func (r *Repository) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `SELECT
COUNT(*) FILTER (WHERE status='available'),
COUNT(*) FILTER (WHERE status='reserved'),
COUNT(*) FILTER (WHERE status='delivered'),
COUNT(*) FILTER (WHERE status='returned'),
COUNT(*) FILTER (WHERE serial_number IS NULL AND status='available')
FROM inventory_units`).Scan(&s.UnitsAvailable, &s.UnitsReserved, &s.UnitsDelivered, &s.UnitsReturned, &s.NeedingSerial)
	if err != nil {
		return Stats{}, err
	}
	err = r.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(available_qty * unit_value), 0) FROM inventory_batches`).
		Scan(&s.Batches, &s.StockValue)
	if err != nil {
		return Stats{}, err
	}
	s.GeneratedAt = time.Now().UTC()
	return s, nil
}

// LowStock lists batches whose available quantity fell below the threshold.
func (r *Repository) LowStock(ctx context.Context, threshold int) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+batchColumns+` FROM inventory_batches
WHERE available_qty < $1 AND available_qty + reserved_qty > 0
ORDER BY available_qty ASC, created_at ASC`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	batches := []Batch{}
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
