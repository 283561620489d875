package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/TitouanDH/BLab/pkg/model"
	"github.com/TitouanDH/BLab/pkg/util"
)

//go:embed schema.sql
var schema string

// Postgres implements Store on a PostgreSQL database via lib/pq.
type Postgres struct {
	db *sql.DB
}

// Open connects to the database named by dsn and pings it.
func Open(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{db: db}, nil
}

// EnsureSchema creates missing tables. Statements are idempotent, so
// running it at every startup is safe.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// wrapErr maps driver errors onto the store sentinels.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (p *Postgres) CreateSwitch(ctx context.Context, sw *model.Switch) error {
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO switches (mngt_ip, model, console, part_number, hardware_revision, serial_number)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		sw.MgmtIP, sw.Model, sw.Console, sw.PartNumber, sw.HardwareRevision, sw.SerialNumber,
	).Scan(&sw.ID)
	return wrapErr("create switch", err)
}

func (p *Postgres) GetSwitch(ctx context.Context, id int64) (*model.Switch, error) {
	var sw model.Switch
	err := p.db.QueryRowContext(ctx, `
		SELECT id, mngt_ip, model, console, part_number, hardware_revision, serial_number
		FROM switches WHERE id = $1`, id,
	).Scan(&sw.ID, &sw.MgmtIP, &sw.Model, &sw.Console, &sw.PartNumber, &sw.HardwareRevision, &sw.SerialNumber)
	if err != nil {
		return nil, wrapErr("get switch", err)
	}
	return &sw, nil
}

func (p *Postgres) ListSwitches(ctx context.Context) ([]model.Switch, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, mngt_ip, model, console, part_number, hardware_revision, serial_number
		FROM switches ORDER BY id`)
	if err != nil {
		return nil, wrapErr("list switches", err)
	}
	defer rows.Close()

	var switches []model.Switch
	for rows.Next() {
		var sw model.Switch
		if err := rows.Scan(&sw.ID, &sw.MgmtIP, &sw.Model, &sw.Console, &sw.PartNumber, &sw.HardwareRevision, &sw.SerialNumber); err != nil {
			return nil, wrapErr("list switches", err)
		}
		switches = append(switches, sw)
	}
	return switches, wrapErr("list switches", rows.Err())
}

func (p *Postgres) DeleteSwitch(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM switches WHERE id = $1`, id)
	if err != nil {
		return wrapErr("delete switch", err)
	}
	return affected("delete switch", res)
}

func (p *Postgres) CreatePort(ctx context.Context, port *model.Port) error {
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO ports (switch_id, port_switch, backbone, port_backbone, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		port.SwitchID, port.PortSwitch, port.Backbone, port.PortBackbone, statusOrDown(port.Status),
	).Scan(&port.ID)
	return wrapErr("create port", err)
}

func statusOrDown(s model.PortStatus) model.PortStatus {
	if s == "" {
		return model.PortDown
	}
	return s
}

const portColumns = `id, switch_id, port_switch, backbone, port_backbone, svlan, status`

func scanPort(row interface{ Scan(...interface{}) error }) (*model.Port, error) {
	var port model.Port
	var svlan sql.NullInt64
	err := row.Scan(&port.ID, &port.SwitchID, &port.PortSwitch, &port.Backbone, &port.PortBackbone, &svlan, &port.Status)
	if err != nil {
		return nil, err
	}
	if svlan.Valid {
		v := int(svlan.Int64)
		port.SVLAN = &v
	}
	return &port, nil
}

func (p *Postgres) GetPort(ctx context.Context, id int64) (*model.Port, error) {
	port, err := scanPort(p.db.QueryRowContext(ctx,
		`SELECT `+portColumns+` FROM ports WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get port", err)
	}
	return port, nil
}

func (p *Postgres) listPorts(ctx context.Context, query string, args ...interface{}) ([]model.Port, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ports []model.Port
	for rows.Next() {
		port, err := scanPort(rows)
		if err != nil {
			return nil, err
		}
		ports = append(ports, *port)
	}
	return ports, rows.Err()
}

func (p *Postgres) ListPorts(ctx context.Context) ([]model.Port, error) {
	ports, err := p.listPorts(ctx, `SELECT `+portColumns+` FROM ports ORDER BY id`)
	return ports, wrapErr("list ports", err)
}

func (p *Postgres) ListPortsBySwitch(ctx context.Context, switchID int64) ([]model.Port, error) {
	ports, err := p.listPorts(ctx,
		`SELECT `+portColumns+` FROM ports WHERE switch_id = $1 ORDER BY id`, switchID)
	return ports, wrapErr("list ports by switch", err)
}

func (p *Postgres) DeletePort(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM ports WHERE id = $1`, id)
	if err != nil {
		return wrapErr("delete port", err)
	}
	return affected("delete port", res)
}

func (p *Postgres) UpdatePortStatus(ctx context.Context, id int64, status model.PortStatus) error {
	res, err := p.db.ExecContext(ctx, `UPDATE ports SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return wrapErr("update port status", err)
	}
	return affected("update port status", res)
}

func (p *Postgres) CreateUser(ctx context.Context, user *model.User) error {
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO users (username) VALUES ($1) RETURNING id`, user.Username,
	).Scan(&user.ID)
	return wrapErr("create user", err)
}

func (p *Postgres) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := p.db.QueryRowContext(ctx,
		`SELECT id, username FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Username)
	if err != nil {
		return nil, wrapErr("get user", err)
	}
	return &user, nil
}

func (p *Postgres) GetUserByName(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := p.db.QueryRowContext(ctx,
		`SELECT id, username FROM users WHERE username = $1`, username,
	).Scan(&user.ID, &user.Username)
	if err != nil {
		return nil, wrapErr("get user by name", err)
	}
	return &user, nil
}

func (p *Postgres) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, username FROM users ORDER BY username`)
	if err != nil {
		return nil, wrapErr("list users", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var user model.User
		if err := rows.Scan(&user.ID, &user.Username); err != nil {
			return nil, wrapErr("list users", err)
		}
		users = append(users, user)
	}
	return users, wrapErr("list users", rows.Err())
}

func (p *Postgres) CreateReservation(ctx context.Context, res *model.Reservation) error {
	if res.CreationDate.IsZero() {
		res.CreationDate = time.Now().UTC()
	}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO reservations (switch_id, user_id, creation_date, end_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		res.SwitchID, res.UserID, res.CreationDate, res.EndDate,
	).Scan(&res.ID)
	return wrapErr("create reservation", err)
}

const reservationColumns = `id, switch_id, user_id, creation_date, end_date`

func (p *Postgres) GetReservationBySwitch(ctx context.Context, switchID int64) (*model.Reservation, error) {
	var res model.Reservation
	err := p.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE switch_id = $1`, switchID,
	).Scan(&res.ID, &res.SwitchID, &res.UserID, &res.CreationDate, &res.EndDate)
	if err != nil {
		return nil, wrapErr("get reservation", err)
	}
	return &res, nil
}

func (p *Postgres) listReservations(ctx context.Context, query string, args ...interface{}) ([]model.Reservation, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []model.Reservation
	for rows.Next() {
		var res model.Reservation
		if err := rows.Scan(&res.ID, &res.SwitchID, &res.UserID, &res.CreationDate, &res.EndDate); err != nil {
			return nil, err
		}
		reservations = append(reservations, res)
	}
	return reservations, rows.Err()
}

func (p *Postgres) ListReservationsByUser(ctx context.Context, userID int64) ([]model.Reservation, error) {
	reservations, err := p.listReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE user_id = $1 ORDER BY id`, userID)
	return reservations, wrapErr("list reservations by user", err)
}

func (p *Postgres) ListExpiredReservations(ctx context.Context) ([]model.Reservation, error) {
	reservations, err := p.listReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE end_date IS NOT NULL AND end_date < now() ORDER BY end_date`)
	return reservations, wrapErr("list expired reservations", err)
}

func (p *Postgres) DeleteReservation(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return wrapErr("delete reservation", err)
	}
	return affected("delete reservation", res)
}

func (p *Postgres) CreateShare(ctx context.Context, share *model.TopologyShare) error {
	if share.CreatedAt.IsZero() {
		share.CreatedAt = time.Now().UTC()
	}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO topology_shares (owner_id, target_id, created_at)
		VALUES ($1, $2, $3)
		RETURNING id`,
		share.OwnerID, share.TargetID, share.CreatedAt,
	).Scan(&share.ID)
	return wrapErr("create share", err)
}

func (p *Postgres) DeleteShare(ctx context.Context, ownerID, targetID int64) error {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM topology_shares WHERE owner_id = $1 AND target_id = $2`, ownerID, targetID)
	if err != nil {
		return wrapErr("delete share", err)
	}
	return affected("delete share", res)
}

func (p *Postgres) listShares(ctx context.Context, query string, arg int64) ([]model.TopologyShare, error) {
	rows, err := p.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shares []model.TopologyShare
	for rows.Next() {
		var share model.TopologyShare
		if err := rows.Scan(&share.ID, &share.OwnerID, &share.TargetID, &share.CreatedAt); err != nil {
			return nil, err
		}
		shares = append(shares, share)
	}
	return shares, rows.Err()
}

func (p *Postgres) ListSharesToUser(ctx context.Context, targetID int64) ([]model.TopologyShare, error) {
	shares, err := p.listShares(ctx,
		`SELECT id, owner_id, target_id, created_at FROM topology_shares WHERE target_id = $1`, targetID)
	return shares, wrapErr("list shares to user", err)
}

func (p *Postgres) ListSharesByOwner(ctx context.Context, ownerID int64) ([]model.TopologyShare, error) {
	shares, err := p.listShares(ctx,
		`SELECT id, owner_id, target_id, created_at FROM topology_shares WHERE owner_id = $1`, ownerID)
	return shares, wrapErr("list shares by owner", err)
}

const linkColumns = `id, port_a, port_b, svlan, state, owner, created_at`

func scanLink(row interface{ Scan(...interface{}) error }) (*model.Link, error) {
	var link model.Link
	err := row.Scan(&link.ID, &link.PortA, &link.PortB, &link.SVLAN, &link.State, &link.Owner, &link.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (p *Postgres) GetLink(ctx context.Context, id int64) (*model.Link, error) {
	link, err := scanLink(p.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get link", err)
	}
	return link, nil
}

func (p *Postgres) GetLinkByPort(ctx context.Context, portID int64) (*model.Link, error) {
	link, err := scanLink(p.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE port_a = $1 OR port_b = $1`, portID))
	if err != nil {
		return nil, wrapErr("get link by port", err)
	}
	return link, nil
}

func (p *Postgres) ListLinks(ctx context.Context) ([]model.Link, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+linkColumns+` FROM links ORDER BY id`)
	if err != nil {
		return nil, wrapErr("list links", err)
	}
	defer rows.Close()

	var links []model.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, wrapErr("list links", err)
		}
		links = append(links, *link)
	}
	return links, wrapErr("list links", rows.Err())
}

func (p *Postgres) MarkLinkActive(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE links SET state = $2 WHERE id = $1`, id, model.LinkActive)
	if err != nil {
		return wrapErr("mark link active", err)
	}
	return affected("mark link active", res)
}

// AllocateLink claims the lowest free svlan at or above base and binds
// it to both ports. Serializable isolation plus the unique constraint
// on links.svlan means two racing allocations cannot both win the same
// value: one commits, the other fails with ErrDuplicate and the caller
// retries.
func (p *Postgres) AllocateLink(ctx context.Context, portA, portB int64, owner string, base int) (*model.Link, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, wrapErr("allocate link", err)
	}
	defer tx.Rollback()

	var svlan int
	err = tx.QueryRowContext(ctx, `
		SELECT s FROM generate_series($1::int, $1::int + 4093) AS s
		WHERE s NOT IN (SELECT svlan FROM links)
		ORDER BY s LIMIT 1`, base,
	).Scan(&svlan)
	if err != nil {
		return nil, wrapErr("allocate svlan", err)
	}

	link := &model.Link{
		PortA:     portA,
		PortB:     portB,
		SVLAN:     svlan,
		State:     model.LinkPending,
		Owner:     owner,
		CreatedAt: time.Now().UTC(),
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO links (port_a, port_b, svlan, state, owner, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		link.PortA, link.PortB, link.SVLAN, link.State, link.Owner, link.CreatedAt,
	).Scan(&link.ID)
	if err != nil {
		return nil, wrapErr("allocate link", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE ports SET svlan = $1, status = $2
		WHERE id IN ($3, $4) AND svlan IS NULL`,
		svlan, model.PortDown, portA, portB)
	if err != nil {
		return nil, wrapErr("allocate link", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, wrapErr("allocate link", err)
	}
	if n != 2 {
		return nil, util.NewConflictError(fmt.Sprintf("ports %d/%d", portA, portB), "already linked")
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapErr("allocate link", err)
	}
	return link, nil
}

func (p *Postgres) ReleaseLink(ctx context.Context, id int64) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return wrapErr("release link", err)
	}
	defer tx.Rollback()

	link, err := scanLink(tx.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE id = $1`, id))
	if err != nil {
		return wrapErr("release link", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE ports SET svlan = NULL, status = $1
		WHERE id IN ($2, $3)`,
		model.PortDown, link.PortA, link.PortB); err != nil {
		return wrapErr("release link", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE id = $1`, id); err != nil {
		return wrapErr("release link", err)
	}
	return wrapErr("release link", tx.Commit())
}

func affected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
