package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/absolute0github/band-contract-plugin/model"
	"github.com/absolute0github/band-contract-plugin/pkg/finance"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"

	pgUniqueViolation = "23505"
)

// SQLStore implements Store on database/sql for SQLite and PostgreSQL.
// Queries are written with ? placeholders and rebound for PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// OpenSQLite opens (and migrates) contracts.db inside dataDir.
func OpenSQLite(dataDir string) (*SQLStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	dbPath := filepath.Join(dataDir, "contracts.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite allows a single writer; one connection keeps transactions serialized.
	db.SetMaxOpenConns(1)
	return NewSQLStore(db, DialectSQLite)
}

// OpenPostgres connects through the pgx database/sql driver.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return NewSQLStore(db, DialectPostgres)
}

// NewSQLStore wraps an open database and applies the schema.
func NewSQLStore(db *sql.DB, dialect string) (*SQLStore, error) {
	if dialect != DialectSQLite && dialect != DialectPostgres {
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}
	s := &SQLStore{db: db, dialect: dialect}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	slog.Info("contract store initialized", "driver", dialect)
	return s, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) migrate() error {
	migrations := sqliteSchema
	if s.dialect == DialectPostgres {
		migrations = postgresSchema
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// rebind converts ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE"))
	}
	return false
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

var editableColumns = []string{
	"client_company_name", "contact_person_name", "street_address", "city", "state", "zip_code", "phone", "email",
	"performance_date", "event_name", "first_set_start_time", "number_of_sets", "set_length", "break_length", "load_in_time",
	"venue_name", "venue_address", "venue_city", "venue_state", "venue_zip", "venue_contact_person", "venue_phone", "venue_email",
	"inside_outside", "stage_available", "power_requirements", "loadin_location", "performance_location",
	"sound_system", "lights", "music_between_sets", "outside_production", "outside_production_notes", "preferred_genre",
	"accommodations_provided", "accommodation_cost_offset", "mileage_travel_fee", "early_loadin_required", "early_loadin_hours",
	"base_compensation", "deposit_percentage", "additional_compensation",
	"services_description", "attire", "audience_rating", "cover_letter_message", "additional_contract_notes",
}

func editableFields(c *model.Contract) []any {
	return []any{
		&c.ClientCompanyName, &c.ContactPersonName, &c.StreetAddress, &c.City, &c.State, &c.ZipCode, &c.Phone, &c.Email,
		&c.PerformanceDate, &c.EventName, &c.FirstSetStartTime, &c.NumberOfSets, &c.SetLength, &c.BreakLength, &c.LoadInTime,
		&c.VenueName, &c.VenueAddress, &c.VenueCity, &c.VenueState, &c.VenueZip, &c.VenueContactPerson, &c.VenuePhone, &c.VenueEmail,
		&c.InsideOutside, &c.StageAvailable, &c.PowerRequirements, &c.LoadinLocation, &c.PerformanceLocation,
		&c.SoundSystem, &c.Lights, &c.MusicBetweenSets, &c.OutsideProduction, &c.OutsideProductionNotes, &c.PreferredGenre,
		&c.AccommodationsProvided, &c.AccommodationCostOffset, &c.MileageTravelFee, &c.EarlyLoadinRequired, &c.EarlyLoadinHours,
		&c.BaseCompensation, &c.DepositPercentage, &c.AdditionalCompensation,
		&c.ServicesDescription, &c.Attire, &c.AudienceRating, &c.CoverLetterMessage, &c.AdditionalContractNotes,
	}
}

var stateColumns = []string{
	"status", "sent_at", "viewed_at",
	"deposit_paid", "deposit_payment_method", "deposit_paid_at", "deposit_amount_received", "deposit_payment_notes",
	"balance_paid", "balance_payment_method", "balance_paid_at", "balance_amount_received", "balance_payment_notes",
	"updated_at",
}

func stateValues(c *model.Contract) []any {
	return []any{
		string(c.Status), dbTimePtr(c.SentAt), dbTimePtr(c.ViewedAt),
		c.Deposit.Paid, string(c.Deposit.Method), dbTimePtr(c.Deposit.PaidAt), c.Deposit.AmountReceived, c.Deposit.Notes,
		c.Balance.Paid, string(c.Balance.Method), dbTimePtr(c.Balance.PaidAt), c.Balance.AmountReceived, c.Balance.Notes,
		dbTime(c.UpdatedAt),
	}
}

var selectColumns = strings.Join(append(append([]string{
	"id", "contract_number", "invoice_number", "access_token", "token_expires_at",
	"client_signature", "client_signed_at", "client_signed_ip", "client_signed_name",
	"cover_letter_path", "contract_path", "invoice_path", "signed_contract_path", "created_at",
}, editableColumns...), stateColumns...), ", ")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContract(row rowScanner) (*model.Contract, error) {
	c := &model.Contract{}
	var signedAt, sentAt, viewedAt, depositAt, balanceAt sql.NullTime
	dest := []any{
		&c.ID, &c.ContractNumber, &c.InvoiceNumber, &c.AccessToken, &c.TokenExpiresAt,
		&c.ClientSignature, &signedAt, &c.ClientSignedIP, &c.ClientSignedName,
		&c.Documents.CoverLetter, &c.Documents.Contract, &c.Documents.Invoice, &c.Documents.SignedContract, &c.CreatedAt,
	}
	dest = append(dest, editableFields(c)...)
	dest = append(dest,
		&c.Status, &sentAt, &viewedAt,
		&c.Deposit.Paid, &c.Deposit.Method, &depositAt, &c.Deposit.AmountReceived, &c.Deposit.Notes,
		&c.Balance.Paid, &c.Balance.Method, &balanceAt, &c.Balance.AmountReceived, &c.Balance.Notes,
		&c.UpdatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	c.ClientSignedAt = fromNullTime(signedAt)
	c.SentAt = fromNullTime(sentAt)
	c.ViewedAt = fromNullTime(viewedAt)
	c.Deposit.PaidAt = fromNullTime(depositAt)
	c.Balance.PaidAt = fromNullTime(balanceAt)
	c.TokenExpiresAt = c.TokenExpiresAt.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

// dbTime normalizes timestamps to UTC seconds so text comparisons in SQLite stay ordered.
func dbTime(t time.Time) time.Time { return t.UTC().Truncate(time.Second) }

func dbTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return dbTime(*t)
}

func fromNullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (s *SQLStore) Create(ctx context.Context, c *model.Contract, acts ...model.Activity) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		year := c.CreatedAt.UTC().Year()
		seq, err := s.nextSequence(ctx, tx, "contract_number", fmt.Sprintf("SM-%d-", year))
		if err != nil {
			return err
		}
		inv, err := s.nextSequence(ctx, tx, "invoice_number", fmt.Sprintf("INV-%d-", year))
		if err != nil {
			return err
		}
		c.ContractNumber = contractNumber(year, seq)
		c.InvoiceNumber = invoiceNumber(year, inv)

		cols := append([]string{"contract_number", "invoice_number", "access_token", "token_expires_at", "created_at"}, editableColumns...)
		cols = append(cols, stateColumns...)
		args := append([]any{c.ContractNumber, c.InvoiceNumber, c.AccessToken, dbTime(c.TokenExpiresAt), dbTime(c.CreatedAt)}, editableFields(c)...)
		args = append(args, stateValues(c)...)
		query := fmt.Sprintf("INSERT INTO contracts (%s) VALUES (%s) RETURNING id", strings.Join(cols, ", "), placeholders(len(cols)))
		if err := tx.QueryRowContext(ctx, s.rebind(query), derefArgs(args)...).Scan(&c.ID); err != nil {
			return err
		}
		if err := s.insertLineItems(ctx, tx, c.ID, c.LineItems); err != nil {
			return err
		}
		return s.insertActivities(ctx, tx, c.ID, acts)
	})
}

// derefArgs turns the field pointers of editableFields into plain values.
func derefArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case *string:
			out[i] = *v
		case *int:
			out[i] = *v
		case *float64:
			out[i] = *v
		case *bool:
			out[i] = *v
		default:
			out[i] = a
		}
	}
	return out
}

func (s *SQLStore) nextSequence(ctx context.Context, tx *sql.Tx, column, prefix string) (int, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(CAST(SUBSTR(%s, %d) AS INTEGER)), 0) FROM contracts WHERE %s LIKE ?",
		column, len(prefix)+1, column)
	var max int
	if err := tx.QueryRowContext(ctx, s.rebind(query), prefix+"%").Scan(&max); err != nil {
		return 0, fmt.Errorf("next %s: %w", column, err)
	}
	return max + 1, nil
}

func (s *SQLStore) insertLineItems(ctx context.Context, tx *sql.Tx, id int64, items []model.LineItem) error {
	query := s.rebind("INSERT INTO contract_line_items (contract_id, description, quantity, unit_price, sort_order) VALUES (?, ?, ?, ?, ?)")
	for _, it := range items {
		if _, err := tx.ExecContext(ctx, query, id, it.Description, it.Quantity, it.UnitPrice, it.SortOrder); err != nil {
			return fmt.Errorf("insert line item: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) insertActivities(ctx context.Context, tx *sql.Tx, id int64, acts []model.Activity) error {
	query := s.rebind("INSERT INTO contract_activity_log (contract_id, action, description, actor, ip_address, user_agent, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	for _, a := range acts {
		if _, err := tx.ExecContext(ctx, query, id, string(a.Action), a.Description, a.Actor, a.IPAddress, a.UserAgent, dbTime(a.CreatedAt)); err != nil {
			return fmt.Errorf("insert activity: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id int64) (*model.Contract, error) {
	return s.getOne(ctx, "id = ?", id)
}

func (s *SQLStore) GetByToken(ctx context.Context, token string) (*model.Contract, error) {
	return s.getOne(ctx, "access_token = ?", token)
}

func (s *SQLStore) GetByNumber(ctx context.Context, number string) (*model.Contract, error) {
	return s.getOne(ctx, "contract_number = ?", number)
}

func (s *SQLStore) getOne(ctx context.Context, where string, arg any) (*model.Contract, error) {
	query := s.rebind("SELECT " + selectColumns + " FROM contracts WHERE " + where)
	c, err := scanContract(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contractNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("get contract: %w", err)
	}
	items, err := s.lineItems(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.LineItems = items
	return c, nil
}

func (s *SQLStore) lineItems(ctx context.Context, id int64) ([]model.LineItem, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind("SELECT description, quantity, unit_price, sort_order FROM contract_line_items WHERE contract_id = ? ORDER BY sort_order, id"), id)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	defer rows.Close()

	items := []model.LineItem{}
	for rows.Next() {
		var it model.LineItem
		if err := rows.Scan(&it.Description, &it.Quantity, &it.UnitPrice, &it.SortOrder); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// noRowsOutcome distinguishes a missing contract from a failed condition after a zero-row update.
func (s *SQLStore) noRowsOutcome(ctx context.Context, tx *sql.Tx, id int64) error {
	var one int
	err := tx.QueryRowContext(ctx, s.rebind("SELECT 1 FROM contracts WHERE id = ?"), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return contractNotFound()
	}
	if err != nil {
		return err
	}
	return ErrStale
}

func (s *SQLStore) Update(ctx context.Context, c *model.Contract, expected model.Status, replaceItems bool, acts ...model.Activity) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		cols := append(append([]string{}, editableColumns...), stateColumns...)
		sets := make([]string, len(cols))
		for i, col := range cols {
			sets[i] = col + " = ?"
		}
		args := append(derefArgs(editableFields(c)), stateValues(c)...)
		args = append(args, c.ID, string(expected))
		query := fmt.Sprintf("UPDATE contracts SET %s WHERE id = ? AND status = ?", strings.Join(sets, ", "))

		res, err := tx.ExecContext(ctx, s.rebind(query), args...)
		if err != nil {
			return fmt.Errorf("update contract: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return s.noRowsOutcome(ctx, tx, c.ID)
		}
		if replaceItems {
			if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM contract_line_items WHERE contract_id = ?"), c.ID); err != nil {
				return fmt.Errorf("clear line items: %w", err)
			}
			if err := s.insertLineItems(ctx, tx, c.ID, c.LineItems); err != nil {
				return err
			}
		}
		return s.insertActivities(ctx, tx, c.ID, acts)
	})
}

func (s *SQLStore) MarkViewed(ctx context.Context, id int64, at time.Time, act model.Activity) (bool, error) {
	changed := false
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			s.rebind("UPDATE contracts SET status = ?, viewed_at = ?, updated_at = ? WHERE id = ? AND status = ? AND viewed_at IS NULL"),
			string(model.StatusViewed), dbTime(at), dbTime(at), id, string(model.StatusSent))
		if err != nil {
			return fmt.Errorf("mark viewed: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if err := s.noRowsOutcome(ctx, tx, id); !errors.Is(err, ErrStale) {
				return err
			}
			return nil
		}
		changed = true
		return s.insertActivities(ctx, tx, id, []model.Activity{act})
	})
	return changed, err
}

func (s *SQLStore) RecordSignature(ctx context.Context, id int64, sig Signature, act model.Activity) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(`UPDATE contracts
			SET client_signature = ?, client_signed_at = ?, client_signed_ip = ?, client_signed_name = ?, status = ?, updated_at = ?
			WHERE id = ? AND access_token = ? AND token_expires_at > ? AND status IN (?, ?)`),
			sig.Image, dbTime(sig.SignedAt), sig.IP, sig.Name, string(model.StatusSigned), dbTime(sig.SignedAt),
			id, sig.Token, dbTime(sig.SignedAt), string(model.StatusSent), string(model.StatusViewed))
		if err != nil {
			return fmt.Errorf("record signature: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return s.noRowsOutcome(ctx, tx, id)
		}
		return s.insertActivities(ctx, tx, id, []model.Activity{act})
	})
}

func (s *SQLStore) UpdateToken(ctx context.Context, id int64, token string, expiresAt time.Time, act model.Activity) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			s.rebind("UPDATE contracts SET access_token = ?, token_expires_at = ?, updated_at = ? WHERE id = ?"),
			token, dbTime(expiresAt), dbTime(act.CreatedAt), id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return contractNotFound()
		}
		return s.insertActivities(ctx, tx, id, []model.Activity{act})
	})
}

func (s *SQLStore) SetDocuments(ctx context.Context, id int64, docs model.DocumentPaths) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE contracts SET
		cover_letter_path = CASE WHEN ? = '' THEN cover_letter_path ELSE ? END,
		contract_path = CASE WHEN ? = '' THEN contract_path ELSE ? END,
		invoice_path = CASE WHEN ? = '' THEN invoice_path ELSE ? END,
		signed_contract_path = CASE WHEN ? = '' THEN signed_contract_path ELSE ? END
		WHERE id = ?`),
		docs.CoverLetter, docs.CoverLetter, docs.Contract, docs.Contract,
		docs.Invoice, docs.Invoice, docs.SignedContract, docs.SignedContract, id)
	if err != nil {
		return fmt.Errorf("set documents: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return contractNotFound()
	}
	return nil
}

func (s *SQLStore) RecordPayment(ctx context.Context, id int64, typ model.PaymentType, p model.Payment, act model.Activity) error {
	prefix := "deposit"
	if typ == model.PaymentBalance {
		prefix = "balance"
	}
	query := fmt.Sprintf(`UPDATE contracts SET %[1]s_paid = ?, %[1]s_payment_method = ?, %[1]s_paid_at = ?,
		%[1]s_amount_received = ?, %[1]s_payment_notes = ?, updated_at = ? WHERE id = ? AND status = ?`, prefix)
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(query),
			p.Paid, string(p.Method), dbTimePtr(p.PaidAt), p.AmountReceived, p.Notes, dbTime(act.CreatedAt),
			id, string(model.StatusSigned))
		if err != nil {
			return fmt.Errorf("record payment: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return s.noRowsOutcome(ctx, tx, id)
		}
		return s.insertActivities(ctx, tx, id, []model.Activity{act})
	})
}

func (s *SQLStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM contracts WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete contract: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return contractNotFound()
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *SQLStore) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	q.Normalize()

	var where []string
	var args []any
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}
	if q.Search != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(q.Search)) + "%"
		var ors []string
		for _, col := range []string{"client_company_name", "contact_person_name", "event_name", "contract_number", "email"} {
			ors = append(ors, "LOWER("+col+`) LIKE ? ESCAPE '\'`)
			args = append(args, like)
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	if q.DateFrom != "" {
		where = append(where, "performance_date >= ?")
		args = append(args, q.DateFrom)
	}
	if q.DateTo != "" {
		where = append(where, "performance_date <= ?")
		args = append(args, q.DateTo)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM contracts"+clause), args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count contracts: %w", err)
	}

	// OrderBy and Order are allow-listed by Normalize.
	query := fmt.Sprintf("SELECT %s FROM contracts%s ORDER BY %s %s, id DESC LIMIT ? OFFSET ?", selectColumns, clause, q.OrderBy, q.Order)
	rows, err := s.db.QueryContext(ctx, s.rebind(query), append(args, q.PerPage, q.offset())...)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	var contracts []*model.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, c := range contracts {
		if c.LineItems, err = s.lineItems(ctx, c.ID); err != nil {
			return nil, err
		}
	}
	return newListResult(q, total, contracts), nil
}

func (s *SQLStore) Statistics(ctx context.Context, now time.Time) (*Stats, error) {
	monthStart, from, to := statsWindow(now)
	st := newStats()

	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM contracts GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	for rows.Next() {
		var status model.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		st.ByStatus[status] = n
		st.Total += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM contracts WHERE client_signed_at >= ?"),
		dbTime(monthStart)).Scan(&st.SignedThisMonth); err != nil {
		return nil, fmt.Errorf("signed this month: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM contracts WHERE performance_date BETWEEN ? AND ? AND status IN (?, ?, ?)"),
		from, to, string(model.StatusSent), string(model.StatusViewed), string(model.StatusSigned)).Scan(&st.UpcomingEvents); err != nil {
		return nil, fmt.Errorf("upcoming events: %w", err)
	}

	total := "COALESCE(SUM(base_compensation + mileage_travel_fee + CASE WHEN early_loadin_required THEN early_loadin_hours * ? ELSE 0 END), 0)"
	if err := s.db.QueryRowContext(ctx, s.rebind("SELECT "+total+" FROM contracts WHERE status = ?"),
		finance.EarlyLoadinRate, string(model.StatusSigned)).Scan(&st.TotalRevenue); err != nil {
		return nil, fmt.Errorf("total revenue: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, s.rebind("SELECT "+total+" FROM contracts WHERE status IN (?, ?)"),
		finance.EarlyLoadinRate, string(model.StatusSent), string(model.StatusViewed)).Scan(&st.PendingRevenue); err != nil {
		return nil, fmt.Errorf("pending revenue: %w", err)
	}
	return st, nil
}

func (s *SQLStore) Activity(ctx context.Context, id int64, limit int) ([]model.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, contract_id, action, description, actor, ip_address, user_agent, created_at
		FROM contract_activity_log WHERE contract_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`), id, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	out := []model.Activity{}
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.ID, &a.ContractID, &a.Action, &a.Description, &a.Actor, &a.IPAddress, &a.UserAgent, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}
