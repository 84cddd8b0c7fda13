package invoices

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/invoicedesk/invoicedesk/internal/billing"
	"github.com/invoicedesk/invoicedesk/internal/catalog"
	"github.com/invoicedesk/invoicedesk/internal/platform/db"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PGSource serves invoices, products and clients from a Postgres mirror of the backend.
type PGSource struct {
	db   dbtx
	pool *pgxpool.Pool
}

var _ Source = (*PGSource)(nil)

// NewPGSource constructs a Postgres-backed source.
func NewPGSource(pool *pgxpool.Pool) *PGSource {
	return &PGSource{db: pool, pool: pool}
}

// Migrate creates the tables when they do not exist yet.
func (s *PGSource) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("invoices: migrate: %w", err)
	}
	return nil
}

func (s *PGSource) withTx(ctx context.Context, fn func(*PGSource) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&PGSource{db: tx, pool: s.pool})
	})
}

const invoiceColumns = `id, number, status, currency, client_id, client_name, created_at, due_at,
	applied_taxes, subtotal, total_tax_amount, total_due, discount`

// GetInvoice loads an invoice with its items.
func (s *PGSource) GetInvoice(ctx context.Context, id string) (billing.Invoice, error) {
	row := s.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return billing.Invoice{}, fmt.Errorf("invoice %s: %w", id, shared.ErrNotFound)
		}
		return billing.Invoice{}, err
	}
	items, err := s.loadItems(ctx, []string{id})
	if err != nil {
		return billing.Invoice{}, err
	}
	inv.Items = items[id]
	return inv, nil
}

// ListInvoices returns one page of invoices ordered by due date.
func (s *PGSource) ListInvoices(ctx context.Context, filter ListFilter) (Page, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("UPPER(status) = $%d", argPos))
		args = append(args, string(filter.Status))
		argPos++
	}
	if filter.ClientID != "" {
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", argPos))
		args = append(args, filter.ClientID)
		argPos++
	}
	if !filter.DueBefore.IsZero() {
		conditions = append(conditions, fmt.Sprintf("due_at < $%d", argPos))
		args = append(args, filter.DueBefore)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM invoices "+whereClause, args...).Scan(&total); err != nil {
		return Page{}, err
	}

	query := fmt.Sprintf(`SELECT %s FROM invoices %s ORDER BY due_at, number`, invoiceColumns, whereClause)
	if filter.Limit > 0 {
		page := shared.NewPagination(filter.Page, filter.Limit, total)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
		args = append(args, page.PerPage, page.Offset())
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()

	var out []billing.Invoice
	var ids []string
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return Page{}, err
		}
		out = append(out, inv)
		ids = append(ids, inv.ID)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}

	items, err := s.loadItems(ctx, ids)
	if err != nil {
		return Page{}, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return Page{Invoices: out, Total: total}, nil
}

// SaveInvoice upserts the header and replaces every item in one transaction.
func (s *PGSource) SaveInvoice(ctx context.Context, inv billing.Invoice) (billing.Invoice, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	taxes, err := json.Marshal(nonNil(inv.AppliedTaxes))
	if err != nil {
		return billing.Invoice{}, err
	}

	err = s.withTx(ctx, func(tx *PGSource) error {
		_, err := tx.db.Exec(ctx, `
			INSERT INTO invoices (`+invoiceColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO UPDATE SET
				number = EXCLUDED.number, status = EXCLUDED.status, currency = EXCLUDED.currency,
				client_id = EXCLUDED.client_id, client_name = EXCLUDED.client_name,
				due_at = EXCLUDED.due_at, applied_taxes = EXCLUDED.applied_taxes,
				subtotal = EXCLUDED.subtotal, total_tax_amount = EXCLUDED.total_tax_amount,
				total_due = EXCLUDED.total_due, discount = EXCLUDED.discount`,
			inv.ID, inv.Number, inv.Status, inv.Currency, inv.ClientID, inv.ClientName,
			inv.CreatedAt, inv.DueAt, taxes, inv.Subtotal, inv.TotalTaxAmount, inv.TotalDue, inv.Discount,
		)
		if err != nil {
			return err
		}
		if _, err := tx.db.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, inv.ID); err != nil {
			return err
		}
		for pos, item := range inv.Items {
			itemTaxes, err := json.Marshal(nonNil(item.Taxes))
			if err != nil {
				return err
			}
			_, err = tx.db.Exec(ctx, `
				INSERT INTO invoice_items (invoice_id, position, id, name, description, product_id,
					quantity, rate, amount, taxes, total_tax_amount, amount_with_tax)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				inv.ID, pos, item.ID, item.Name, item.Description, item.ProductID,
				item.Quantity, item.Rate, item.Amount, itemTaxes, item.TotalTaxAmount, item.AmountWithTax,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return billing.Invoice{}, mapWriteError("save invoice", err)
	}
	return inv.Clone(), nil
}

// UpdateStatus sets the lifecycle status of an invoice.
func (s *PGSource) UpdateStatus(ctx context.Context, id string, status billing.Status) error {
	tag, err := s.db.Exec(ctx, `UPDATE invoices SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoice %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

// ListProducts returns the catalog ordered by name.
func (s *PGSource) ListProducts(ctx context.Context) ([]billing.Product, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, category, rate, taxes FROM products ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Product
	for rows.Next() {
		var p billing.Product
		var taxes []byte
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Rate, &taxes); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(taxes, &p.Taxes); err != nil {
			return nil, fmt.Errorf("product %s taxes: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveProduct upserts a product, assigning an id to new ones.
func (s *PGSource) SaveProduct(ctx context.Context, p billing.Product) (billing.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	taxes, err := json.Marshal(nonNil(p.Taxes))
	if err != nil {
		return billing.Product{}, err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO products (id, name, category, rate, taxes) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, category = EXCLUDED.category, rate = EXCLUDED.rate, taxes = EXCLUDED.taxes`,
		p.ID, p.Name, p.Category, p.Rate, taxes,
	)
	if err != nil {
		return billing.Product{}, mapWriteError("save product", err)
	}
	return p, nil
}

// ListClients returns every client ordered by name.
func (s *PGSource) ListClients(ctx context.Context) ([]catalog.Client, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, email, phone, address FROM clients ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Client
	for rows.Next() {
		var c catalog.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PGSource) loadItems(ctx context.Context, ids []string) (map[string][]billing.LineItem, error) {
	out := make(map[string][]billing.LineItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT invoice_id, id, name, description, product_id, quantity, rate, amount,
		       taxes, total_tax_amount, amount_with_tax
		FROM invoice_items
		WHERE invoice_id = ANY($1)
		ORDER BY invoice_id, position`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var invoiceID string
		var item billing.LineItem
		var taxes []byte
		err := rows.Scan(&invoiceID, &item.ID, &item.Name, &item.Description, &item.ProductID,
			&item.Quantity, &item.Rate, &item.Amount, &taxes, &item.TotalTaxAmount, &item.AmountWithTax)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(taxes, &item.Taxes); err != nil {
			return nil, fmt.Errorf("item %s taxes: %w", item.ID, err)
		}
		out[invoiceID] = append(out[invoiceID], item)
	}
	return out, rows.Err()
}

func scanInvoice(row pgx.Row) (billing.Invoice, error) {
	var inv billing.Invoice
	var taxes []byte
	var discount decimal.NullDecimal
	err := row.Scan(&inv.ID, &inv.Number, &inv.Status, &inv.Currency, &inv.ClientID, &inv.ClientName,
		&inv.CreatedAt, &inv.DueAt, &taxes, &inv.Subtotal, &inv.TotalTaxAmount, &inv.TotalDue, &discount)
	if err != nil {
		return billing.Invoice{}, err
	}
	if err := json.Unmarshal(taxes, &inv.AppliedTaxes); err != nil {
		return billing.Invoice{}, fmt.Errorf("invoice %s taxes: %w", inv.ID, err)
	}
	inv.Discount = discount
	return inv, nil
}

func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w: %s", op, shared.ErrConflict, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
