// Package invoices orchestrates fetching, computing, editing and saving invoices.
package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/invoicedesk/invoicedesk/internal/billing"
	"github.com/invoicedesk/invoicedesk/internal/catalog"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

// DraftStorage persists open drafts between requests.
type DraftStorage interface {
	Create(ctx context.Context, draft *billing.Draft) (string, error)
	Save(ctx context.Context, id string, draft *billing.Draft) error
	Load(ctx context.Context, id string) (*billing.Draft, error)
	Delete(ctx context.Context, id string) error
}

// Recorder observes pipeline runs.
type Recorder interface {
	ObservePipeline(op string, err error)
}

type noopRecorder struct{}

func (noopRecorder) ObservePipeline(string, error) {}

// Service handles invoice use cases.
type Service struct {
	source    Source
	catalog   *catalog.Service
	drafts    DraftStorage
	formatter *billing.Formatter
	mode      billing.TaxMode
	recorder  Recorder
	logger    *slog.Logger
}

// Options configures a Service.
type Options struct {
	Formatter *billing.Formatter
	TaxMode   billing.TaxMode
	Recorder  Recorder
	Logger    *slog.Logger
}

// NewService builds Service instance.
func NewService(source Source, products *catalog.Service, drafts DraftStorage, opts Options) *Service {
	if opts.Formatter == nil {
		opts.Formatter = billing.NewFormatter(billing.DefaultFormatConfig)
	}
	if opts.TaxMode == "" {
		opts.TaxMode = billing.TaxModeInvoice
	}
	if opts.Recorder == nil {
		opts.Recorder = noopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		source:    source,
		catalog:   products,
		drafts:    drafts,
		formatter: opts.Formatter,
		mode:      opts.TaxMode,
		recorder:  opts.Recorder,
		logger:    opts.Logger,
	}
}

// View fetches an invoice and derives everything its page shows.
func (s *Service) View(ctx context.Context, id string) (view InvoiceView, err error) {
	defer func() { s.recorder.ObservePipeline("view", err) }()

	inv, err := s.source.GetInvoice(ctx, id)
	if err != nil {
		return InvoiceView{}, err
	}
	return s.buildView(inv, s.mode)
}

// List returns one page of invoice summaries.
func (s *Service) List(ctx context.Context, filter ListFilter) (ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	page, err := s.source.ListInvoices(ctx, filter)
	s.recorder.ObservePipeline("list", err)
	if err != nil {
		return ListResult{}, err
	}

	out := make([]Summary, 0, len(page.Invoices))
	for _, inv := range page.Invoices {
		total := inv.TotalDue
		if summary, err := billing.ComputeInvoice(inv, s.mode); err == nil {
			total = summary.Totals.TotalDue
		} else {
			s.logger.Warn("compute invoice for list", slog.String("invoice_id", inv.ID), slog.Any("error", err))
		}
		p := billing.Present(inv.Status, total)
		out = append(out, Summary{
			ID:             inv.ID,
			Number:         inv.Number,
			ClientName:     inv.ClientName,
			Status:         p.Status,
			Watermark:      p.Watermark,
			WatermarkColor: p.WatermarkColor,
			Total:          s.formatter.FormatWhole(total, inv.Currency),
			BalanceDue:     s.formatter.FormatWhole(p.BalanceDue, inv.Currency),
			DueOn:          billing.FormatDate(inv.DueAt),
		})
	}
	return ListResult{
		Invoices:   out,
		Pagination: shared.NewPagination(filter.Page, filter.Limit, page.Total),
	}, nil
}

// Quote prices ad-hoc lines. Nothing is stored.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (view InvoiceView, err error) {
	defer func() { s.recorder.ObservePipeline("quote", err) }()

	if req.Discount.Valid && req.Discount.Decimal.IsNegative() {
		return InvoiceView{}, &billing.InvalidInputError{Field: "discount", Reason: "must not be negative"}
	}
	mode := s.mode
	if req.Mode != "" {
		mode = req.Mode
	}
	inv := billing.Invoice{
		Status:   string(billing.StatusPending),
		Currency: req.Currency,
		Discount: req.Discount,
	}
	for i, line := range req.Items {
		item, err := billing.NewLineItem(fmt.Sprintf("line-%d", i+1), line.Name, line.Quantity, line.Rate, line.Taxes)
		if err != nil {
			return InvoiceView{}, fmt.Errorf("items[%d]: %w", i, err)
		}
		inv.Items = append(inv.Items, item)
	}
	inv.AppliedTaxes, err = billing.ApplyInvoiceTaxes(decimal.Zero, req.Taxes)
	if err != nil {
		return InvoiceView{}, err
	}
	return s.buildView(inv, mode)
}

// OpenDraft starts an edit session on an invoice and returns the products for the item picker.
func (s *Service) OpenDraft(ctx context.Context, invoiceID string) (DraftView, error) {
	var (
		inv      billing.Invoice
		products []billing.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		inv, err = s.source.GetInvoice(gctx, invoiceID)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = s.catalog.Products(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return DraftView{}, err
	}

	draft, err := billing.NewDraft(inv, s.mode)
	if err != nil {
		return DraftView{}, err
	}
	id, err := s.drafts.Create(ctx, draft)
	if err != nil {
		return DraftView{}, err
	}
	s.logger.Info("draft opened", slog.String("draft_id", id), slog.String("invoice_id", invoiceID))

	view, err := s.draftView(id, draft)
	if err != nil {
		return DraftView{}, err
	}
	view.Products = products
	return view, nil
}

// Draft returns the current state of a draft.
func (s *Service) Draft(ctx context.Context, draftID string) (DraftView, error) {
	draft, err := s.drafts.Load(ctx, draftID)
	if err != nil {
		return DraftView{}, err
	}
	return s.draftView(draftID, draft)
}

// UpdateDraft applies edits in order and stores the result. If any edit is rejected nothing
// is stored.
func (s *Service) UpdateDraft(ctx context.Context, draftID string, edits ...DraftEdit) (DraftView, error) {
	draft, err := s.drafts.Load(ctx, draftID)
	if err != nil {
		return DraftView{}, err
	}
	for _, edit := range edits {
		if err := s.apply(ctx, draft, edit); err != nil {
			return DraftView{}, err
		}
	}
	if err := s.drafts.Save(ctx, draftID, draft); err != nil {
		return DraftView{}, err
	}
	return s.draftView(draftID, draft)
}

// CommitDraft saves the working copy through the source. The draft is dropped only after the
// save succeeds; a failed save leaves it available for another attempt.
func (s *Service) CommitDraft(ctx context.Context, draftID string) (view InvoiceView, err error) {
	defer func() { s.recorder.ObservePipeline("commit", err) }()

	draft, err := s.drafts.Load(ctx, draftID)
	if err != nil {
		return InvoiceView{}, err
	}
	saved, err := s.source.SaveInvoice(ctx, draft.Working())
	if err != nil {
		s.logger.Warn("commit draft", slog.String("draft_id", draftID), slog.Any("error", err))
		return InvoiceView{}, err
	}
	draft.Commit(saved)
	if err := s.drafts.Delete(ctx, draftID); err != nil {
		s.logger.Warn("delete committed draft", slog.String("draft_id", draftID), slog.Any("error", err))
	}
	s.logger.Info("draft committed", slog.String("draft_id", draftID), slog.String("invoice_id", saved.ID))
	return s.buildView(draft.Committed(), draft.Mode())
}

// DiscardDraft drops a draft and every edit in it.
func (s *Service) DiscardDraft(ctx context.Context, draftID string) error {
	if _, err := s.drafts.Load(ctx, draftID); err != nil {
		return err
	}
	return s.drafts.Delete(ctx, draftID)
}

// overdueBatch is the page size MarkOverdue lists with when the filter sets none.
const overdueBatch = 100

// MarkOverdue flips every UNPAID invoice due before the cutoff in filter to OVERDUE and
// returns how many changed. One failed update does not stop the rest.
//
// Flipped invoices leave the UNPAID result set, so the first page is listed again until
// it stops yielding work. Pages holding only failed rows are stepped over.
func (s *Service) MarkOverdue(ctx context.Context, filter ListFilter) (int, error) {
	filter.Status = billing.StatusUnpaid
	if filter.DueBefore.IsZero() {
		return 0, errors.New("invoices: overdue cutoff required")
	}
	filter.Page = 1
	if filter.Limit <= 0 {
		filter.Limit = overdueBatch
	}
	var (
		changed int
		errs    []error
		visited = map[string]bool{}
	)
	for {
		if err := ctx.Err(); err != nil {
			return changed, errors.Join(append(errs, err)...)
		}
		page, err := s.source.ListInvoices(ctx, filter)
		if err != nil {
			return changed, errors.Join(append(errs, err)...)
		}
		if len(page.Invoices) == 0 {
			break
		}
		progressed := false
		for _, inv := range page.Invoices {
			if visited[inv.ID] || billing.ParseStatus(inv.Status) != billing.StatusUnpaid || !inv.DueAt.Before(filter.DueBefore) {
				continue
			}
			visited[inv.ID] = true
			if err := s.source.UpdateStatus(ctx, inv.ID, billing.StatusOverdue); err != nil {
				errs = append(errs, fmt.Errorf("invoice %s: %w", inv.ID, err))
				continue
			}
			changed++
			progressed = true
		}
		if !progressed {
			if filter.Page*filter.Limit >= page.Total {
				break
			}
			filter.Page++
		}
	}
	return changed, errors.Join(errs...)
}

func (s *Service) apply(ctx context.Context, draft *billing.Draft, edit DraftEdit) error {
	switch edit.Kind {
	case EditAddItem:
		_, err := draft.AddItem(itemID(edit.ItemID), edit.Name, edit.Quantity, edit.Rate, edit.Taxes)
		return err
	case EditAddProduct:
		product, err := s.catalog.Product(ctx, edit.ProductID)
		if err != nil {
			return err
		}
		_, err = draft.AddProduct(itemID(edit.ItemID), product, edit.Quantity)
		return err
	case EditSetQuantity:
		return draft.SetQuantity(edit.ItemID, edit.Quantity)
	case EditSetRate:
		return draft.SetRate(edit.ItemID, edit.Rate)
	case EditRemoveItem:
		return draft.RemoveItem(edit.ItemID)
	case EditSetDiscount:
		return draft.SetDiscount(edit.Discount)
	case EditSetTaxes:
		return draft.SetInvoiceTaxes(edit.Taxes)
	default:
		return fmt.Errorf("%w: unknown edit %q", shared.ErrValidation, edit.Kind)
	}
}

func (s *Service) draftView(id string, draft *billing.Draft) (DraftView, error) {
	view, err := s.buildView(draft.Working(), draft.Mode())
	if err != nil {
		return DraftView{}, err
	}
	return DraftView{ID: id, Dirty: draft.Dirty(), View: view}, nil
}

func (s *Service) buildView(inv billing.Invoice, mode billing.TaxMode) (InvoiceView, error) {
	summary, err := billing.ComputeInvoice(inv, mode)
	if err != nil {
		return InvoiceView{}, err
	}
	billing.ApplySummary(&inv, summary)
	totals := summary.Totals
	presentation := billing.Present(inv.Status, totals.TotalDue)
	money := func(v decimal.Decimal) string { return s.formatter.Format(v, inv.Currency) }

	view := InvoiceView{
		Invoice:      inv,
		Totals:       totals,
		Presentation: presentation,
		Symbol:       s.formatter.Symbol(inv.Currency),
		CreatedOn:    billing.FormatDate(inv.CreatedAt),
		DueOn:        billing.FormatDate(inv.DueAt),
		Amounts: Amounts{
			Subtotal:   money(totals.Subtotal),
			Tax:        money(totals.TotalTaxAmount),
			TotalDue:   money(totals.TotalDue),
			BalanceDue: money(presentation.BalanceDue),
		},
	}
	if !totals.Discount.IsZero() {
		view.Amounts.Discount = money(totals.Discount)
	}
	for _, item := range inv.Items {
		line := LineView{
			ID:            item.ID,
			Name:          item.Name,
			Quantity:      item.Quantity,
			Rate:          money(item.Rate),
			Amount:        money(item.Amount),
			TaxAmount:     money(item.TotalTaxAmount),
			AmountWithTax: money(item.AmountWithTax),
		}
		if item.Description != nil {
			line.Description = strings.TrimSpace(*item.Description)
		}
		for _, tax := range item.Taxes {
			line.TaxNames = append(line.TaxNames, tax.Name)
		}
		view.Lines = append(view.Lines, line)
	}
	for _, tax := range summary.Taxes {
		view.Taxes = append(view.Taxes, TaxView{
			Name:   tax.Name,
			Rate:   tax.Rate.String() + "%",
			Base:   money(tax.Base),
			Amount: money(tax.Amount),
		})
	}
	return view, nil
}

func itemID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
