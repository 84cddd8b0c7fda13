package invoices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/invoicedesk/invoicedesk/internal/billing"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

const draftKeyPrefix = "draft:"

type draftPayload struct {
	InvoiceID string          `json:"invoiceId"`
	Mode      billing.TaxMode `json:"mode"`
	Committed billing.Invoice `json:"committed"`
	Working   billing.Invoice `json:"working"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// DraftStore keeps open edit sessions in redis so any instance can serve them.
type DraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDraftStore constructs the store. Drafts idle longer than ttl expire.
func NewDraftStore(client *redis.Client, ttl time.Duration) *DraftStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DraftStore{client: client, ttl: ttl}
}

// Create stores a new draft and returns its id.
func (s *DraftStore) Create(ctx context.Context, draft *billing.Draft) (string, error) {
	id := uuid.NewString()
	if err := s.Save(ctx, id, draft); err != nil {
		return "", err
	}
	return id, nil
}

// Save overwrites the draft and refreshes its expiry.
func (s *DraftStore) Save(ctx context.Context, id string, draft *billing.Draft) error {
	committed := draft.Committed()
	payload := draftPayload{
		InvoiceID: committed.ID,
		Mode:      draft.Mode(),
		Committed: committed,
		Working:   draft.Working(),
		UpdatedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(id), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save draft %s: %w", id, err)
	}
	return nil
}

// Load restores a draft. Unknown or expired ids return shared.ErrNotFound.
func (s *DraftStore) Load(ctx context.Context, id string) (*billing.Draft, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("draft %s: %w", id, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("load draft %s: %w", id, err)
	}
	var payload draftPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", id, err)
	}
	return billing.RestoreDraft(payload.Committed, payload.Working, payload.Mode), nil
}

// Delete drops the draft. Deleting a missing draft is not an error.
func (s *DraftStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *DraftStore) key(id string) string {
	return draftKeyPrefix + id
}
