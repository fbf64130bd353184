package repository

import (
	"context"
	"errors"

	"engagement-service/internal/domain"
	"engagement-service/pkg/id"
	"engagement-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgMailbox struct {
	db *pgxpool.Pool
}

func NewMailbox(db *pgxpool.Pool) Mailbox {
	return &pgMailbox{db: db}
}

const notificationColumns = `
	id, request_id, owner_category, owner_id, note_type,
	from_id, from_category, payload, read, created_at`

func (p *pgMailbox) Append(ctx context.Context, owner domain.Identity, n *domain.Notification) (*domain.Notification, error) {
	if n.RequestID == "" {
		n.RequestID = id.GenerateULID("req")
	}
	// Resolve a payload-embedded sender once at ingestion so the row carries
	// the structured columns.
	if n.From == nil {
		n.From = domain.ResolveSender(n.Payload)
	}

	query := `
		INSERT INTO notifications (
			request_id, owner_category, owner_id, note_type,
			from_id, from_category, payload, read
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + notificationColumns

	var fromID, fromCategory *string
	if n.From != nil {
		fromID = &n.From.ID
		cat := string(n.From.Category)
		fromCategory = &cat
	}

	row := p.db.QueryRow(ctx, query,
		n.RequestID,
		owner.Category,
		owner.ID,
		n.Type,
		fromID,
		fromCategory,
		n.Payload,
		n.Read,
	)

	return scanNotification(row)
}

func (p *pgMailbox) Get(ctx context.Context, owner domain.Identity, id int64) (*domain.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE id = $1 AND owner_category = $2 AND owner_id = $3`

	n, err := scanNotification(p.db.QueryRow(ctx, query, id, owner.Category, owner.ID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

func (p *pgMailbox) Remove(ctx context.Context, owner domain.Identity, id int64) error {
	query := `
		DELETE FROM notifications
		WHERE id = $1 AND owner_category = $2 AND owner_id = $3`

	ct, err := p.db.Exec(ctx, query, id, owner.Category, owner.ID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (p *pgMailbox) Mutate(ctx context.Context, owner domain.Identity, id int64, patch map[string]any) error {
	// Shallow jsonb merge; patched keys win.
	query := `
		UPDATE notifications
		SET payload = COALESCE(payload, '{}'::jsonb) || $4::jsonb
		WHERE id = $1 AND owner_category = $2 AND owner_id = $3`

	ct, err := p.db.Exec(ctx, query, id, owner.Category, owner.ID, patch)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (p *pgMailbox) List(ctx context.Context, owner domain.Identity) ([]*domain.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE owner_category = $1 AND owner_id = $2
		ORDER BY created_at DESC, id DESC`

	rows, err := p.db.Query(ctx, query, owner.Category, owner.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (p *pgMailbox) MarkRead(ctx context.Context, owner domain.Identity, id int64) error {
	query := `
		UPDATE notifications
		SET read = true
		WHERE id = $1 AND owner_category = $2 AND owner_id = $3 AND read = false`

	ct, err := p.db.Exec(ctx, query, id, owner.Category, owner.ID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (p *pgMailbox) CountUnread(ctx context.Context, owner domain.Identity) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM notifications
		WHERE owner_category = $1 AND owner_id = $2 AND read = false`

	var count int
	if err := p.db.QueryRow(ctx, query, owner.Category, owner.ID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (p *pgMailbox) UpsertContactPending(ctx context.Context, owner domain.Identity, cp domain.ContactPending) error {
	// Merge semantics: the first click wins. Later clicks on the same provider
	// are deliberate no-ops.
	query := `
		INSERT INTO contact_pending (
			owner_category, owner_id, provider_id, via, first_click_at, original_notif_id
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_category, owner_id, provider_id) DO NOTHING`

	_, err := p.db.Exec(ctx, query,
		owner.Category, owner.ID, cp.ProviderID, cp.Via, cp.FirstClickTS, cp.OriginalNotifID)
	return err
}

func (p *pgMailbox) ListContactPending(ctx context.Context, owner domain.Identity) ([]*domain.ContactPending, error) {
	query := `
		SELECT provider_id, via, first_click_at, original_notif_id
		FROM contact_pending
		WHERE owner_category = $1 AND owner_id = $2
		ORDER BY first_click_at DESC`

	rows, err := p.db.Query(ctx, query, owner.Category, owner.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []*domain.ContactPending
	for rows.Next() {
		var cp domain.ContactPending
		if err := rows.Scan(&cp.ProviderID, &cp.Via, &cp.FirstClickTS, &cp.OriginalNotifID); err != nil {
			return nil, err
		}
		pending = append(pending, &cp)
	}
	return pending, rows.Err()
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var (
		n            domain.Notification
		fromID       *string
		fromCategory *string
	)
	err := row.Scan(
		&n.ID,
		&n.RequestID,
		&n.Owner.Category,
		&n.Owner.ID,
		&n.Type,
		&fromID,
		&fromCategory,
		&n.Payload,
		&n.Read,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if fromID != nil && fromCategory != nil {
		n.From = &domain.SenderRef{ID: *fromID, Category: domain.Category(*fromCategory)}
	} else {
		// Rows written before the structured columns existed carry the sender
		// in the payload, if anywhere.
		n.From = domain.ResolveSender(n.Payload)
	}
	return &n, nil
}
