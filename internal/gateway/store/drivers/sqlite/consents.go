package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/psd2hub/obgate/internal/gateway/domain"
)

type consentsRepo struct {
	db dbtx
}

func (r *consentsRepo) Create(ctx context.Context, c domain.Consent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO consents (id, tpp_id, status, request_type, one_access_type,
			multilevel_sca, psu_ids, valid_until, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TppID, string(c.Status), string(c.RequestType),
		boolInt(c.OneAccessType), boolInt(c.MultilevelSca),
		joinPsuIDs(c.Psus), nullableTime(c.ValidUntil), c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *consentsRepo) GetByID(ctx context.Context, id string) (domain.Consent, error) {
	var (
		c             domain.Consent
		status        string
		requestType   string
		oneAccessType int64
		multilevel    int64
		psuIDs        string
		validUntil    sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, tpp_id, status, request_type, one_access_type,
			multilevel_sca, psu_ids, valid_until, created_at, updated_at
		FROM consents WHERE id = ?`, id).Scan(
		&c.ID, &c.TppID, &status, &requestType, &oneAccessType,
		&multilevel, &psuIDs, &validUntil, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Consent{}, mapNotFound(err)
	}

	c.Status = domain.ConsentStatus(status)
	c.RequestType = domain.AisRequestType(requestType)
	c.OneAccessType = oneAccessType != 0
	c.MultilevelSca = multilevel != 0
	c.Psus = splitPsuIDs(psuIDs)
	if validUntil.Valid {
		c.ValidUntil = validUntil.Time
	}
	return c, nil
}

func (r *consentsRepo) Update(ctx context.Context, c domain.Consent) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE consents
		SET status = ?, multilevel_sca = ?, psu_ids = ?, updated_at = ?
		WHERE id = ?`,
		string(c.Status), boolInt(c.MultilevelSca), joinPsuIDs(c.Psus),
		time.Now().UTC(), c.ID,
	)
	return err
}

func (r *consentsRepo) TerminateOldConsents(ctx context.Context, current domain.Consent) (int64, error) {
	if len(current.Psus) == 0 || current.Psus[0].ID == "" {
		return 0, nil
	}

	// Only recurring consents supersede each other; a one-off consent
	// does not invalidate an existing recurring one.
	res, err := r.db.ExecContext(ctx, `
		UPDATE consents
		SET status = ?, updated_at = ?
		WHERE tpp_id = ? AND id <> ? AND one_access_type = 0
			AND status IN (?, ?, ?)
			AND instr(' ' || psu_ids || ' ', ' ' || ? || ' ') > 0`,
		string(domain.ConsentTerminatedByAspsp), time.Now().UTC(),
		current.TppID, current.ID,
		string(domain.ConsentReceived), string(domain.ConsentValid),
		string(domain.ConsentPartiallyAuthorised),
		current.Psus[0].ID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
