package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/psd2hub/obgate/internal/gateway/domain"
	"github.com/psd2hub/obgate/internal/gateway/store"
)

type authorisationsRepo struct {
	db dbtx
}

const authorisationColumns = `id, parent_id, parent_type, psu_id, psu_id_type,
	psu_corporate_id, psu_corporate_id_type, sca_status, sca_approach,
	chosen_method_id, available_methods, redirect_expires_at, expires_at,
	version, created_at, updated_at`

func (r *authorisationsRepo) Create(ctx context.Context, a domain.Authorisation) error {
	methods, err := marshalMethods(a.AvailableMethods)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO authorisations (`+authorisationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ParentID, string(a.ParentType),
		a.Psu.ID, a.Psu.IDType, a.Psu.CorporateID, a.Psu.CorporateIDType,
		string(a.ScaStatus), string(a.ScaApproach), a.ChosenMethodID,
		methods, nullTime(a.RedirectExpiresAt), nullableTime(a.ExpiresAt),
		a.Version, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

func (r *authorisationsRepo) GetByID(ctx context.Context, id string) (domain.Authorisation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+authorisationColumns+`
		FROM authorisations WHERE id = ?`, id)
	return scanAuthorisation(row)
}

func (r *authorisationsRepo) ListByParent(ctx context.Context, parentID string, parentType domain.AuthorisationType) ([]domain.Authorisation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+authorisationColumns+`
		FROM authorisations
		WHERE parent_id = ? AND parent_type = ?
		ORDER BY created_at ASC`, parentID, string(parentType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Authorisation
	for rows.Next() {
		a, err := scanAuthorisation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *authorisationsRepo) Update(ctx context.Context, a domain.Authorisation) (domain.Authorisation, error) {
	methods, err := marshalMethods(a.AvailableMethods)
	if err != nil {
		return domain.Authorisation{}, err
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE authorisations
		SET psu_id = ?, psu_id_type = ?, psu_corporate_id = ?, psu_corporate_id_type = ?,
			sca_status = ?, sca_approach = ?, chosen_method_id = ?,
			available_methods = ?, redirect_expires_at = ?, expires_at = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		a.Psu.ID, a.Psu.IDType, a.Psu.CorporateID, a.Psu.CorporateIDType,
		string(a.ScaStatus), string(a.ScaApproach), a.ChosenMethodID,
		methods, nullTime(a.RedirectExpiresAt), nullableTime(a.ExpiresAt),
		now, a.ID, a.Version,
	)
	if err != nil {
		return domain.Authorisation{}, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Authorisation{}, err
	}
	if affected == 0 {
		// Either the record is gone or someone else won the version race.
		if _, err := r.GetByID(ctx, a.ID); err != nil {
			return domain.Authorisation{}, err
		}
		return domain.Authorisation{}, store.ErrConflict
	}

	a.Version++
	a.UpdatedAt = now
	return a, nil
}

func (r *authorisationsRepo) FailExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE authorisations
		SET sca_status = ?, version = version + 1, updated_at = ?
		WHERE sca_status NOT IN (?, ?) AND expires_at < ?`,
		string(domain.ScaStatusFailed), time.Now().UTC(),
		string(domain.ScaStatusFinalised), string(domain.ScaStatusFailed),
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuthorisation(row rowScanner) (domain.Authorisation, error) {
	var (
		a          domain.Authorisation
		parentType string
		scaStatus  string
		approach   string
		methods    string
		redirect   sql.NullTime
		expires    sql.NullTime
	)

	err := row.Scan(
		&a.ID, &a.ParentID, &parentType,
		&a.Psu.ID, &a.Psu.IDType, &a.Psu.CorporateID, &a.Psu.CorporateIDType,
		&scaStatus, &approach, &a.ChosenMethodID,
		&methods, &redirect, &expires,
		&a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Authorisation{}, mapNotFound(err)
	}

	a.ParentType = domain.AuthorisationType(parentType)
	a.ScaStatus = domain.ScaStatus(scaStatus)
	a.ScaApproach = domain.ScaApproach(approach)
	if redirect.Valid {
		t := redirect.Time
		a.RedirectExpiresAt = &t
	}
	if expires.Valid {
		a.ExpiresAt = expires.Time
	}
	if methods != "" {
		if err := json.Unmarshal([]byte(methods), &a.AvailableMethods); err != nil {
			return domain.Authorisation{}, err
		}
	}
	return a, nil
}

func marshalMethods(methods []domain.ScaMethod) (string, error) {
	if len(methods) == 0 {
		return "", nil
	}
	b, err := json.Marshal(methods)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
