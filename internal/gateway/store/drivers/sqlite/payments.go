package sqlite

import (
	"context"
	"time"

	"github.com/psd2hub/obgate/internal/gateway/domain"
)

type paymentsRepo struct {
	db dbtx
}

func (r *paymentsRepo) Create(ctx context.Context, p domain.Payment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (id, tpp_id, product, transaction_status,
			multilevel_sca, psu_ids, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.TppID, p.Product, string(p.TransactionStatus),
		boolInt(p.MultilevelSca), joinPsuIDs(p.Psus), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return err
	}

	for _, leg := range p.Legs {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO payment_legs (id, payment_id, end_to_end_id,
				debtor_iban, creditor_iban, amount, currency)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			leg.ID, p.ID, leg.EndToEndID,
			leg.DebtorIban, leg.CreditorIban, leg.Amount, leg.Currency,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *paymentsRepo) GetByID(ctx context.Context, id string) (domain.Payment, error) {
	var (
		p          domain.Payment
		status     string
		multilevel int64
		psuIDs     string
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, tpp_id, product, transaction_status, multilevel_sca,
			psu_ids, created_at, updated_at
		FROM payments WHERE id = ?`, id).Scan(
		&p.ID, &p.TppID, &p.Product, &status, &multilevel,
		&psuIDs, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Payment{}, mapNotFound(err)
	}

	p.TransactionStatus = domain.TransactionStatus(status)
	p.MultilevelSca = multilevel != 0
	p.Psus = splitPsuIDs(psuIDs)

	legs, err := r.legsByPayment(ctx, id)
	if err != nil {
		return domain.Payment{}, err
	}
	p.Legs = legs
	return p, nil
}

func (r *paymentsRepo) Update(ctx context.Context, p domain.Payment) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET transaction_status = ?, multilevel_sca = ?, psu_ids = ?, updated_at = ?
		WHERE id = ?`,
		string(p.TransactionStatus), boolInt(p.MultilevelSca),
		joinPsuIDs(p.Psus), time.Now().UTC(), p.ID,
	)
	return err
}

func (r *paymentsRepo) legsByPayment(ctx context.Context, paymentID string) ([]domain.PaymentLeg, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, end_to_end_id, debtor_iban, creditor_iban, amount, currency
		FROM payment_legs WHERE payment_id = ? ORDER BY id ASC`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var legs []domain.PaymentLeg
	for rows.Next() {
		var leg domain.PaymentLeg
		if err := rows.Scan(&leg.ID, &leg.EndToEndID, &leg.DebtorIban,
			&leg.CreditorIban, &leg.Amount, &leg.Currency); err != nil {
			return nil, err
		}
		legs = append(legs, leg)
	}
	return legs, rows.Err()
}
