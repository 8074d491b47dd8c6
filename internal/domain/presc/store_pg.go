package presc

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/scrypto/portal/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type storePG struct{ pool *pgxpool.Pool }

func NewStorePG(pool *pgxpool.Pool) Store {
	return &storePG{pool: pool}
}

func (s *storePG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return s.pool
}

func (s *storePG) PatientLocation(ctx context.Context, userID uuid.UUID) (*Location, error) {
	var loc Location
	err := s.conn(ctx).QueryRow(ctx, `
		SELECT latitude, longitude, max_pharmacy_distance_km
		FROM patient__persinfo__profile
		WHERE user_id = $1 AND is_active`, userID).
		Scan(&loc.Latitude, &loc.Longitude, &loc.MaxDistanceKm)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read patient location: %w", err)
	}
	return &loc, nil
}

func (s *storePG) ActivePharmacies(ctx context.Context) ([]Pharmacy, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT pharmacy_id, name, latitude, longitude
		FROM pharmacy_profiles
		WHERE is_active AND latitude IS NOT NULL AND longitude IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("list pharmacies: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Pharmacy, error) {
		var p Pharmacy
		err := row.Scan(&p.PharmacyID, &p.Name, &p.Latitude, &p.Longitude)
		return p, err
	})
}

func (s *storePG) Allocate(ctx context.Context, userID, prescriptionID uuid.UUID, candidates []Candidate) ([]QueueEntry, error) {
	out := make([]QueueEntry, 0, len(candidates))
	err := db.InTx(ctx, s.pool, func(ctx context.Context) error {
		tag, err := s.conn(ctx).Exec(ctx, `
			UPDATE patient__presc__prescriptions
			SET status = $3, allocated_at = NOW(), updated_at = NOW()
			WHERE prescription_id = $1 AND user_id = $2 AND is_active AND status IN ($4, $5)`,
			prescriptionID, userID, StatusAllocated, StatusSaved, StatusSubmitted)
		if err != nil {
			return fmt.Errorf("mark prescription allocated: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrInvalidTransition
		}

		for _, c := range candidates {
			e := QueueEntry{
				QueueID:      uuid.New(),
				PharmacyID:   c.PharmacyID,
				PharmacyName: c.Name,
				Status:       QueuePending,
				DistanceKm:   c.DistanceKm,
			}
			if _, err := s.conn(ctx).Exec(ctx, `
				INSERT INTO prescription_pharmacy_queue
					(queue_id, prescription_id, pharmacy_id, patient_user_id, status, distance_km)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				e.QueueID, prescriptionID, e.PharmacyID, userID, e.Status, e.DistanceKm); err != nil {
				return fmt.Errorf("queue pharmacy %s: %w", e.PharmacyID, err)
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

const queueCols = `q.queue_id, q.pharmacy_id, p.name, q.status, COALESCE(q.distance_km, 0)::float8,
	q.quote_total::text, q.quote_notes, q.quoted_at`

func scanQueueEntry(row pgx.Row) (QueueEntry, error) {
	var (
		e     QueueEntry
		total *string
	)
	if err := row.Scan(&e.QueueID, &e.PharmacyID, &e.PharmacyName, &e.Status, &e.DistanceKm,
		&total, &e.QuoteNotes, &e.QuotedAt); err != nil {
		return e, err
	}
	if total != nil {
		d, err := decimal.NewFromString(*total)
		if err != nil {
			return e, fmt.Errorf("parse quote total %q: %w", *total, err)
		}
		e.QuoteTotal = &d
	}
	return e, nil
}

func (s *storePG) Quotes(ctx context.Context, userID, prescriptionID uuid.UUID) ([]QueueEntry, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT `+queueCols+`
		FROM prescription_pharmacy_queue q
		JOIN pharmacy_profiles p ON p.pharmacy_id = q.pharmacy_id
		WHERE q.prescription_id = $1 AND q.patient_user_id = $2 AND q.status = $3
		ORDER BY q.quote_total ASC, q.distance_km ASC`,
		prescriptionID, userID, QueueQuoted)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (QueueEntry, error) {
		return scanQueueEntry(row)
	})
}

func (s *storePG) AcceptQuote(ctx context.Context, userID, prescriptionID, queueID uuid.UUID) (*QueueEntry, error) {
	var accepted QueueEntry
	err := db.InTx(ctx, s.pool, func(ctx context.Context) error {
		var status string
		err := s.conn(ctx).QueryRow(ctx, `
			SELECT status FROM prescription_pharmacy_queue
			WHERE queue_id = $1 AND prescription_id = $2 AND patient_user_id = $3
			FOR UPDATE`, queueID, prescriptionID, userID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrQuoteNotFound
		}
		if err != nil {
			return fmt.Errorf("lock quote: %w", err)
		}
		if status != QueueQuoted {
			return ErrInvalidTransition
		}

		if _, err := s.conn(ctx).Exec(ctx, `
			UPDATE prescription_pharmacy_queue SET status = $2, updated_at = NOW()
			WHERE queue_id = $1`, queueID, QueueAccepted); err != nil {
			return fmt.Errorf("accept quote: %w", err)
		}
		if _, err := s.conn(ctx).Exec(ctx, `
			UPDATE prescription_pharmacy_queue SET status = $3, updated_at = NOW()
			WHERE prescription_id = $1 AND queue_id <> $2 AND status NOT IN ($3, $4)`,
			prescriptionID, queueID, QueueDeclined, QueueAccepted); err != nil {
			return fmt.Errorf("decline other quotes: %w", err)
		}
		if _, err := s.conn(ctx).Exec(ctx, `
			UPDATE patient__presc__prescriptions SET status = $3, updated_at = NOW()
			WHERE prescription_id = $1 AND user_id = $2`,
			prescriptionID, userID, StatusQuoteAccepted); err != nil {
			return fmt.Errorf("mark quote accepted: %w", err)
		}

		accepted, err = scanQueueEntry(s.conn(ctx).QueryRow(ctx, `
			SELECT `+queueCols+`
			FROM prescription_pharmacy_queue q
			JOIN pharmacy_profiles p ON p.pharmacy_id = q.pharmacy_id
			WHERE q.queue_id = $1`, queueID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &accepted, nil
}
