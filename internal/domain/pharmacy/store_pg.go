package pharmacy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/scrypto/portal/internal/platform/db"
	"github.com/scrypto/portal/pkg/pagination"
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

func (s *storePG) PharmacyForOwner(ctx context.Context, ownerID uuid.UUID) (*Pharmacy, error) {
	var p Pharmacy
	err := s.conn(ctx).QueryRow(ctx, `
		SELECT pharmacy_id, owner_user_id, name FROM pharmacy_profiles
		WHERE owner_user_id = $1 AND is_active
		ORDER BY created_at LIMIT 1`, ownerID).Scan(&p.PharmacyID, &p.OwnerUserID, &p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoPharmacy
	}
	if err != nil {
		return nil, fmt.Errorf("resolve pharmacy: %w", err)
	}
	return &p, nil
}

func (s *storePG) Inbox(ctx context.Context, pharmacyID uuid.UUID, status string, p pagination.Params) ([]InboxItem, int, error) {
	var total int
	if err := s.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM prescription_pharmacy_queue
		WHERE pharmacy_id = $1 AND status = $2`, pharmacyID, status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count inbox: %w", err)
	}

	rows, err := s.conn(ctx).Query(ctx, `
		SELECT q.queue_id, q.prescription_id, q.status, COALESCE(q.distance_km, 0)::float8, q.notified_at,
			q.quote_total::text, pr.prescription_date::text, pr.doctor_name, pr.diagnosis, pr.status, q.created_at
		FROM prescription_pharmacy_queue q
		JOIN patient__presc__prescriptions pr ON pr.prescription_id = q.prescription_id
		WHERE q.pharmacy_id = $1 AND q.status = $2
		ORDER BY q.created_at DESC
		`+p.SQL(), pharmacyID, status)
	if err != nil {
		return nil, 0, fmt.Errorf("list inbox: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (InboxItem, error) {
		var (
			it    InboxItem
			quote *string
		)
		if err := row.Scan(&it.QueueID, &it.PrescriptionID, &it.Status, &it.DistanceKm, &it.NotifiedAt,
			&quote, &it.PrescriptionDate, &it.DoctorName, &it.Diagnosis, &it.PrescriptionStatus, &it.CreatedAt); err != nil {
			return it, err
		}
		if quote != nil {
			d, err := decimal.NewFromString(*quote)
			if err != nil {
				return it, err
			}
			it.QuoteTotal = &d
		}
		return it, nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan inbox: %w", err)
	}
	return items, total, nil
}

func (s *storePG) Workflow(ctx context.Context, pharmacyID, queueID uuid.UUID) (*WorkflowRecord, error) {
	var (
		rec     WorkflowRecord
		patient uuid.UUID
	)
	err := s.conn(ctx).QueryRow(ctx, `
		SELECT q.queue_id, q.prescription_id, q.status, q.created_at, q.validated_medications,
			pr.analysis_data, pr.image_url, pr.doctor_name, pr.practice_number, pr.prescription_date::text,
			pr.diagnosis, pr.ai_confidence::float8, pr.scan_quality::float8, q.patient_user_id,
			COALESCE(pf.first_name, ''), COALESCE(pf.last_name, ''), pf.id_number, pf.date_of_birth::text,
			pf.gender, ma.medical_aid_name, ma.member_number
		FROM prescription_pharmacy_queue q
		JOIN patient__presc__prescriptions pr ON pr.prescription_id = q.prescription_id
		LEFT JOIN patient__persinfo__profile pf ON pf.user_id = q.patient_user_id AND pf.is_active
		LEFT JOIN patient__persinfo__medical_aid ma ON ma.user_id = q.patient_user_id AND ma.is_active
		WHERE q.queue_id = $1 AND q.pharmacy_id = $2`, queueID, pharmacyID).Scan(
		&rec.QueueID, &rec.PrescriptionID, &rec.Status, &rec.CreatedAt, &rec.ValidatedMedications,
		&rec.AnalysisData, &rec.ImageKey, &rec.DoctorName, &rec.PracticeNumber, &rec.PrescriptionDate,
		&rec.Diagnosis, &rec.AIConfidence, &rec.ScanQuality, &patient,
		&rec.Patient.FirstName, &rec.Patient.LastName, &rec.Patient.IDNumber, &rec.Patient.DateOfBirth,
		&rec.Patient.Gender, &rec.Patient.MedicalAid, &rec.Patient.MedicalAidNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load workflow: %w", err)
	}

	if rec.Patient.Allergies, err = s.strings(ctx, `
		SELECT allergen FROM patient__medhist__allergies
		WHERE user_id = $1 AND is_active ORDER BY allergen`, patient); err != nil {
		return nil, fmt.Errorf("load allergies: %w", err)
	}
	if rec.Patient.ChronicConditions, err = s.strings(ctx, `
		SELECT condition_name FROM patient__medhist__conditions
		WHERE user_id = $1 AND is_active AND current_status IN ('chronic', 'active')
		ORDER BY condition_name`, patient); err != nil {
		return nil, fmt.Errorf("load conditions: %w", err)
	}
	return &rec, nil
}

func (s *storePG) strings(ctx context.Context, sql string, args ...interface{}) ([]string, error) {
	rows, err := s.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *storePG) Transition(ctx context.Context, pharmacyID, queueID uuid.UUID, from []string, to string, values map[string]interface{}) error {
	set := []string{"status = $3", "updated_at = NOW()"}
	args := []interface{}{queueID, pharmacyID, to, from}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, values[k])
		set = append(set, fmt.Sprintf("%s = $%d", pgx.Identifier{k}.Sanitize(), len(args)))
	}

	tag, err := s.conn(ctx).Exec(ctx, `
		UPDATE prescription_pharmacy_queue SET `+strings.Join(set, ", ")+`
		WHERE queue_id = $1 AND pharmacy_id = $2 AND status = ANY($4)`, args...)
	if err != nil {
		return fmt.Errorf("update queue status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM prescription_pharmacy_queue WHERE queue_id = $1 AND pharmacy_id = $2)`,
		queueID, pharmacyID).Scan(&exists); err != nil {
		return fmt.Errorf("check queue row: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInvalidTransition
}

func (s *storePG) MarkNotified(ctx context.Context, queueIDs []uuid.UUID) (int64, error) {
	if len(queueIDs) == 0 {
		return 0, nil
	}
	tag, err := s.conn(ctx).Exec(ctx, `
		UPDATE prescription_pharmacy_queue SET notified_at = NOW(), updated_at = NOW()
		WHERE queue_id = ANY($1) AND notified_at IS NULL`, queueIDs)
	if err != nil {
		return 0, fmt.Errorf("mark notified: %w", err)
	}
	return tag.RowsAffected(), nil
}
