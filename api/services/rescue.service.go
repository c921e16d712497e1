package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tourist-overwatch/db"
	"tourist-overwatch/pkg/ontology"
)

var (
	ErrOperationNotFound = errors.New("rescue operation not found")
	ErrInvalidRequest    = errors.New("invalid request")
)

const operationColumns = `operation_id, alert_id, tourist_name, trip_ref, location, sos_time,
	unit_dispatched, status, priority, estimated_time, created_at, updated_at`

// RescueService is the rescue operations ledger. Dispatched alerts open an
// ongoing operation; operators move it to rescued or closed.
type RescueService struct {
	db       *db.Service
	validate *validator.Validate
	now      func() time.Time
	logger   *zap.Logger
}

func NewRescueService(dbService *db.Service, logger *zap.Logger) *RescueService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RescueService{
		db:       dbService,
		validate: validator.New(),
		now:      time.Now,
		logger:   logger.Named("rescue"),
	}
}

// Seed loads the standing operations when the ledger is empty.
func (s *RescueService) Seed(ctx context.Context) error {
	now := s.now().UTC()
	seed := []ontology.RescueOperation{
		{ID: "1", TouristName: "Sarah Johnson", Location: "Kaziranga National Park, Assam", SOSTime: now.Add(-2 * time.Hour),
			UnitDispatched: "Forest Patrol Unit-7", Status: ontology.OperationOngoing, Priority: ontology.SeverityHigh, EstimatedTime: "45 minutes"},
		{ID: "2", TouristName: "David Chen", Location: "Tawang Monastery, Arunachal Pradesh", SOSTime: now.Add(-4 * time.Hour),
			UnitDispatched: "Mountain Rescue Team-3", Status: ontology.OperationRescued, Priority: ontology.SeverityHigh, EstimatedTime: "Completed"},
		{ID: "3", TouristName: "Emma Wilson", Location: "Mawlynnong Village, Meghalaya", SOSTime: now.Add(-6 * time.Hour),
			UnitDispatched: "Local Police Unit-12", Status: ontology.OperationClosed, Priority: ontology.SeverityMedium, EstimatedTime: "Completed"},
		{ID: "4", TouristName: "Raj Patel", Location: "Shillong Peak, Meghalaya", SOSTime: now.Add(-1 * time.Hour),
			UnitDispatched: "Tourist Safety Unit-5", Status: ontology.OperationOngoing, Priority: ontology.SeverityMedium, EstimatedTime: "1.5 hours"},
	}

	return s.db.Transaction(func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM rescue_operations`).Scan(&n); err != nil {
			return fmt.Errorf("failed to count rescue operations: %w", err)
		}
		if n > 0 {
			return nil
		}
		for i := range seed {
			seed[i].CreatedAt = seed[i].SOSTime
			seed[i].UpdatedAt = now
			if err := insertOperation(ctx, tx, &seed[i]); err != nil {
				return err
			}
		}
		s.logger.Info("Seeded rescue operations", zap.Int("count", len(seed)))
		return nil
	})
}

func (s *RescueService) List(ctx context.Context) ([]ontology.RescueOperation, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT `+operationColumns+` FROM rescue_operations ORDER BY sos_time DESC, operation_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rescue operations: %w", err)
	}
	defer rows.Close()

	ops := []ontology.RescueOperation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, *op)
	}
	return ops, rows.Err()
}

func (s *RescueService) Get(ctx context.Context, id string) (*ontology.RescueOperation, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT `+operationColumns+` FROM rescue_operations WHERE operation_id = ?`, id)
	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOperationNotFound
	}
	return op, err
}

func (s *RescueService) UpdateStatus(ctx context.Context, req *ontology.UpdateOperationRequest) (*ontology.RescueOperation, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	estimate := ""
	if req.Status != ontology.OperationOngoing {
		estimate = "Completed"
	}

	res, err := s.db.DB.ExecContext(ctx,
		`UPDATE rescue_operations
		 SET status = ?, estimated_time = CASE WHEN ? = '' THEN estimated_time ELSE ? END, updated_at = ?
		 WHERE operation_id = ?`,
		req.Status, estimate, estimate, s.now().UTC(), req.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update rescue operation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrOperationNotFound
	}

	s.logger.Info("Rescue operation updated", zap.String("operation_id", req.ID), zap.String("status", string(req.Status)))
	return s.Get(ctx, req.ID)
}

func (s *RescueService) Stats(ctx context.Context) (ontology.OperationStats, error) {
	var stats ontology.OperationStats
	rows, err := s.db.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM rescue_operations GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("failed to count rescue operations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status ontology.OperationStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return stats, fmt.Errorf("failed to scan operation stats: %w", err)
		}
		switch status {
		case ontology.OperationOngoing:
			stats.Ongoing = n
		case ontology.OperationRescued:
			stats.Rescued = n
		case ontology.OperationClosed:
			stats.Closed = n
		}
	}
	return stats, rows.Err()
}

// RecordDispatch opens an ongoing operation for the alert. An alert that
// already has an ongoing operation gets that one back.
func (s *RescueService) RecordDispatch(ctx context.Context, req ontology.DispatchRequest) (ontology.RescueOperation, error) {
	var op ontology.RescueOperation
	err := s.db.Transaction(func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+operationColumns+` FROM rescue_operations WHERE alert_id = ? AND status = ? LIMIT 1`,
			req.AlertID, ontology.OperationOngoing)
		existing, err := scanOperation(row)
		if err == nil {
			op = *existing
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		now := s.now().UTC()
		sosTime := req.RequestedAt
		if sosTime.IsZero() {
			sosTime = now
		}
		priority := req.Severity
		if !priority.Valid() {
			priority = ontology.SeverityMedium
		}
		unit, estimate := assignUnit(priority)

		op = ontology.RescueOperation{
			ID:             uuid.New().String(),
			AlertID:        req.AlertID,
			TouristName:    req.TouristName,
			TripReference:  req.TripReference,
			Location:       req.Location,
			SOSTime:        sosTime.UTC(),
			UnitDispatched: unit,
			Status:         ontology.OperationOngoing,
			Priority:       priority,
			EstimatedTime:  estimate,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return insertOperation(ctx, tx, &op)
	})
	if err != nil {
		return ontology.RescueOperation{}, err
	}
	return op, nil
}

// Dispatch lets the ledger stand in for the dispatch queue when NATS is off.
func (s *RescueService) Dispatch(ctx context.Context, req ontology.DispatchRequest) error {
	op, err := s.RecordDispatch(ctx, req)
	if err != nil {
		return err
	}
	s.logger.Info("Rescue operation opened", zap.String("operation_id", op.ID), zap.String("alert_id", req.AlertID))
	return nil
}

func assignUnit(priority ontology.Severity) (unit, estimate string) {
	switch priority {
	case ontology.SeverityHigh:
		return "Rapid Response Unit-1", "30 minutes"
	case ontology.SeverityLow:
		return "Tourist Safety Unit-2", "2 hours"
	default:
		return "Local Police Unit-4", "1 hour"
	}
}

func insertOperation(ctx context.Context, tx *sql.Tx, op *ontology.RescueOperation) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO rescue_operations (`+operationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, op.AlertID, op.TouristName, op.TripReference, op.Location, op.SOSTime,
		op.UnitDispatched, op.Status, op.Priority, op.EstimatedTime, op.CreatedAt, op.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert rescue operation %s: %w", op.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOperation(row scanner) (*ontology.RescueOperation, error) {
	var op ontology.RescueOperation
	err := row.Scan(
		&op.ID, &op.AlertID, &op.TouristName, &op.TripReference, &op.Location, &op.SOSTime,
		&op.UnitDispatched, &op.Status, &op.Priority, &op.EstimatedTime, &op.CreatedAt, &op.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &op, nil
}
