package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"barrel-backend/internal/apperr"
	"barrel-backend/internal/models"
	"barrel-backend/internal/repositories"
)

// GenesisHash is the PrevHash of the first entry in the chain.
var GenesisHash = strings.Repeat("0", 64)

const verifyPageSize = 500

// AuditService is the audit recorder. Mutating operations append their
// entries through record inside their own transaction; Record and
// RecordRejection open a transaction of their own.
type AuditService struct {
	*Engine
}

func NewAuditService(engine *Engine) *AuditService {
	return &AuditService{Engine: engine}
}

// AuditEvent describes one entry before it is chained.
type AuditEvent struct {
	Action         models.AuditAction
	EntityType     string
	EntityID       string
	Details        map[string]any
	ResponseStatus int
}

// chainPayload is the hashed form of an entry. Timestamps are normalized to
// UTC microseconds so the hash survives a database round trip.
type chainPayload struct {
	ID             string         `json:"id"`
	Seq            int64          `json:"seq"`
	Action         string         `json:"action"`
	EntityType     string         `json:"entity_type"`
	EntityID       string         `json:"entity_id"`
	UserID         string         `json:"user_id"`
	UserRole       string         `json:"user_role"`
	Details        map[string]any `json:"details"`
	IPAddress      string         `json:"ip_address"`
	UserAgent      string         `json:"user_agent"`
	ResponseStatus int            `json:"response_status"`
	Timestamp      string         `json:"timestamp"`
	PrevHash       string         `json:"prev_hash"`
}

// ComputeHash returns the chain hash of entry, ignoring entry.Hash.
func ComputeHash(entry *models.AuditLog) (string, error) {
	payload := chainPayload{
		ID:             entry.ID,
		Seq:            entry.Seq,
		Action:         string(entry.Action),
		EntityType:     entry.EntityType,
		EntityID:       entry.EntityID,
		UserID:         entry.UserID,
		UserRole:       entry.UserRole,
		Details:        entry.Details,
		IPAddress:      entry.IPAddress,
		UserAgent:      entry.UserAgent,
		ResponseStatus: entry.ResponseStatus,
		Timestamp:      entry.Timestamp.UTC().Format(time.RFC3339Nano),
		PrevHash:       entry.PrevHash,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal audit payload: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// normalizeDetails round-trips details through JSON so the stored and hashed
// forms agree regardless of the storage engine.
func normalizeDetails(details map[string]any) (map[string]any, error) {
	if len(details) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal audit details: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal audit details: %w", err)
	}
	return out, nil
}

// record chains and inserts one entry inside tx. The chain lock is taken
// here, so callers invoke record after their other writes.
func (e *Engine) record(ctx context.Context, tx repositories.Tx, actor models.Actor, ev AuditEvent, now time.Time) (*models.AuditLog, error) {
	if ev.Action == "" || ev.EntityType == "" {
		return nil, apperr.ErrInvalidField.WithMessage("audit action and entity type are required")
	}
	details, err := normalizeDetails(ev.Details)
	if err != nil {
		return nil, err
	}
	if ev.ResponseStatus == 0 {
		ev.ResponseStatus = http.StatusOK
	}

	if err := tx.Audit().LockChain(ctx); err != nil {
		return nil, err
	}
	tail, err := tx.Audit().Tail(ctx)
	if err != nil {
		return nil, err
	}
	seq, prev := int64(1), GenesisHash
	if tail != nil {
		seq, prev = tail.Seq+1, tail.Hash
	}

	entry := &models.AuditLog{
		ID:             e.NewID(),
		Seq:            seq,
		Action:         ev.Action,
		EntityType:     ev.EntityType,
		EntityID:       ev.EntityID,
		UserID:         actor.ID,
		UserRole:       actor.Role,
		Details:        details,
		IPAddress:      actor.IPAddress,
		UserAgent:      actor.UserAgent,
		ResponseStatus: ev.ResponseStatus,
		Timestamp:      now.UTC().Truncate(time.Microsecond),
		PrevHash:       prev,
	}
	if entry.Hash, err = ComputeHash(entry); err != nil {
		return nil, err
	}
	if err := tx.Audit().Insert(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Record appends a standalone entry in its own transaction.
func (s *AuditService) Record(ctx context.Context, actor models.Actor, ev AuditEvent) (*models.AuditLog, error) {
	var entry *models.AuditLog
	err := s.run(ctx, "audit.record", func(tx repositories.Tx, fx *effects) error {
		var err error
		entry, err = s.record(ctx, tx, actor, ev, s.Now())
		return err
	})
	return entry, err
}

// Rejection describes a request the boundary refused or the engine rejected.
type Rejection struct {
	Operation  string
	EntityType string
	EntityID   string
	Status     int
	Code       string
	Message    string
}

// RecordRejection attributes a denied or failed request to its actor. It runs
// in its own transaction because the rejected operation's one rolled back.
func (s *AuditService) RecordRejection(ctx context.Context, actor models.Actor, r Rejection) error {
	entityType := r.EntityType
	if entityType == "" {
		entityType = "request"
	}
	_, err := s.Record(ctx, actor, AuditEvent{
		Action:     models.AuditDenied,
		EntityType: entityType,
		EntityID:   r.EntityID,
		Details: map[string]any{
			"operation": r.Operation,
			"code":      r.Code,
			"message":   r.Message,
		},
		ResponseStatus: r.Status,
	})
	return err
}

// List returns entries newest first.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditLog, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	var out []*models.AuditLog
	err := s.view(ctx, func(tx repositories.Tx) error {
		var err error
		out, err = tx.Audit().List(ctx, filter)
		return err
	})
	return out, err
}

// ListByEntity returns the history of one entity, newest first.
func (s *AuditService) ListByEntity(ctx context.Context, entityType, entityID string) ([]*models.AuditLog, error) {
	return s.List(ctx, models.AuditFilter{EntityType: entityType, EntityID: entityID, Limit: 500})
}

// VerifyResult summarizes a chain walk.
type VerifyResult struct {
	Entries  int64  `json:"entries"`
	LastSeq  int64  `json:"last_seq"`
	LastHash string `json:"last_hash"`
}

// Verify walks the whole chain and fails on the first entry whose sequence,
// link or hash does not match.
func (s *AuditService) Verify(ctx context.Context) (*VerifyResult, error) {
	res := &VerifyResult{LastHash: GenesisHash}
	err := s.view(ctx, func(tx repositories.Tx) error {
		for {
			page, err := tx.Audit().Range(ctx, res.LastSeq, verifyPageSize)
			if err != nil {
				return err
			}
			for _, entry := range page {
				if err := checkLink(entry, res.LastSeq, res.LastHash); err != nil {
					return err
				}
				res.Entries++
				res.LastSeq = entry.Seq
				res.LastHash = entry.Hash
			}
			if len(page) < verifyPageSize {
				return nil
			}
		}
	})
	if err != nil {
		if ae, ok := apperr.As(err); ok {
			s.Logger.Error("audit chain verification failed", "component", "audit", "code", ae.Code, "reason", ae.Message)
		}
		return nil, err
	}
	s.Logger.Info("audit chain verified", "component", "audit", "entries", res.Entries, "last_seq", res.LastSeq)
	return res, nil
}

func checkLink(entry *models.AuditLog, prevSeq int64, prevHash string) error {
	if entry.Seq != prevSeq+1 {
		return apperr.ErrAuditChainBroken.WithMessagef("sequence gap at %d after %d", entry.Seq, prevSeq)
	}
	if entry.PrevHash != prevHash {
		return apperr.ErrAuditChainBroken.WithMessagef("entry %d does not link to its predecessor", entry.Seq)
	}
	want, err := ComputeHash(entry)
	if err != nil {
		return err
	}
	if want != entry.Hash {
		return apperr.ErrAuditChainBroken.WithMessagef("entry %d hash mismatch", entry.Seq)
	}
	return nil
}

// Range returns up to limit entries after seq, for export.
func (s *AuditService) Range(ctx context.Context, afterSeq int64, limit int) ([]*models.AuditLog, error) {
	var out []*models.AuditLog
	err := s.view(ctx, func(tx repositories.Tx) error {
		var err error
		out, err = tx.Audit().Range(ctx, afterSeq, limit)
		return err
	})
	return out, err
}
