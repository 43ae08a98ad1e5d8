package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dencamenew/vsuet-attendance/internal/roster"
	"github.com/dencamenew/vsuet-attendance/internal/store"
	"github.com/dencamenew/vsuet-attendance/pkg/crypto"
	apperrors "github.com/dencamenew/vsuet-attendance/pkg/errors"
	"github.com/dencamenew/vsuet-attendance/pkg/logger"
	"github.com/dencamenew/vsuet-attendance/pkg/metrics"
)

// ErrAlreadyClosed reports a close request against a session that was already
// closed. Surfaced as its own condition because a second close is most likely
// a client retry or bug worth seeing.
var ErrAlreadyClosed = errors.New("attendance: session already closed")

// Service owns the attendance session lifecycle and the scan-validation
// decision. All session state lives in the store; the roster resolver is the
// one external collaborator.
type Service struct {
	store      store.Store
	roster     roster.Resolver
	tokenBytes int
	log        *zap.Logger
	newID      func() string
	generate   func(int) (string, error)
}

// NewService wires the scan verification service.
func NewService(st store.Store, resolver roster.Resolver, tokenBytes int) (*Service, error) {
	if st == nil {
		return nil, errors.New("attendance: store is required")
	}
	if resolver == nil {
		return nil, errors.New("attendance: roster resolver is required")
	}
	if tokenBytes <= 0 {
		tokenBytes = crypto.DefaultTokenBytes
	}

	return &Service{
		store:      st,
		roster:     resolver,
		tokenBytes: tokenBytes,
		log:        logger.WithModule("attendance"),
		newID:      uuid.NewString,
		generate:   crypto.GenerateToken,
	}, nil
}

// OpenSession creates a session with a freshly generated id and first token,
// so the classroom display has something to show immediately.
func (s *Service) OpenSession(ctx context.Context, meta store.Metadata) (*store.Session, error) {
	if err := validateMetadata(meta); err != nil {
		return nil, err
	}

	id := s.newID()
	firstToken, err := s.generate(s.tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("attendance: generate first token: %w", err)
	}

	if err := s.store.Create(ctx, id, meta, firstToken); err != nil {
		if errors.Is(err, store.ErrSessionExists) {
			// With 122 bits of uuid entropy this means something is broken,
			// not unlucky.
			s.log.Error("session id collision on create", zap.String("session_id", id))
		}
		return nil, err
	}

	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	s.log.Info("attendance session opened",
		zap.String("session_id", id),
		zap.String("group", meta.GroupName),
		zap.String("subject", meta.SubjectName),
	)
	return session, nil
}

// CloseSession marks the session inactive, which freezes its token and stops
// rotation and scans. Closing twice yields ErrAlreadyClosed.
func (s *Service) CloseSession(ctx context.Context, sessionID string) error {
	wasActive, err := s.store.Close(ctx, sessionID)
	if err != nil {
		return err
	}
	if !wasActive {
		return ErrAlreadyClosed
	}

	s.log.Info("attendance session closed", zap.String("session_id", sessionID))
	return nil
}

// ValidateScan runs the scan decision procedure: session exists, session open,
// token current, identity known, then an idempotent check-in. Infrastructure
// failures come back as errors; every business outcome is a ScanResult.
func (s *Service) ValidateScan(ctx context.Context, sessionID, submittedToken, callerID string) (ScanResult, error) {
	result, err := s.validateScan(ctx, sessionID, submittedToken, callerID)
	if err == nil {
		metrics.Scans.WithLabelValues(strings.ToLower(string(result))).Inc()
	}
	return result, err
}

func (s *Service) validateScan(ctx context.Context, sessionID, submittedToken, callerID string) (ScanResult, error) {
	active, err := s.store.IsActive(ctx, sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return ScanSessionNotFound, nil
	}
	if err != nil {
		return "", err
	}
	if !active {
		return ScanSessionClosed, nil
	}

	currentToken, err := s.store.CurrentToken(ctx, sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return ScanSessionNotFound, nil
	}
	if err != nil {
		return "", err
	}
	if submittedToken != currentToken {
		return ScanTokenMismatch, nil
	}

	rosterID, err := s.roster.ResolveIdentity(ctx, callerID)
	if errors.Is(err, roster.ErrIdentityNotFound) {
		return ScanIdentityNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("attendance: resolve identity: %w", err)
	}

	wasNew, err := s.store.AddMember(ctx, sessionID, rosterID)
	if err != nil {
		return "", err
	}
	if !wasNew {
		return ScanAlreadyRecorded, nil
	}

	s.log.Debug("student checked in",
		zap.String("session_id", sessionID),
		zap.String("student_id", rosterID),
	)
	return ScanRecorded, nil
}

// ListCheckedIn returns checked-in roster ids in check-in order. Available
// while the session is open and after it closes.
func (s *Service) ListCheckedIn(ctx context.Context, sessionID string) ([]string, error) {
	exists, err := s.store.Exists(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrSessionNotFound
	}
	return s.store.ListMembers(ctx, sessionID)
}

func validateMetadata(meta store.Metadata) error {
	switch {
	case strings.TrimSpace(meta.SubjectName) == "":
		return apperrors.NewBadRequest("subject name is required")
	case strings.TrimSpace(meta.GroupName) == "":
		return apperrors.NewBadRequest("group name is required")
	case strings.TrimSpace(meta.Date) == "":
		return apperrors.NewBadRequest("date is required")
	case strings.TrimSpace(meta.LessonStartTime) == "":
		return apperrors.NewBadRequest("lesson start time is required")
	}
	return nil
}
