package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/seeit/report-server/internal/apperr"
	"github.com/seeit/report-server/internal/database"
	"github.com/seeit/report-server/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const officerColumns = `id::text, badge_id, name, station, password_hash, is_active, created_at`

const officerByBadgeSQL = `SELECT ` + officerColumns + ` FROM police_users WHERE badge_id = $1`

const officerByIDSQL = `SELECT ` + officerColumns + ` FROM police_users WHERE id = $1::text::uuid`

const insertOfficerSQL = `
	INSERT INTO police_users (id, badge_id, name, station, password_hash, is_active)
	VALUES ($1::text::uuid, $2, $3, $4, $5, TRUE)
	ON CONFLICT (badge_id) DO NOTHING`

// TokenIssuer signs bearer tokens for officers.
type TokenIssuer interface {
	Issue(officer models.OfficerIdentity) (string, error)
}

// PoliceService handles officer login and profile lookups
type PoliceService struct {
	db     database.DB
	tokens TokenIssuer
	logger *zap.SugaredLogger
}

// NewPoliceService creates a new police service
func NewPoliceService(db database.DB, tokens TokenIssuer, logger *zap.SugaredLogger) *PoliceService {
	return &PoliceService{db: db, tokens: tokens, logger: logger}
}

// Login checks a badge and password and issues a bearer token. Unknown
// badges, inactive accounts and wrong passwords fail identically.
func (s *PoliceService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, toValidationError(err)
	}

	user, err := s.findOne(ctx, officerByBadgeSQL, req.BadgeID)
	if err != nil {
		var notFound *apperr.NotFoundError
		if errors.As(err, &notFound) {
			return nil, &apperr.UnauthorizedError{Reason: "invalid credentials"}
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, &apperr.UnauthorizedError{Reason: "invalid credentials"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, &apperr.UnauthorizedError{Reason: "invalid credentials"}
	}

	identity := models.OfficerIdentity{
		ID:      user.ID,
		BadgeID: user.BadgeID,
		Name:    user.Name,
		Station: user.Station,
	}
	token, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Officer logged in", "badge", user.BadgeID, "station", user.Station)
	return &models.LoginResponse{Success: true, Token: token, User: identity}, nil
}

// Profile returns the officer account with internal key id.
func (s *PoliceService) Profile(ctx context.Context, id string) (*models.PoliceUser, error) {
	key, ok := canonicalUUID(id)
	if !ok {
		return nil, &apperr.NotFoundError{Resource: "officer", ID: id}
	}
	return s.findOne(ctx, officerByIDSQL, key)
}

// CreateOfficer provisions an active officer with a bcrypt-hashed password.
// It reports false when the badge already exists.
func (s *PoliceService) CreateOfficer(ctx context.Context, id, badgeID, name, station, password string) (bool, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	tag, err := s.db.Exec(ctx, insertOfficerSQL, id, badgeID, name, station, string(hash))
	if err != nil {
		return false, fmt.Errorf("insert officer: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PoliceService) findOne(ctx context.Context, query, key string) (*models.PoliceUser, error) {
	var u models.PoliceUser
	err := s.db.QueryRow(ctx, query, key).Scan(
		&u.ID, &u.BadgeID, &u.Name, &u.Station, &u.PasswordHash, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, &apperr.NotFoundError{Resource: "officer", ID: key}
		}
		return nil, fmt.Errorf("find officer: %w", err)
	}
	return &u, nil
}
