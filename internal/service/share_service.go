package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"field-service/internal/auth"
	"field-service/internal/model"
)

type ShareLink struct {
	Token     string    `json:"token"`
	Path      string    `json:"path"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SharedField is the read-only view behind a share link. Audit trails and
// user identifiers stay private.
type SharedField struct {
	Field          *model.Field             `json:"field"`
	LatestSnapshot *model.AnalysisSnapshot  `json:"latestSnapshot"`
	Snapshots      []model.AnalysisSnapshot `json:"snapshots"`
	Growth         Growth                   `json:"growth"`
	ExpiresAt      *time.Time               `json:"expiresAt,omitempty"`
}

type ShareService struct {
	fields *FieldService
	issuer *auth.Issuer
	log    zerolog.Logger
}

func NewShareService(fields *FieldService, issuer *auth.Issuer, log zerolog.Logger) *ShareService {
	return &ShareService{
		fields: fields,
		issuer: issuer,
		log:    log.With().Str("component", "share_service").Logger(),
	}
}

func (s *ShareService) Create(ctx context.Context, fieldID string, actor model.Actor) (*ShareLink, error) {
	if _, err := s.fields.Get(ctx, fieldID); err != nil {
		return nil, err
	}
	token, expires, err := s.issuer.Issue(fieldID, s.fields.store.GenerateID())
	if err != nil {
		if errors.Is(err, auth.ErrNoSecret) {
			return nil, ErrUnavailable
		}
		return nil, err
	}
	s.log.Info().Str("field_id", fieldID).Str("user_id", actor.UserID).Time("expires_at", expires).Msg("share link issued")
	return &ShareLink{Token: token, Path: "/shared/" + token, ExpiresAt: expires.UTC()}, nil
}

// Shared resolves verified claims to the field they grant access to.
func (s *ShareService) Shared(ctx context.Context, claims *auth.ShareClaims) (*SharedField, error) {
	details, err := s.fields.Details(ctx, claims.FieldID)
	if err != nil {
		return nil, err
	}

	field := *details.Field
	field.UserID = ""
	field.EditAudits = []model.EditAudit{}
	field.Events = []model.FieldEvent{}

	out := &SharedField{
		Field:          &field,
		LatestSnapshot: details.LatestSnapshot,
		Snapshots:      details.Snapshots,
		Growth:         details.Growth,
	}
	if claims.ExpiresAt != nil {
		at := claims.ExpiresAt.UTC()
		out.ExpiresAt = &at
	}
	return out, nil
}
