package auth

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/frahmantamala/scale-custody/internal"
	"github.com/frahmantamala/scale-custody/internal/audit"
	"github.com/frahmantamala/scale-custody/internal/core/custody"
	"github.com/frahmantamala/scale-custody/internal/core/database"
	userDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/user"
	"github.com/frahmantamala/scale-custody/internal/obs"
	"github.com/frahmantamala/scale-custody/internal/user"
	"github.com/frahmantamala/scale-custody/pkg/logger"
)

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*userDatamodel.User, error)
	GetByDodID(ctx context.Context, dodID string) (*userDatamodel.User, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

type Service struct {
	users     UserRepository
	tx        database.Transactor
	audit     audit.Trail
	tokens    TokenGenerator
	dummyHash []byte
	logger    *slog.Logger
}

func NewService(users UserRepository, tx database.Transactor, trail audit.Trail, tokens TokenGenerator, bcryptCost int, logger *slog.Logger) *Service {
	// Unknown ids still pay for one bcrypt comparison.
	dummy, _ := bcrypt.GenerateFromPassword([]byte("scale-custody-placeholder"), bcryptCost)
	return &Service{
		users:     users,
		tx:        tx,
		audit:     trail,
		tokens:    tokens,
		dummyHash: dummy,
		logger:    logger,
	}
}

// Login verifies a DoD id and password. Unknown ids, wrong passwords and
// inactive accounts all fail with the same InvalidCredentials error.
func (s *Service) Login(ctx context.Context, dto LoginDTO) (*LoginResponse, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}
	log := logger.FromOr(ctx, s.logger)

	row, err := s.users.GetByDodID(ctx, dto.DodID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load user", err)
	}
	if row == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(dto.Password))
		return nil, s.reject(log, "unknown_user", dto.DodID)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(dto.Password)); err != nil {
		return nil, s.reject(log, "bad_password", dto.DodID)
	}
	if !row.IsActive {
		return nil, s.reject(log, "inactive", dto.DodID)
	}

	token, expiresAt, err := s.tokens.GenerateAccessToken(row.ID, row.Role)
	if err != nil {
		return nil, internal.NewInternalError("failed to issue token", err)
	}

	now := time.Now().UTC()
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.TouchLastLogin(ctx, row.ID, now); err != nil {
			return internal.NewInternalError("failed to record login", err)
		}
		s.audit.Record(ctx, audit.Entry{
			ActorID:     row.ID,
			ActionType:  custody.ActionUpdated,
			Description: "User logged in",
			Metadata:    map[string]interface{}{"dodId": row.DodID},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	row.LastLoginAt = &now
	obs.LoginAttemptsTotal.WithLabelValues("success").Inc()
	log.Info("user logged in", "user_id", row.ID, "role", row.Role)
	return &LoginResponse{
		User:        user.FromDataModel(row),
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *Service) reject(log *slog.Logger, reason, dodID string) error {
	obs.LoginAttemptsTotal.WithLabelValues("failure").Inc()
	log.Warn("login rejected", "reason", reason, "dod_id", dodID)
	return internal.ErrInvalidCredentials()
}

// Authenticate resolves a bearer token to the acting user. The role comes
// from the store so that role changes and deactivation apply immediately.
func (s *Service) Authenticate(ctx context.Context, token string) (internal.Actor, error) {
	if token == "" {
		return internal.Actor{}, internal.ErrAuthRequired()
	}
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return internal.Actor{}, err
	}
	id, err := claims.UserID()
	if err != nil || id <= 0 {
		return internal.Actor{}, internal.ErrInvalidToken()
	}

	row, err := s.users.GetByID(ctx, id)
	if err != nil {
		return internal.Actor{}, internal.NewInternalError("failed to load user", err)
	}
	if row == nil || !row.IsActive {
		return internal.Actor{}, internal.ErrInvalidToken()
	}
	return internal.Actor{UserID: row.ID, Role: row.Role}, nil
}

// Me returns the authenticated user.
func (s *Service) Me(ctx context.Context) (*user.User, error) {
	actor, ok := internal.ActorFromContext(ctx)
	if !ok {
		return nil, internal.ErrAuthRequired()
	}
	row, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load user", err)
	}
	if row == nil {
		return nil, internal.NewNotFoundError("user not found", internal.ErrCodeUserNotFound)
	}
	return user.FromDataModel(row), nil
}
