//go:generate go run go.uber.org/mock/mockgen -source=service.go -destination=mock_service_test.go -package=account
package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Service is the account boundary: registration, credential checks, and
// profile maintenance.
type Service interface {
	CreateAccount(ctx context.Context, in NewAccount) (Profile, error)
	ValidateCredentials(ctx context.Context, email, password string) (Profile, error)
	FetchProfile(ctx context.Context, email string) (Profile, error)
	UpdateProfile(ctx context.Context, email string, upd ProfileUpdate) (Profile, error)
	DeleteProfile(ctx context.Context, email string) error
}

type service struct {
	store    Store
	validate *validator.Validate
	cost     int
	now      func() time.Time
	log      *zap.Logger
}

// NewService creates the account service on top of store.
func NewService(store Store, cfg Config, log *zap.Logger) Service {
	if log == nil {
		log = zap.NewNop()
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation("bcryptlen", passwordFitsBcrypt); err != nil {
		log.Panic("Cannot register password validation", zap.Error(err))
	}

	return &service{
		store:    store,
		validate: validate,
		cost:     cfg.bcryptCost(),
		now:      time.Now,
		log:      log,
	}
}

// passwordFitsBcrypt limits the password in bytes; multibyte characters count
// for more than one.
func passwordFitsBcrypt(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= maxPasswordBytes
}

func (s *service) CreateAccount(ctx context.Context, in NewAccount) (Profile, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Role = strings.TrimSpace(in.Role)

	if err := s.validate.Struct(in); err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	hash, err := HashPassword(in.Password, s.cost)
	if err != nil {
		return Profile{}, err
	}

	rec := Record{
		Profile: Profile{
			ID:        uuid.New(),
			Name:      in.Name,
			Email:     in.Email,
			Phone:     in.Phone,
			Role:      in.Role,
			CreatedAt: s.now().UTC(),
		},
		PasswordHash: hash,
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return Profile{}, err
	}

	s.log.Info("Account created", zap.String("email", rec.Email))
	return rec.Profile, nil
}

func (s *service) ValidateCredentials(ctx context.Context, email, password string) (Profile, error) {
	if err := s.validate.Struct(Credentials{Email: email, Password: password}); err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	rec, err := s.store.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Profile{}, ErrInvalidCredentials
		}
		return Profile{}, err
	}

	ok, err := ComparePassword(rec.PasswordHash, password)
	if err != nil {
		s.log.Error("Stored password hash is unusable", zap.String("email", rec.Email), zap.Error(err))
		return Profile{}, ErrInvalidCredentials
	}
	if !ok {
		return Profile{}, ErrInvalidCredentials
	}
	return rec.Profile, nil
}

func (s *service) FetchProfile(ctx context.Context, email string) (Profile, error) {
	rec, err := s.store.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return Profile{}, err
	}
	return rec.Profile, nil
}

func (s *service) UpdateProfile(ctx context.Context, email string, upd ProfileUpdate) (Profile, error) {
	upd.Name = strings.TrimSpace(upd.Name)
	upd.Email = normalizeEmail(upd.Email)
	upd.Role = strings.TrimSpace(upd.Role)

	if err := s.validate.Struct(upd); err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	rec, err := s.store.Update(ctx, normalizeEmail(email), upd)
	if err != nil {
		return Profile{}, err
	}

	s.log.Info("Account updated", zap.String("email", rec.Email))
	return rec.Profile, nil
}

func (s *service) DeleteProfile(ctx context.Context, email string) error {
	if err := s.store.Delete(ctx, normalizeEmail(email)); err != nil {
		return err
	}
	s.log.Info("Account deleted", zap.String("email", normalizeEmail(email)))
	return nil
}
