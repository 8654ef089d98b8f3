package license

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/slog"
)

// Authorizer проверяет ключ лицензии и дилера
type Authorizer interface {
	Authorize(ctx context.Context, key, tenantID string) (Grant, error)
}

// Service проверка лицензий
type Service struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

// NewService создает сервис лицензий
func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With("component", "license"),
		now:  time.Now,
	}
}

// Authorize выдает грант, если ключ существует, активен, не истек
// и принадлежит указанному дилеру.
func (s *Service) Authorize(ctx context.Context, key, tenantID string) (Grant, error) {
	key = strings.TrimSpace(key)
	tenantID = strings.TrimSpace(tenantID)
	if key == "" || tenantID == "" {
		return Grant{}, ErrMissingCredentials
	}

	lic, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, ErrLicenseNotFound) {
			return Grant{}, fmt.Errorf("%w: unknown key", ErrDenied)
		}
		s.log.Error("Failed to load license", "error", err)
		return Grant{}, fmt.Errorf("failed to load license: %w: %w", ErrUnavailable, err)
	}

	switch {
	case !lic.Active:
		return Grant{}, fmt.Errorf("%w: license is inactive", ErrDenied)
	case lic.Expired(s.now()):
		return Grant{}, fmt.Errorf("%w: license expired", ErrDenied)
	case lic.TenantID != tenantID:
		s.log.Warn("License tenant mismatch", "license_id", lic.ID, "tenant_id", tenantID)
		return Grant{}, fmt.Errorf("%w: tenant mismatch", ErrDenied)
	}

	return Grant{TenantID: lic.TenantID, LicenseID: lic.ID}, nil
}
