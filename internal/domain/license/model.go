package license

import "time"

// License лицензия дилера, под которой работают его устройства
type License struct {
	ID        string
	Key       string
	TenantID  string
	Active    bool
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// Expired сообщает, истек ли срок действия на момент now
func (l *License) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// Grant результат успешной авторизации
type Grant struct {
	TenantID  string
	LicenseID string
}
