package sync

import "time"

var DefaultThresholds = Thresholds{
	Online: 10 * time.Minute,
	Idle:   60 * time.Minute,
}

// MergeDevice объединяет сохраненную запись устройства с новым контактом.
// Время контакта, IP и лицензия обновляются всегда, имя только непустым значением,
// счетчик ожидающих записей только если устройство его сообщило.
func MergeDevice(existing *Device, in DeviceTouch) Device {
	var merged Device
	if existing != nil {
		merged = *existing
	} else {
		merged = Device{
			TenantID:         in.TenantID,
			DeviceIdentifier: in.DeviceIdentifier,
			CreatedAt:        in.At,
		}
	}

	merged.LastSyncAt = in.At
	merged.LastIP = in.IP
	if in.LicenseID != "" {
		merged.LicenseID = in.LicenseID
	}
	if in.Name != "" {
		merged.DeviceName = in.Name
	}
	if in.PendingCount != nil {
		merged.PendingTransactions = *in.PendingCount
	}

	return merged
}

// PresenceStatus классифицирует устройство по давности последнего контакта
func PresenceStatus(lastSyncAt, now time.Time, t Thresholds) Status {
	age := now.Sub(lastSyncAt)
	switch {
	case age < t.Online:
		return StatusOnline
	case age < t.Idle:
		return StatusIdle
	default:
		return StatusOffline
	}
}
