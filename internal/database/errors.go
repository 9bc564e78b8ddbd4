package database

import (
	"errors"
	"fmt"
)

var (
	// ErrTableNotFound стол отсутствует в реестре
	ErrTableNotFound = errors.New("table not found")

	// ErrInvalidSelection дата или слот вне текущего предложения
	ErrInvalidSelection = errors.New("date or slot is not offered")

	// ErrSlotTaken тройка (стол, дата, слот) уже занята
	ErrSlotTaken = errors.New("slot is already taken")

	// ErrCapacityExceeded размер компании больше вместимости стола
	ErrCapacityExceeded = errors.New("party size exceeds table capacity")

	// ErrStorageUnavailable хранилище недоступно, исход коммита неизвестен
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// CapacityError carries the table's capacity so callers can tell the guest
// the actual limit, not just that the limit was exceeded.
type CapacityError struct {
	TableID  int64
	Capacity int64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("party size exceeds capacity %d of table %d", e.Capacity, e.TableID)
}

func (e *CapacityError) Unwrap() error {
	return ErrCapacityExceeded
}
