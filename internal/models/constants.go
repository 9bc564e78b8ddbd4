package models

const (
	StepSelectTable = "select_table"
	StepSelectDate  = "select_date"
	StepSelectSlot  = "select_slot"
	StepGuestData   = "guest_data"
	StepReady       = "ready"
)

const (
	// DefaultSessionTTL время жизни сессии мастера в секундах
	DefaultSessionTTL = 30 * 60

	// DefaultHorizonDays горизонт предложения дат
	DefaultHorizonDays = 28

	// RateLimitRequests количество запросов в окне на сессию
	RateLimitRequests = 20

	// RateLimitWindow окно ограничения частоты в секундах
	RateLimitWindow = 60

	// DefaultExportRangeMonthsBefore/After диапазон выгрузки по умолчанию
	DefaultExportRangeMonthsBefore = 1
	DefaultExportRangeMonthsAfter  = 2
)
