package models

import "time"

// GuestState holds the in-progress wizard selection of one guest session.
// It is presentation state only: nothing here reserves a slot.
type GuestState struct {
	Token       string
	CurrentStep string
	TempData    map[string]interface{}
}

func (s *GuestState) GetInt64(key string) int64 {
	if s.TempData == nil {
		return 0
	}
	val, ok := s.TempData[key]
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	default:
		return 0
	}
}

func (s *GuestState) GetString(key string) string {
	if s.TempData == nil {
		return ""
	}
	val, ok := s.TempData[key]
	if !ok {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func (s *GuestState) GetDate(key string) time.Time {
	if s.TempData == nil {
		return time.Time{}
	}
	val, ok := s.TempData[key]
	if !ok {
		return time.Time{}
	}
	switch v := val.(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			t, err = time.Parse(time.RFC3339, v)
			if err != nil {
				return time.Time{}
			}
		}
		return t
	default:
		return time.Time{}
	}
}
