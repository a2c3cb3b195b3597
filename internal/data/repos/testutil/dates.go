package testutil

import (
	"testing"
	"time"

	"gorm.io/datatypes"

	types "github.com/yungbote/tasktracker-backend/internal/domain"
)

func MustDate(tb testing.TB, s string) datatypes.Date {
	tb.Helper()
	t, err := time.Parse(types.DateLayout, s)
	if err != nil {
		tb.Fatalf("parse date %q: %v", s, err)
	}
	return types.NewDate(t)
}
