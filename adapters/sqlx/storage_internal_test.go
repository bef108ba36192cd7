package sqlx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"boards.db", "boards.db?_pragma=busy_timeout(5000)"},
		{":memory:", ":memory:?_pragma=busy_timeout(5000)"},
		{"file:boards.db?mode=rwc", "file:boards.db?mode=rwc&_pragma=busy_timeout(5000)"},
		{"boards.db?_pragma=busy_timeout(100)", "boards.db?_pragma=busy_timeout(100)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sqliteDSN(tt.dsn), tt.dsn)
	}
}
