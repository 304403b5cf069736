package store

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN_MySQLFromParts(t *testing.T) {
	dsn, err := buildDSN(Options{
		Driver:   "mysql",
		Host:     "db:3306",
		User:     "agro",
		Password: "pw",
		Database: "agroclima",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "agro:pw@tcp(db:3306)/agroclima"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
}

func TestBuildDSN_MySQLForcesParseTime(t *testing.T) {
	dsn, err := buildDSN(Options{Driver: "mysql", DSN: "u:p@tcp(localhost:3306)/agro"})
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
}

func TestBuildDSN_SQLiteRequiresDSN(t *testing.T) {
	_, err := buildDSN(Options{Driver: "sqlite3"})
	assert.Error(t, err)
}

func TestDateValue_Scan(t *testing.T) {
	tests := []struct {
		name string
		src  interface{}
		want string
	}{
		{"time", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "2024-03-01"},
		{"bytes", []byte("2024-03-02"), "2024-03-02"},
		{"datetime string", "2024-03-03 00:00:00", "2024-03-03"},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d dateValue
			require.NoError(t, d.Scan(tt.src))
			assert.Equal(t, tt.want, d.String())
		})
	}

	var d dateValue
	assert.Error(t, d.Scan(42))
}
