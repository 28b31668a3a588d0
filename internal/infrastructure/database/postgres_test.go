package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestDBConfig_DSN(t *testing.T) {
	cfg := DBConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "postfinance_db", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=postfinance_db sslmode=disable", cfg.DSN())
}

func TestErrorCode(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})
	assert.Equal(t, "23505", ErrorCode(wrapped))
	assert.Empty(t, ErrorCode(errors.New("connection refused")))
	assert.Empty(t, ErrorCode(nil))
}
