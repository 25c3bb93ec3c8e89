package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDBName(t *testing.T) {
	got, err := WithDBName("postgres://u:p@localhost:5432/postgres?sslmode=disable", "transit")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost:5432/transit?sslmode=disable", got)

	got, err = WithDBName("postgresql://u@db:5432/old", "/new")
	require.NoError(t, err)
	assert.Equal(t, "postgresql://u@db:5432/new", got)

	_, err = WithDBName("mysql://u@db/old", "x")
	assert.Error(t, err)

	_, err = WithDBName("", "x")
	assert.Error(t, err)
}
