package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	for in, want := range map[string]string{
		"asc":      "ASC",
		" ASC ":    "ASC",
		"desc":     "DESC",
		"":         "DESC",
		"; DROP x": "DESC",
	} {
		assert.Equal(t, want, ValidateSortOrder(in), in)
	}
}
