package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaDeclaresActiveSlotIndex(t *testing.T) {
	s := Schema()

	for _, table := range []string{"appointments", "doctors", "clinics", "event_logs"} {
		assert.Contains(t, s, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, s, "appointments_active_slot_uq")
	assert.Contains(t, s, "WHERE status IN ('pending', 'confirmed')")

	// every statement must be rerunnable
	for _, stmt := range strings.Split(s, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		assert.Contains(t, stmt, "IF NOT EXISTS", stmt)
	}
}
