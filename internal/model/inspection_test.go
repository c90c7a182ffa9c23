package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInspectionRecord_NewerThan(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	earlier := now.Add(-time.Hour)
	later := now.Add(time.Hour)
	r := InspectionRecord{Timestamp: now}

	assert.True(t, r.NewerThan(nil))
	assert.True(t, r.NewerThan(&earlier))
	assert.True(t, r.NewerThan(&now), "equal timestamps: last write wins")
	assert.False(t, r.NewerThan(&later))
}

func TestFindHive(t *testing.T) {
	t.Parallel()

	hives := []Hive{{ID: "a", Name: "Main Hive"}, {ID: "b", Name: "North Hive"}}
	h := FindHive(hives, "b")
	if assert.NotNil(t, h) {
		assert.Equal(t, "North Hive", h.Name)
	}
	assert.Nil(t, FindHive(hives, "c"))
	assert.Nil(t, FindHive(nil, "a"))
}
