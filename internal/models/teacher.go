package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/samber/lo"
)

// UnavailableSlot is a cell a teacher has declared unavailable.
type UnavailableSlot struct {
	Day    int    `json:"day"`
	Slot   int    `json:"slot"`
	Reason string `json:"reason,omitempty"`
}

// Teacher is the directory entry consulted before a teacher is placed in a cell.
type Teacher struct {
	ID               string         `db:"id" json:"id"`
	FullName         string         `db:"full_name" json:"fullName"`
	Email            string         `db:"email" json:"email"`
	AvailableDays    pq.Int64Array  `db:"available_days" json:"availableDays"`
	UnavailableSlots types.JSONText `db:"unavailable_slots" json:"unavailableSlots"`
	MaxWeeklyHours   int            `db:"max_weekly_hours" json:"maxWeeklyHours"`
	Active           bool           `db:"active" json:"active"`
	CreatedAt        time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updatedAt"`
}

// AvailableOn reports whether the teacher works on day. An empty list means no restriction.
func (t Teacher) AvailableOn(day int) bool {
	if len(t.AvailableDays) == 0 {
		return true
	}
	return lo.Contains([]int64(t.AvailableDays), int64(day))
}

// Unavailable decodes the declared unavailable cells.
func (t Teacher) Unavailable() ([]UnavailableSlot, error) {
	if len(t.UnavailableSlots) == 0 {
		return nil, nil
	}
	var slots []UnavailableSlot
	if err := json.Unmarshal(t.UnavailableSlots, &slots); err != nil {
		return nil, fmt.Errorf("decode unavailable slots for teacher %s: %w", t.ID, err)
	}
	return slots, nil
}

// BlockedAt returns the unavailability entry covering the cell, if any.
func (t Teacher) BlockedAt(day, slot int) (UnavailableSlot, bool, error) {
	slots, err := t.Unavailable()
	if err != nil {
		return UnavailableSlot{}, false, err
	}
	entry, ok := lo.Find(slots, func(item UnavailableSlot) bool {
		return item.Day == day && item.Slot == slot
	})
	return entry, ok, nil
}
