package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrProbeNotFound   = errors.New("probe_not_found")
	ErrNotProbeOwner   = errors.New("not_probe_owner")
	ErrInvalidTag      = errors.New("invalid_tag")
	ErrInvalidLocation = errors.New("invalid_location")
)

// UpdateRequest carries owner-editable probe fields. Nil pointers leave the
// current value untouched. An empty City clears the location override.
type UpdateRequest struct {
	ProbeID snowflake.ID
	UserID  snowflake.ID
	Name    *string
	Tags    []Tag
	City    *string
	Country *string
}

type Service interface {
	GetByID(ctx context.Context, id snowflake.ID) (*Probe, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]Probe, error)
	Update(ctx context.Context, req UpdateRequest) (*Probe, error)
	// Unassign detaches the probe from its owner, resets owner-editable
	// fields and notifies the previous owner.
	Unassign(ctx context.Context, probeID snowflake.ID) error
	// SweepExpired notifies owners of probes offline for two days and
	// removes adopted probes offline for thirty.
	SweepExpired(ctx context.Context) error
	// NotifyOutdated tells owners their probe runs an outdated agent.
	NotifyOutdated(ctx context.Context) error
}
