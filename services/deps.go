package services

import (
	"context"
	"time"

	"hospital-billing/audit"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Actor is the already-authenticated caller of a mutating operation.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Deps are the collaborators shared by every service.
type Deps struct {
	Store   *Store
	Catalog Catalog
	Audit   audit.Sink
	Log     *zap.Logger
	TaxRate decimal.Decimal // percent
	Now     func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d Deps) logger() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}

// record sends an audit event. It never fails the caller.
func (d Deps) record(ctx context.Context, actor Actor, action, module, details string) {
	if d.Audit == nil {
		return
	}
	d.Audit.Record(ctx, audit.Event{
		ActorID:   actor.ID,
		ActorName: actor.Name,
		ActorRole: actor.Role,
		Action:    action,
		Module:    module,
		Details:   details,
		At:        d.now(),
	})
}
