// Package service contains the business rules of the village gacha.
//
// THE THREE LAYERS:
//
//	Handler (HTTP)      → parses requests, writes the envelope
//	Service (this pkg)  → validates input, enforces ownership and limits
//	Repository (SQLite) → reads and writes rows
//
// Services take repository interfaces and the in-memory village catalog;
// they never see *http.Request or *sql.DB. Every user-scoped method takes
// the caller's user ID explicitly, taken by the handler from the verified
// token, so ownership checks never depend on ambient state.
//
// Errors returned to handlers are *apperror.AppError values (possibly
// wrapped). Anything else is an internal failure and is logged here.
package service

import (
	"time"

	"github.com/sakif/village-gacha/internal/model"
	"github.com/sakif/village-gacha/internal/repository"
)

// Pagination limits shared by every list endpoint.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest is a zero-based page number and a page size.
type PageRequest struct {
	Page int
	Size int
}

// normalize applies the defaults: page < 0 becomes 0, size <= 0 becomes
// DefaultPageSize and size is capped at MaxPageSize.
func (p PageRequest) normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	switch {
	case p.Size <= 0:
		p.Size = DefaultPageSize
	case p.Size > MaxPageSize:
		p.Size = MaxPageSize
	}
	return p
}

func (p PageRequest) listOptions() repository.ListOptions {
	return repository.ListOptions{Limit: p.Size, Offset: model.Offset(p.Page, p.Size)}
}

// DayPolicy decides which calendar day an instant belongs to. The daily
// draw limit and the default visit date both follow it, so a user in Seoul
// gets a fresh draw at local midnight regardless of the server's zone.
type DayPolicy struct {
	loc *time.Location
}

// NewDayPolicy returns a policy for loc; nil means UTC.
func NewDayPolicy(loc *time.Location) DayPolicy {
	if loc == nil {
		loc = time.UTC
	}
	return DayPolicy{loc: loc}
}

// Location is the policy's time zone.
func (p DayPolicy) Location() *time.Location {
	return p.location()
}

// Bounds returns [start of t's day, start of the next day).
func (p DayPolicy) Bounds(t time.Time) (start, end time.Time) {
	local := t.In(p.location())
	y, m, d := local.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, p.location())
	// AddDate rather than +24h: DST days are 23 or 25 hours long.
	return start, start.AddDate(0, 0, 1)
}

// Date formats t's calendar day as YYYY-MM-DD.
func (p DayPolicy) Date(t time.Time) string {
	return t.In(p.location()).Format(model.VisitDateLayout)
}

// location guards the zero DayPolicy.
func (p DayPolicy) location() *time.Location {
	if p.loc == nil {
		return time.UTC
	}
	return p.loc
}
