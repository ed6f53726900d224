// Package lifecycle holds the status transition tables for orders, order
// requests, inquiries and delivery assignments, together with the roles allowed
// to trigger each transition. Every transition request is checked here once.
package lifecycle

import (
	"fmt"
	"slices"

	"storefront-orders/internal/domain"
)

// Actor is the caller requesting a transition.
type Actor struct {
	ID   string
	Role domain.Role
}

// ActorFrom builds an Actor from a resolved identity.
func ActorFrom(id domain.Identity) Actor {
	return Actor{ID: id.AccountID, Role: id.Role}
}

type edge struct {
	to    string
	roles []domain.Role
	// agentRoles may trigger the edge only while holding the delivery assignment.
	agentRoles []domain.Role
}

// Table is one state machine.
type Table struct {
	name     string
	statuses []string
	terminal []string
	edges    map[string][]edge
}

var (
	operators = []domain.Role{domain.RoleModerator, domain.RoleAdmin}
	agents    = []domain.Role{domain.RoleDelivery}
)

// Orders governs domain.Order status.
var Orders = Table{
	name: "order",
	statuses: []string{
		string(domain.OrderStatusNew),
		string(domain.OrderStatusContacted),
		string(domain.OrderStatusProcessing),
		string(domain.OrderStatusCompleted),
		string(domain.OrderStatusCancelled),
	},
	terminal: []string{string(domain.OrderStatusCompleted), string(domain.OrderStatusCancelled)},
	edges: map[string][]edge{
		string(domain.OrderStatusNew): {
			{to: string(domain.OrderStatusContacted), roles: operators},
			{to: string(domain.OrderStatusProcessing), roles: operators, agentRoles: agents},
			{to: string(domain.OrderStatusCancelled), roles: operators},
		},
		string(domain.OrderStatusContacted): {
			{to: string(domain.OrderStatusProcessing), roles: operators, agentRoles: agents},
			{to: string(domain.OrderStatusCancelled), roles: operators},
		},
		string(domain.OrderStatusProcessing): {
			{to: string(domain.OrderStatusCompleted), roles: operators, agentRoles: agents},
			{to: string(domain.OrderStatusCancelled), roles: operators},
		},
	},
}

// OrderRequests governs buy-now leads.
var OrderRequests = Table{
	name: "order request",
	statuses: []string{
		string(domain.RequestNew),
		string(domain.RequestContacted),
		string(domain.RequestCompleted),
		string(domain.RequestCancelled),
	},
	terminal: []string{string(domain.RequestCompleted), string(domain.RequestCancelled)},
	edges: map[string][]edge{
		string(domain.RequestNew): {
			{to: string(domain.RequestContacted), roles: operators},
			{to: string(domain.RequestCompleted), roles: operators, agentRoles: agents},
			{to: string(domain.RequestCancelled), roles: operators},
		},
		string(domain.RequestContacted): {
			{to: string(domain.RequestCompleted), roles: operators, agentRoles: agents},
			{to: string(domain.RequestCancelled), roles: operators},
		},
	},
}

// Inquiries governs product inquiries.
var Inquiries = Table{
	name: "inquiry",
	statuses: []string{
		string(domain.RequestNew),
		string(domain.RequestInProgress),
		string(domain.RequestConverted),
		string(domain.RequestClosed),
	},
	terminal: []string{string(domain.RequestConverted), string(domain.RequestClosed)},
	edges: map[string][]edge{
		string(domain.RequestNew): {
			{to: string(domain.RequestInProgress), roles: operators},
			{to: string(domain.RequestConverted), roles: operators, agentRoles: agents},
			{to: string(domain.RequestClosed), roles: operators},
		},
		string(domain.RequestInProgress): {
			{to: string(domain.RequestConverted), roles: operators, agentRoles: agents},
			{to: string(domain.RequestClosed), roles: operators},
		},
	},
}

// Deliveries governs the delivery sub-state. Only the assigned agent moves it.
var Deliveries = Table{
	name: "delivery",
	statuses: []string{
		string(domain.DeliveryAssigned),
		string(domain.DeliveryOutForDelivery),
		string(domain.DeliveryDelivered),
		string(domain.DeliveryFailed),
	},
	terminal: []string{string(domain.DeliveryDelivered)},
	edges: map[string][]edge{
		string(domain.DeliveryAssigned): {
			{to: string(domain.DeliveryOutForDelivery), agentRoles: agents},
		},
		string(domain.DeliveryOutForDelivery): {
			{to: string(domain.DeliveryDelivered), agentRoles: agents},
			{to: string(domain.DeliveryFailed), agentRoles: agents},
		},
		string(domain.DeliveryFailed): {
			{to: string(domain.DeliveryOutForDelivery), agentRoles: agents},
		},
	},
}

// ForRequest picks the table for a request kind.
func ForRequest(kind domain.RequestKind) (Table, bool) {
	switch kind {
	case domain.KindOrderRequest:
		return OrderRequests, true
	case domain.KindInquiry:
		return Inquiries, true
	}
	return Table{}, false
}

// Known reports whether status belongs to the table.
func (t Table) Known(status string) bool {
	return slices.Contains(t.statuses, status)
}

// Terminal reports whether no transition leaves status.
func (t Table) Terminal(status string) bool {
	return slices.Contains(t.terminal, status)
}

// Check validates moving from → to on behalf of actor. assigned tells whether
// the actor currently holds the delivery assignment of the record. The returned
// error always matches domain.ErrInvalidTransition; when only the actor's role
// is at fault it also matches domain.ErrForbidden.
func (t Table) Check(from, to string, actor Actor, assigned bool) error {
	if !t.Known(to) {
		return fmt.Errorf("%w: unknown %s status %q", domain.ErrInvalidTransition, t.name, to)
	}
	if t.Terminal(from) {
		return fmt.Errorf("%w: %s is %s and cannot change", domain.ErrInvalidTransition, t.name, from)
	}
	if from == to {
		return fmt.Errorf("%w: %s is already %s", domain.ErrInvalidTransition, t.name, to)
	}
	for _, e := range t.edges[from] {
		if e.to != to {
			continue
		}
		if slices.Contains(e.roles, actor.Role) {
			return nil
		}
		if slices.Contains(e.agentRoles, actor.Role) {
			if assigned {
				return nil
			}
			return fmt.Errorf("%w: %w: %s %s → %s requires the delivery assignment", domain.ErrInvalidTransition, domain.ErrForbidden, t.name, from, to)
		}
		return fmt.Errorf("%w: %w: role %s may not move %s %s → %s", domain.ErrInvalidTransition, domain.ErrForbidden, actor.Role, t.name, from, to)
	}
	return fmt.Errorf("%w: %s %s → %s", domain.ErrInvalidTransition, t.name, from, to)
}

// Targets lists the statuses actor may move a record in status from to.
func (t Table) Targets(from string, actor Actor, assigned bool) []string {
	var out []string
	for _, e := range t.edges[from] {
		if t.Check(from, e.to, actor, assigned) == nil {
			out = append(out, e.to)
		}
	}
	return out
}
