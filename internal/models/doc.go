// Package models defines the core domain models for group delivery orders.
//
// # Models
//
//   - GroupOrder: one shared order placed with a single restaurant
//   - Participant: one user's item selection and computed share inside a GroupOrder
//   - LineItem: a single item a participant ordered
//   - UserStatistics: per-user order totals, top restaurants, top items and payment history
//   - Restaurant: a catalog entry with its default delivery fee and menu
//
// # Derived values
//
// Participant.Subtotal, FeeShare, TotalAmount, Paid and Change as well as
// GroupOrder.CreatorChange are derived. They are written only by the
// calculator package, which recomputes all of them at the end of every
// mutation. Nothing else should assign them.
//
// # Money
//
// Amounts are decimal.Decimal values in a single currency. Inputs must be
// representable in minor units (cents); see IsMinorUnits.
//
// # Relationships
//
// Relationships use ID strings instead of pointers. A GroupOrder owns its
// participants; UserStatistics is owned by the user and only updated by order
// operations.
package models
