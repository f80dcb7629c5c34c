package domain

import "fmt"

// Action enumerates mutations recorded by the store.
type Action string

// Store actions captured for logging and export journals.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// Change records a mutation applied inside a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Code   string
	Before any
	After  any
}

// ChangeAction classifies a diff item.
type ChangeAction string

// Diff actions.
const (
	ChangeAdded    ChangeAction = "added"
	ChangeModified ChangeAction = "modified"
	ChangeDeleted  ChangeAction = "deleted"
)

// ChangeItem is one entry of the difference between the current catalog and
// the originally loaded one.
type ChangeItem struct {
	Kind   EntityType
	Code   string
	Action ChangeAction
	Detail string
	// Relation is set for relation items.
	Relation Relation
}

// RelationCode renders the code of a relation change item.
func RelationCode(parent, child string) string {
	return fmt.Sprintf("%s → %s", parent, child)
}

func (c ChangeItem) String() string {
	if c.Detail == "" {
		return fmt.Sprintf("%s %s %s", c.Action, c.Kind, c.Code)
	}
	return fmt.Sprintf("%s %s %s: %s", c.Action, c.Kind, c.Code, c.Detail)
}
