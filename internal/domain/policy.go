package domain

// Operation enumerates the guarded ticket actions.
type Operation string

const (
	OpView   Operation = "view"
	OpReply  Operation = "reply"
	OpUpdate Operation = "update"
	OpAssign Operation = "assign"
	OpDelete Operation = "delete"
)

// CanAccess answers whether the actor may perform op on the ticket.
// Ownership or a staff role grants everything except delete, which is
// reserved to the owner. Unknown roles and operations are denied.
func CanAccess(actor Actor, ticket *Ticket, op Operation) bool {
	if ticket == nil || !actor.Role.Known() {
		return false
	}
	isOwner := actor.ID == ticket.OwnerID
	switch op {
	case OpView, OpReply, OpUpdate, OpAssign:
		return isOwner || actor.Role.IsStaff()
	case OpDelete:
		return isOwner
	}
	return false
}
