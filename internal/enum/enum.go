package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending    = "pending"
	OrderStatusInProgress = "in_progress"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

const (
	CancelDecisionPending  = "pending"
	CancelDecisionWaste    = "waste"
	CancelDecisionReturned = "returned"
)

// ── Group B: Record provenance (CHECK constrained in DB) ──

const (
	CancellationSourceOrderCancelled = "order_cancelled"
	CancellationSourceOrderEdited    = "order_edited"
)

const (
	OrderSourcePOS         = "pos"
	OrderSourceDeliveryApp = "delivery_app"
	OrderSourceQRScan      = "qr_scan"
)

const (
	OrderTypeDineIn   = "dine_in"
	OrderTypeTakeaway = "takeaway"
	OrderTypeDelivery = "delivery"
)

const (
	ModifierTypeExtra   = "extra"
	ModifierTypeRemoval = "removal"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleOwner   = "owner"
	UserRoleManager = "manager"
	UserRoleCashier = "cashier"
	UserRoleKitchen = "kitchen"
)

const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed_amount"
)
