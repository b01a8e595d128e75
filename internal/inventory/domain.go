package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the lifecycle states of a tracked unit.
type Status string

const (
	// StatusAvailable marks a unit that can be reserved or delivered.
	StatusAvailable Status = "available"
	// StatusReserved marks a unit held for a pending order.
	StatusReserved Status = "reserved"
	// StatusDelivered marks a unit shipped to a customer.
	StatusDelivered Status = "delivered"
	// StatusReturned marks a unit received back from a customer.
	StatusReturned Status = "returned"
)

// Source enumerates how a batch entered the warehouse.
type Source string

const (
	// SourceNewArrival means the batch came from a received package.
	SourceNewArrival Source = "new_arrival"
	// SourceFromReturn means the batch was created at return intake.
	SourceFromReturn Source = "from_return"
)

// HistoryAction enumerates state-changing actions recorded per serial number.
type HistoryAction string

const (
	ActionAssigned      HistoryAction = "assigned"
	ActionDelivered     HistoryAction = "delivered"
	ActionReturned      HistoryAction = "returned"
	ActionMovedToStock  HistoryAction = "moved_to_inventory"
	ActionKeptInReturns HistoryAction = "kept_in_returns"
)

// ReturnDecision enumerates the disposition choices for a received return.
type ReturnDecision string

const (
	DecisionPending       ReturnDecision = "pending"
	DecisionMoveToStock   ReturnDecision = "move_to_inventory"
	DecisionKeepInReturns ReturnDecision = "keep_in_returns"
)

// ReturnStatus enumerates the lifecycle of a return record.
type ReturnStatus string

const (
	ReturnStatusReceived      ReturnStatus = "received"
	ReturnStatusMovedToStock  ReturnStatus = "moved_to_inventory"
	ReturnStatusKeptInReturns ReturnStatus = "kept_in_returns"
)

// Batch is one receiving lot of N units of a single SKU. The four status
// counters always sum to TotalQuantity, as do the two serial counters.
type Batch struct {
	ID                string
	SKU               string
	ProductName       string
	TotalQuantity     int
	AvailableQuantity int
	ReservedQuantity  int
	DeliveredQuantity int
	ReturnedQuantity  int
	SerialsAssigned   int
	SerialsUnassigned int
	Source            Source
	SourceReference   string
	UnitValue         decimal.Decimal
	ReceivedDate      time.Time
	ReceivedBy        string
	CreatedAt         time.Time
}

// Unit is one physical, individually trackable item. SerialNumber is empty
// until assigned; once assigned it never changes.
type Unit struct {
	ID           string
	BatchID      string
	SerialNumber string
	Status       Status
	DeliveryID   string
	ReturnID     string
	AssignedDate *time.Time
	AssignedBy   string
	CreatedAt    time.Time
}

// HistoryEntry is an append-only audit record for one serial-numbered unit.
type HistoryEntry struct {
	ID           int64
	SerialNumber string
	UnitID       string
	Action       HistoryAction
	ActionDate   time.Time
	ActionBy     string
	Details      string
	ReferenceID  string
}

// Delivery records one unit shipped out of the warehouse.
type Delivery struct {
	ID             string
	SerialNumber   string
	UnitID         string
	BatchID        string
	SKU            string
	ProductName    string
	Carrier        string
	TrackingNumber string
	Address        string
	CustomerName   string
	CustomerPhone  string
	DeliveredBy    string
	CreatedAt      time.Time
}

// Return records one unit received back from a customer, pending disposition.
type Return struct {
	ID             string
	SerialNumber   string
	UnitID         string
	BatchID        string
	DeliveryID     string
	Status         ReturnStatus
	Decision       ReturnDecision
	LPN            string
	TrackingNumber string
	Condition      string
	Quantity       int
	Notes          string
	DecisionNotes  string
	DecisionBy     string
	DecisionAt     *time.Time
	ReceivedBy     string
	CreatedAt      time.Time
}

// Sentinel errors surfaced by engine operations.
var (
	// ErrNotFound indicates a referenced batch, unit or return does not exist.
	ErrNotFound = errors.New("inventory: not found")
	// ErrDuplicateSerial indicates the serial number already exists on another unit.
	ErrDuplicateSerial = errors.New("inventory: duplicate serial number")
	// ErrAlreadyAssigned indicates the unit already carries a serial number.
	ErrAlreadyAssigned = errors.New("inventory: serial number already assigned")
	// ErrInvalidTransition indicates a status change the state machine forbids.
	ErrInvalidTransition = errors.New("inventory: invalid state transition")
	// ErrSerialRequired indicates a delivery without a resolvable serial number.
	ErrSerialRequired = errors.New("inventory: serial number required for delivery")
	// ErrInsufficientInventory indicates not enough available units in the batch.
	ErrInsufficientInventory = errors.New("inventory: insufficient available quantity")
	// ErrDecisionMade indicates a return disposition was already decided.
	ErrDecisionMade = errors.New("inventory: return decision already made")
)

// TransitionError reports an illegal state-machine move, naming both states.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("inventory: invalid state transition from %s to %s", e.From, e.To)
}

// Is makes errors.Is(err, ErrInvalidTransition) match.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Return legality reasons, one per blocking status.
const (
	ReasonNotDelivered    = "not delivered yet"
	ReasonAlreadyReturned = "already returned"
	ReasonReserved        = "is reserved"
)

// CanBeReturned reports whether a unit in the given status may enter return
// intake. Only delivered units qualify; the reason names the blocking status.
func CanBeReturned(status Status) (bool, string) {
	switch status {
	case StatusDelivered:
		return true, ""
	case StatusReturned:
		return false, ReasonAlreadyReturned
	case StatusReserved:
		return false, ReasonReserved
	default:
		return false, ReasonNotDelivered
	}
}

var transitions = map[Status][]Status{
	StatusAvailable: {StatusReserved, StatusDelivered},
	StatusReserved:  {StatusAvailable, StatusDelivered},
	StatusDelivered: {StatusReturned},
	StatusReturned:  {StatusAvailable},
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}
