package types

import "fmt"

// Error codes carried by GenericError.
const (
	ErrCodeStorage          uint64 = 1
	ErrCodeInvalidAccount   uint64 = 2
	ErrCodeMemoTooLarge     uint64 = 3
	ErrCodeInvalidMetadata  uint64 = 4
	ErrCodeExpiredApproval  uint64 = 5
	ErrCodeSelfApproval     uint64 = 6
	ErrCodeTokenIDOverflow  uint64 = 7
	ErrCodeTooManyApprovals uint64 = 8
	ErrCodeBatchTooLarge    uint64 = 100
)

// Each operation family has its own closed error type. A variant belongs to
// a family by implementing that family's marker method.

type MintError interface {
	error
	Variant() string
	mintError()
}

type TransferError interface {
	error
	Variant() string
	transferError()
}

type TransferFromError interface {
	error
	Variant() string
	transferFromError()
}

type ApproveTokenError interface {
	error
	Variant() string
	approveTokenError()
}

type ApproveCollectionError interface {
	error
	Variant() string
	approveCollectionError()
}

type RevokeTokenApprovalError interface {
	error
	Variant() string
	revokeTokenApprovalError()
}

type RevokeCollectionApprovalError interface {
	error
	Variant() string
	revokeCollectionApprovalError()
}

// ── Variants ────────────────────────────────────────────────────────────────

type NonExistingTokenID struct{}

func (NonExistingTokenID) Error() string   { return "token does not exist" }
func (NonExistingTokenID) Variant() string { return "NonExistingTokenId" }

func (NonExistingTokenID) transferError()            {}
func (NonExistingTokenID) transferFromError()        {}
func (NonExistingTokenID) approveTokenError()        {}
func (NonExistingTokenID) revokeTokenApprovalError() {}

type InvalidRecipient struct{}

func (InvalidRecipient) Error() string   { return "recipient already owns the token" }
func (InvalidRecipient) Variant() string { return "InvalidRecipient" }

func (InvalidRecipient) transferError()     {}
func (InvalidRecipient) transferFromError() {}

type Unauthorized struct{}

func (Unauthorized) Error() string   { return "caller is not authorized" }
func (Unauthorized) Variant() string { return "Unauthorized" }

func (Unauthorized) mintError()                {}
func (Unauthorized) transferError()            {}
func (Unauthorized) transferFromError()        {}
func (Unauthorized) approveTokenError()        {}
func (Unauthorized) revokeTokenApprovalError() {}

type TooOld struct{}

func (TooOld) Error() string   { return "created_at_time is too old" }
func (TooOld) Variant() string { return "TooOld" }

func (TooOld) transferError()                 {}
func (TooOld) transferFromError()             {}
func (TooOld) approveTokenError()             {}
func (TooOld) approveCollectionError()        {}
func (TooOld) revokeTokenApprovalError()      {}
func (TooOld) revokeCollectionApprovalError() {}

type CreatedInFuture struct {
	LedgerTime uint64 `json:"ledger_time"`
}

func (e CreatedInFuture) Error() string {
	return fmt.Sprintf("created_at_time is ahead of ledger time %d", e.LedgerTime)
}
func (CreatedInFuture) Variant() string { return "CreatedInFuture" }

func (CreatedInFuture) transferError()                 {}
func (CreatedInFuture) transferFromError()             {}
func (CreatedInFuture) approveTokenError()             {}
func (CreatedInFuture) approveCollectionError()        {}
func (CreatedInFuture) revokeTokenApprovalError()      {}
func (CreatedInFuture) revokeCollectionApprovalError() {}

type Duplicate struct {
	DuplicateOf uint64 `json:"duplicate_of"`
}

func (e Duplicate) Error() string {
	return fmt.Sprintf("duplicate of transaction %d", e.DuplicateOf)
}
func (Duplicate) Variant() string { return "Duplicate" }

func (Duplicate) transferError()     {}
func (Duplicate) transferFromError() {}

type TokenIDAlreadyExists struct{}

func (TokenIDAlreadyExists) Error() string   { return "token id already exists" }
func (TokenIDAlreadyExists) Variant() string { return "TokenIdAlreadyExists" }
func (TokenIDAlreadyExists) mintError()      {}

type SupplyCapReached struct{}

func (SupplyCapReached) Error() string   { return "supply cap reached" }
func (SupplyCapReached) Variant() string { return "SupplyCapReached" }
func (SupplyCapReached) mintError()      {}

type ApprovalDoesNotExist struct{}

func (ApprovalDoesNotExist) Error() string   { return "approval does not exist" }
func (ApprovalDoesNotExist) Variant() string { return "ApprovalDoesNotExist" }

func (ApprovalDoesNotExist) revokeTokenApprovalError()      {}
func (ApprovalDoesNotExist) revokeCollectionApprovalError() {}

type GenericError struct {
	ErrorCode uint64 `json:"error_code"`
	Message   string `json:"message"`
}

func (e GenericError) Error() string {
	return fmt.Sprintf("generic error %d: %s", e.ErrorCode, e.Message)
}
func (GenericError) Variant() string { return "GenericError" }

func (GenericError) mintError()                     {}
func (GenericError) transferError()                 {}
func (GenericError) transferFromError()             {}
func (GenericError) approveTokenError()             {}
func (GenericError) approveCollectionError()        {}
func (GenericError) revokeTokenApprovalError()      {}
func (GenericError) revokeCollectionApprovalError() {}

// GenericBatchError rejects a whole batch; it is reported in the first slot.
type GenericBatchError struct {
	ErrorCode uint64 `json:"error_code"`
	Message   string `json:"message"`
}

func (e GenericBatchError) Error() string {
	return fmt.Sprintf("batch error %d: %s", e.ErrorCode, e.Message)
}
func (GenericBatchError) Variant() string { return "GenericBatchError" }

func (GenericBatchError) transferError()                 {}
func (GenericBatchError) transferFromError()             {}
func (GenericBatchError) approveTokenError()             {}
func (GenericBatchError) approveCollectionError()        {}
func (GenericBatchError) revokeTokenApprovalError()      {}
func (GenericBatchError) revokeCollectionApprovalError() {}
