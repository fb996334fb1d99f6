package types

import "encoding/json"

// VariantError is implemented by every error variant of every operation
// family. Variant is the wire name of the variant.
type VariantError interface {
	error
	Variant() string
}

// Result is the outcome of one operation item: the transaction id on
// success or a typed error of the operation's family.
type Result[E VariantError] struct {
	TxID uint64
	Err  E
}

type (
	MintResult                     = Result[MintError]
	TransferResult                 = Result[TransferError]
	TransferFromResult             = Result[TransferFromError]
	ApproveTokenResult             = Result[ApproveTokenError]
	ApproveCollectionResult        = Result[ApproveCollectionError]
	RevokeTokenApprovalResult      = Result[RevokeTokenApprovalError]
	RevokeCollectionApprovalResult = Result[RevokeCollectionApprovalError]
)

func Ok[E VariantError](txID uint64) *Result[E] {
	return &Result[E]{TxID: txID}
}

func Fail[E VariantError](err E) *Result[E] {
	return &Result[E]{Err: err}
}

func (r Result[E]) IsOk() bool { return any(r.Err) == nil }

// MarshalJSON encodes {"Ok":<id>} or {"Err":{"<Variant>":<payload>}}.
func (r Result[E]) MarshalJSON() ([]byte, error) {
	if r.IsOk() {
		return json.Marshal(map[string]uint64{"Ok": r.TxID})
	}
	payload, err := json.Marshal(r.Err)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]map[string]json.RawMessage{
		"Err": {r.Err.Variant(): payload},
	})
}
