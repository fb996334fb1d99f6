package types

// TxKind names the state change recorded by a TransactionRecord.
type TxKind string

const (
	TxMint              TxKind = "mint"
	TxTransfer          TxKind = "transfer"
	TxTransferFrom      TxKind = "transfer_from"
	TxApproveToken      TxKind = "approve_token"
	TxApproveCollection TxKind = "approve_collection"
	TxRevokeToken       TxKind = "revoke_token"
	TxRevokeCollection  TxKind = "revoke_collection"
)

func (k TxKind) Valid() bool {
	switch k {
	case TxMint, TxTransfer, TxTransferFrom, TxApproveToken,
		TxApproveCollection, TxRevokeToken, TxRevokeCollection:
		return true
	}
	return false
}

// TransactionRecord is one immutable entry of the transaction log. ID is
// assigned by the log on append; account fields hold principal text and
// hex subaccounts, empty when the kind does not use them.
type TransactionRecord struct {
	ID                uint64 `json:"id"`
	Kind              TxKind `json:"kind"`
	Timestamp         uint64 `json:"timestamp"`
	TokenID           uint64 `json:"token_id"`
	FromPrincipal     string `json:"from_principal,omitempty"`
	FromSubaccount    string `json:"from_subaccount,omitempty"`
	ToPrincipal       string `json:"to_principal,omitempty"`
	ToSubaccount      string `json:"to_subaccount,omitempty"`
	SpenderPrincipal  string `json:"spender_principal,omitempty"`
	SpenderSubaccount string `json:"spender_subaccount,omitempty"`
	Memo              []byte `json:"memo,omitempty"`
}

func (r *TransactionRecord) SetFrom(a Account) {
	r.FromPrincipal, r.FromSubaccount = string(a.Owner), a.Subaccount.Hex()
}

func (r *TransactionRecord) SetTo(a Account) {
	r.ToPrincipal, r.ToSubaccount = string(a.Owner), a.Subaccount.Hex()
}

func (r *TransactionRecord) SetSpender(a Account) {
	r.SpenderPrincipal, r.SpenderSubaccount = string(a.Owner), a.Subaccount.Hex()
}

// To returns the destination account recorded by mint and transfer kinds.
func (r TransactionRecord) To() (Account, error) {
	sub, err := ParseSubaccount(r.ToSubaccount)
	if err != nil {
		return Account{}, err
	}
	return NewAccount(Principal(r.ToPrincipal), sub), nil
}
