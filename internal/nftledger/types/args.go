package types

type MintArg struct {
	TokenID  uint64   `json:"token_id"`
	Owner    Account  `json:"owner"`
	Metadata Metadata `json:"metadata,omitempty"`
}

type TransferArg struct {
	FromSubaccount Subaccount `json:"from_subaccount,omitempty"`
	To             Account    `json:"to"`
	TokenID        uint64     `json:"token_id"`
	Memo           []byte     `json:"memo,omitempty"`
	CreatedAtTime  *uint64    `json:"created_at_time,omitempty"`
}

type TransferFromArg struct {
	SpenderSubaccount Subaccount `json:"spender_subaccount,omitempty"`
	From              Account    `json:"from"`
	To                Account    `json:"to"`
	TokenID           uint64     `json:"token_id"`
	Memo              []byte     `json:"memo,omitempty"`
	CreatedAtTime     *uint64    `json:"created_at_time,omitempty"`
}

type ApproveTokenArg struct {
	TokenID      uint64       `json:"token_id"`
	ApprovalInfo ApprovalInfo `json:"approval_info"`
}

type ApproveCollectionArg struct {
	ApprovalInfo ApprovalInfo `json:"approval_info"`
}

// RevokeTokenApprovalArg revokes the caller's approvals on one token. A nil
// Spender revokes every live approval of the token.
type RevokeTokenApprovalArg struct {
	TokenID        uint64     `json:"token_id"`
	Spender        *Account   `json:"spender,omitempty"`
	FromSubaccount Subaccount `json:"from_subaccount,omitempty"`
	Memo           []byte     `json:"memo,omitempty"`
	CreatedAtTime  *uint64    `json:"created_at_time,omitempty"`
}

// RevokeCollectionApprovalArg revokes collection approvals of the caller's
// account. A nil Spender revokes all of them.
type RevokeCollectionApprovalArg struct {
	Spender        *Account   `json:"spender,omitempty"`
	FromSubaccount Subaccount `json:"from_subaccount,omitempty"`
	Memo           []byte     `json:"memo,omitempty"`
	CreatedAtTime  *uint64    `json:"created_at_time,omitempty"`
}

type IsApprovedArg struct {
	Spender        Account    `json:"spender"`
	FromSubaccount Subaccount `json:"from_subaccount,omitempty"`
	TokenID        uint64     `json:"token_id"`
}

// Standard is an entry of the supported standards list.
type Standard struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}
