package types

// ApprovalInfo is one grant of transfer rights to Spender.
//
// FromSubaccount names the approving owner's subaccount. ExpiresAt and
// CreatedAtTime are ledger timestamps in nanoseconds since the Unix epoch.
type ApprovalInfo struct {
	Spender        Account    `json:"spender"`
	FromSubaccount Subaccount `json:"from_subaccount,omitempty"`
	ExpiresAt      *uint64    `json:"expires_at,omitempty"`
	Memo           []byte     `json:"memo,omitempty"`
	CreatedAtTime  *uint64    `json:"created_at_time,omitempty"`
}

// LiveAt reports whether the approval may still be honoured at ledger time now.
func (a ApprovalInfo) LiveAt(now uint64) bool {
	return a.ExpiresAt == nil || *a.ExpiresAt > now
}

type TokenApproval struct {
	TokenID      uint64       `json:"token_id"`
	ApprovalInfo ApprovalInfo `json:"approval_info"`
}

type CollectionApproval struct {
	ApprovalInfo ApprovalInfo `json:"approval_info"`
}
