package types

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SubaccountSize is the only accepted length for a non-default subaccount.
const SubaccountSize = 32

var (
	ErrEmptyPrincipal    = errors.New("account owner is required")
	ErrInvalidSubaccount = fmt.Errorf("subaccount must be empty or %d bytes", SubaccountSize)
)

// Principal is the opaque, already verified identity supplied by the host.
type Principal string

// Subaccount discriminates accounts of the same principal. Nil, empty and
// all-zero subaccounts are the same default subaccount.
type Subaccount []byte

func (s Subaccount) IsDefault() bool {
	for _, b := range s {
		if b != 0 {
			return false
		}
	}
	return true
}

// Hex returns the canonical text form: "" for the default subaccount.
func (s Subaccount) Hex() string {
	if s.IsDefault() {
		return ""
	}
	return hex.EncodeToString(s)
}

func (s Subaccount) Equal(o Subaccount) bool {
	if s.IsDefault() || o.IsDefault() {
		return s.IsDefault() == o.IsDefault()
	}
	return bytes.Equal(s, o)
}

func (s Subaccount) Validate() error {
	if s.IsDefault() {
		return nil
	}
	if len(s) != SubaccountSize {
		return ErrInvalidSubaccount
	}
	return nil
}

func (s Subaccount) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Hex())
}

func (s *Subaccount) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := ParseSubaccount(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSubaccount decodes the hex text form; "" yields the default subaccount.
func ParseSubaccount(v string) (Subaccount, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("subaccount: %w", err)
	}
	return Subaccount(b), nil
}

// Account is the principal+subaccount pair used for owners and spenders.
type Account struct {
	Owner      Principal  `json:"owner"`
	Subaccount Subaccount `json:"subaccount,omitempty"`
}

func NewAccount(owner Principal, sub Subaccount) Account {
	return Account{Owner: owner, Subaccount: sub}.Canonical()
}

// Canonical drops a default subaccount so that equal accounts compare equal
// field by field.
func (a Account) Canonical() Account {
	if a.Subaccount.IsDefault() {
		return Account{Owner: a.Owner}
	}
	sub := make(Subaccount, len(a.Subaccount))
	copy(sub, a.Subaccount)
	return Account{Owner: a.Owner, Subaccount: sub}
}

func (a Account) Equal(o Account) bool {
	return a.Owner == o.Owner && a.Subaccount.Equal(o.Subaccount)
}

// Key is the canonical string form. Keys of different accounts never
// collide and sort by principal first.
func (a Account) Key() string {
	if sub := a.Subaccount.Hex(); sub != "" {
		return string(a.Owner) + "." + sub
	}
	return string(a.Owner)
}

func (a Account) String() string { return a.Key() }

func (a Account) Validate() error {
	if strings.TrimSpace(string(a.Owner)) == "" {
		return ErrEmptyPrincipal
	}
	return a.Subaccount.Validate()
}

// Less orders accounts by principal, then by canonical subaccount.
func (a Account) Less(o Account) bool {
	if a.Owner != o.Owner {
		return a.Owner < o.Owner
	}
	return a.Subaccount.Hex() < o.Subaccount.Hex()
}
