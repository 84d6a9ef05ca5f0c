// Package domain defines the core types, capability interfaces, and sentinel
// errors shared by the market engine, its reference collaborators, and the
// service/store/cache adapters around them.
package domain

import "github.com/ethereum/go-ethereum/common"

// Account identifies a balance holder on the asset ledger: a trader, a
// market's custody account, or an outcome set manager's custody account.
type Account = common.Address

// ParseAccount parses a 0x-prefixed hex account string.
func ParseAccount(s string) (Account, bool) {
	if !common.IsHexAddress(s) {
		return Account{}, false
	}
	return common.HexToAddress(s), true
}
