package models

// AddressLength is the fixed length of the ledger's textual address format.
const AddressLength = 39

// IsValidAddress reports whether addr matches the ledger's fixed-length
// base32 address format. It does not check that the address exists on the
// ledger; that is an account lookup.
func IsValidAddress(addr string) bool {
	if len(addr) != AddressLength {
		return false
	}
	for i := 0; i < len(addr); i++ {
		c := addr[i]
		if (c < 'A' || c > 'Z') && (c < '2' || c > '7') {
			return false
		}
	}
	return true
}
