package vault

import (
	"sort"
	"time"
)

const (
	KeyLen     = 32
	SaltLen    = 16
	NonceLen   = 24
	Magic      = "GVLT"
	Version    = 0x01
	headerLen  = 1 + 4
	sealInfo   = "vault v1 seal"
	filePerm   = 0600
	dirPerm    = 0700
	tempPrefix = "gvlt-*"
)

// Entry is a single stored credential.
type Entry struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Secret    []byte    `json:"secret"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntryMap maps a case-sensitive label to its entry. It only ever exists
// decrypted in memory for the duration of one operation.
type EntryMap map[string]Entry

// Labels returns the labels in lexicographic order.
func (m EntryMap) Labels() []string {
	labels := make([]string, 0, len(m))
	for l := range m {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// VaultFile is the only on-disk representation of a vault.
type VaultFile struct {
	Salt  []byte
	Token []byte
}
