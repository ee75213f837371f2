package vault

import (
	"bytes"

	"github.com/awnumar/memguard"
	"github.com/pkg/errors"
)

// ChangeMaster re-seals every entry under a key derived from newMaster and
// a freshly drawn salt. This is the only operation that changes a vault's
// salt. The file is replaced in a single atomic write, so on failure the
// vault still opens with oldMaster.
func (e *Engine) ChangeMaster(path string, oldMaster, newMaster []byte) error {
	defer Zero(oldMaster)
	defer Zero(newMaster)

	// Unlocking wipes oldMaster, which may share memory with newMaster.
	next := memguard.NewBufferFromBytes(bytes.Clone(newMaster))
	defer next.Destroy()

	s, err := e.unlock(path, oldMaster)
	if err != nil {
		return err
	}
	defer s.close()

	salt, err := freshSalt(s.file.Salt)
	if err != nil {
		return err
	}
	key := memguard.NewBufferFromBytes(Derive(next.Bytes(), salt, e.iterations))
	s.key.Destroy()
	s.key = key
	s.file = VaultFile{Salt: salt}

	if err := e.persist(path, s); err != nil {
		return errors.Wrap(err, "master password unchanged")
	}
	e.log.Debug().Str("op", "change-master").Str("path", path).
		Int("entries", len(s.entries)).Msg("vault re-keyed")
	return nil
}

func freshSalt(old []byte) ([]byte, error) {
	for {
		salt, err := NewSalt()
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(salt, old) {
			return salt, nil
		}
	}
}
