package vault

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/awnumar/memguard"
	"github.com/pkg/errors"
)

// Store persists VaultFiles. Implementations must make Write and WriteRaw
// atomic: a reader sees either the previous file or the new one.
type Store interface {
	Read(path string) (VaultFile, error)
	Write(path string, vf VaultFile) error
	Exists(path string) bool
	ReadRaw(path string) ([]byte, error)
	WriteRaw(path string, data []byte) error
}

// FileStore keeps each vault as a JSON document on the local filesystem.
type FileStore struct{}

type fileDoc struct {
	Salt  string `json:"salt"`
	Data  string `json:"data"`
	Token string `json:"token,omitempty"`
}

// Read loads and validates the vault at path.
func (FileStore) Read(path string) (VaultFile, error) {
	raw, err := FileStore{}.ReadRaw(path)
	if err != nil {
		return VaultFile{}, err
	}
	return DecodeFile(raw)
}

// Write encodes vf and atomically replaces path with it.
func (FileStore) Write(path string, vf VaultFile) error {
	raw, err := EncodeFile(vf)
	if err != nil {
		return err
	}
	return FileStore{}.WriteRaw(path, raw)
}

// Exists reports whether path is taken. Stat errors other than not-exist
// count as taken so Init never overwrites.
func (FileStore) Exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}

// ReadRaw returns the file at path unparsed.
func (FileStore) ReadRaw(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(ErrNotFound, path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", path)
	}
	return raw, nil
}

// WriteRaw atomically replaces path with data.
func (FileStore) WriteRaw(path string, data []byte) error {
	return atomicWriteFile(path, data, filePerm)
}

// EncodeFile renders vf in the on-disk JSON format.
func EncodeFile(vf VaultFile) ([]byte, error) {
	if len(vf.Salt) != SaltLen {
		return nil, errors.Errorf("invalid salt length %d; want %d", len(vf.Salt), SaltLen)
	}
	doc := fileDoc{
		Salt: base64.StdEncoding.EncodeToString(vf.Salt),
		Data: base64.StdEncoding.EncodeToString(vf.Token),
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode vault file")
	}
	return append(raw, '\n'), nil
}

// DecodeFile parses the on-disk JSON format. Unknown fields are ignored;
// anything else that does not match returns ErrCorrupt.
func DecodeFile(raw []byte) (VaultFile, error) {
	var doc fileDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return VaultFile{}, errors.Wrap(ErrCorrupt, err.Error())
	}
	data := doc.Data
	if data == "" {
		data = doc.Token
	}
	if doc.Salt == "" || data == "" {
		return VaultFile{}, errors.Wrap(ErrCorrupt, "missing salt or data")
	}
	salt, err := base64.StdEncoding.DecodeString(doc.Salt)
	if err != nil {
		return VaultFile{}, errors.Wrap(ErrCorrupt, "salt is not base64")
	}
	if len(salt) != SaltLen {
		return VaultFile{}, errors.Wrapf(ErrCorrupt, "salt is %d bytes; want %d", len(salt), SaltLen)
	}
	token, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return VaultFile{}, errors.Wrap(ErrCorrupt, "data is not base64")
	}
	return VaultFile{Salt: salt, Token: token}, nil
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return errors.Wrapf(err, "cannot create %s", dir)
	}
	tmpFile, err := os.CreateTemp(dir, tempPrefix)
	if err != nil {
		return errors.Wrap(err, "cannot create temp file")
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return errors.Wrap(err, "cannot write temp file")
	}
	if err := tmpFile.Chmod(perm); err != nil {
		return errors.Wrap(err, "cannot chmod temp file")
	}
	if err := tmpFile.Sync(); err != nil {
		return errors.Wrap(err, "cannot sync temp file")
	}
	if err := tmpFile.Close(); err != nil {
		return errors.Wrap(err, "cannot close temp file")
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrapf(err, "cannot replace %s", path)
	}

	_ = syncDir(dir)
	return nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// Zero securely wipes a byte slice.
func Zero(b []byte) {
	memguard.WipeBytes(b)
}
