package vault

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Engine runs vault operations. Each call is a full open, mutate and
// reseal cycle; no key or plaintext outlives the call. Master secrets are
// wiped as soon as the key has been derived, so callers must not reuse the
// slices they pass in.
type Engine struct {
	store      Store
	iterations int
	log        zerolog.Logger
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithIterations sets the PBKDF2 work factor for new and existing vaults.
func WithIterations(n int) Option {
	return func(e *Engine) { e.iterations = n }
}

// WithStore replaces the default FileStore.
func WithStore(s Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithLogger sets the logger for operation events. Secrets are never logged.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock sets the time source for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an Engine backed by a FileStore with the default work factor.
func New(opts ...Option) *Engine {
	e := &Engine{
		store:      FileStore{},
		iterations: DefaultIterations,
		log:        zerolog.Nop(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// session is the unlocked state of one operation.
type session struct {
	file    VaultFile
	key     *memguard.LockedBuffer
	entries EntryMap
}

func (s *session) close() {
	if s.key != nil {
		s.key.Destroy()
	}
	for l := range s.entries {
		delete(s.entries, l)
	}
}

// Init creates a new vault holding an empty entry map.
func (e *Engine) Init(path string, master []byte) error {
	defer Zero(master)
	if e.store.Exists(path) {
		return errors.Wrap(ErrAlreadyExists, path)
	}
	salt, err := NewSalt()
	if err != nil {
		return err
	}
	s := &session{
		file:    VaultFile{Salt: salt},
		key:     e.deriveKey(master, salt),
		entries: EntryMap{},
	}
	defer s.close()
	if err := e.persist(path, s); err != nil {
		return err
	}
	e.log.Debug().Str("op", "init").Str("path", path).Msg("vault created")
	return nil
}

// Unlock opens the vault and returns a copy of its entries.
func (e *Engine) Unlock(path string, master []byte) (EntryMap, error) {
	defer Zero(master)
	s, err := e.unlock(path, master)
	if err != nil {
		return nil, err
	}
	defer s.key.Destroy()
	return s.entries, nil
}

// Add inserts or replaces the entry stored under label. replaced reports
// whether an existing entry was overwritten.
func (e *Engine) Add(path string, master []byte, label string, entry Entry) (replaced bool, err error) {
	defer Zero(master)
	if err := validateLabel(label); err != nil {
		return false, err
	}
	s, err := e.unlock(path, master)
	if err != nil {
		return false, err
	}
	defer s.close()

	now := e.now().UTC()
	prev, replaced := s.entries[label]
	if replaced {
		entry.ID = prev.ID
		entry.CreatedAt = prev.CreatedAt
	} else {
		entry.ID = uuid.New().String()
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	s.entries[label] = entry

	if err := e.persist(path, s); err != nil {
		return false, err
	}
	e.log.Debug().Str("op", "add").Str("path", path).Bool("replaced", replaced).
		Int("entries", len(s.entries)).Msg("vault updated")
	return replaced, nil
}

// Get returns the entry stored under label. The vault file is not
// rewritten.
func (e *Engine) Get(path string, master []byte, label string) (Entry, error) {
	entries, err := e.Unlock(path, master)
	if err != nil {
		return Entry{}, err
	}
	entry, ok := entries[label]
	if !ok {
		return Entry{}, errors.Wrap(ErrEntryNotFound, label)
	}
	return entry, nil
}

// List returns all labels in lexicographic order.
func (e *Engine) List(path string, master []byte) ([]string, error) {
	entries, err := e.Unlock(path, master)
	if err != nil {
		return nil, err
	}
	return entries.Labels(), nil
}

// Delete removes the entry stored under label.
func (e *Engine) Delete(path string, master []byte, label string) error {
	defer Zero(master)
	s, err := e.unlock(path, master)
	if err != nil {
		return err
	}
	defer s.close()

	if _, ok := s.entries[label]; !ok {
		return errors.Wrap(ErrEntryNotFound, label)
	}
	delete(s.entries, label)

	if err := e.persist(path, s); err != nil {
		return err
	}
	e.log.Debug().Str("op", "delete").Str("path", path).
		Int("entries", len(s.entries)).Msg("vault updated")
	return nil
}

// ExportEncrypted copies the vault file byte for byte to outPath after
// checking that master opens it. Nothing is decrypted into the export.
func (e *Engine) ExportEncrypted(path string, master []byte, outPath string) error {
	defer Zero(master)
	if samePath(path, outPath) {
		return errors.Wrap(ErrSamePath, outPath)
	}
	raw, err := e.verifyRaw(path, master)
	if err != nil {
		return err
	}
	if err := e.store.WriteRaw(outPath, raw); err != nil {
		return err
	}
	e.log.Debug().Str("op", "export").Str("path", path).Str("out", outPath).Msg("vault exported")
	return nil
}

// ImportEncrypted replaces the vault at path with the vault file at inPath.
// master must open the imported file, not the current one. On any failure
// path is left untouched.
func (e *Engine) ImportEncrypted(path string, master []byte, inPath string) error {
	defer Zero(master)
	if samePath(path, inPath) {
		return errors.Wrap(ErrSamePath, inPath)
	}
	raw, err := e.verifyRaw(inPath, master)
	if err != nil {
		return err
	}
	if err := e.store.WriteRaw(path, raw); err != nil {
		return err
	}
	e.log.Debug().Str("op", "import").Str("path", path).Str("in", inPath).Msg("vault imported")
	return nil
}

// verifyRaw reads the file at path and checks master against it, returning
// the exact bytes that were verified.
func (e *Engine) verifyRaw(path string, master []byte) ([]byte, error) {
	raw, err := e.store.ReadRaw(path)
	if err != nil {
		return nil, err
	}
	vf, err := DecodeFile(raw)
	if err != nil {
		return nil, err
	}
	s, err := e.open(vf, master)
	if err != nil {
		return nil, err
	}
	s.close()
	return raw, nil
}

func (e *Engine) unlock(path string, master []byte) (*session, error) {
	vf, err := e.store.Read(path)
	if err != nil {
		return nil, err
	}
	return e.open(vf, master)
}

func (e *Engine) open(vf VaultFile, master []byte) (*session, error) {
	key := e.deriveKey(master, vf.Salt)
	pt, err := Open(key.Bytes(), vf.Token)
	if err != nil {
		key.Destroy()
		e.log.Debug().Err(err).Msg("unseal failed")
		return nil, err
	}
	defer Zero(pt)

	entries, err := decodeEntries(pt)
	if err != nil {
		key.Destroy()
		return nil, err
	}
	return &session{file: vf, key: key, entries: entries}, nil
}

// persist seals the session entries under its key and salt and replaces
// the file at path in one atomic write.
func (e *Engine) persist(path string, s *session) error {
	pt, err := encodeEntries(s.entries)
	if err != nil {
		return err
	}
	defer Zero(pt)

	token, err := Seal(s.key.Bytes(), pt)
	if err != nil {
		return err
	}
	return e.store.Write(path, VaultFile{Salt: s.file.Salt, Token: token})
}

func (e *Engine) deriveKey(master, salt []byte) *memguard.LockedBuffer {
	defer Zero(master)
	return memguard.NewBufferFromBytes(Derive(master, salt, e.iterations))
}

func encodeEntries(m EntryMap) ([]byte, error) {
	if m == nil {
		m = EntryMap{}
	}
	pt, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode entries")
	}
	return pt, nil
}

// decodeEntries parses the sealed payload. Entries carrying fields outside
// the Entry schema are rejected rather than guessed at.
func decodeEntries(pt []byte) (EntryMap, error) {
	dec := json.NewDecoder(bytes.NewReader(pt))
	dec.DisallowUnknownFields()
	var m EntryMap
	if err := dec.Decode(&m); err != nil {
		return nil, errors.Wrap(ErrCorrupt, "entries: "+err.Error())
	}
	if dec.More() {
		return nil, errors.Wrap(ErrCorrupt, "entries: trailing data")
	}
	if m == nil {
		m = EntryMap{}
	}
	return m, nil
}

func validateLabel(label string) error {
	if label == "" {
		return errors.Wrap(ErrInvalidLabel, "label must not be empty")
	}
	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
