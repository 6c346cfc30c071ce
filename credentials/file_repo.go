package credentials

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"

	interrors "github.com/mentorlink/go-mentor-client/internal/errors"
)

const credentialsFileName = "credentials.json"

// FileRepo persists credentials to a single file in the data folder.
// When a 32 byte key is supplied the file is sealed with NaCl secretbox,
// nonce prepended; otherwise it is plain JSON.
type FileRepo struct {
	path string
	key  *[32]byte
}

// NewFileRepo creates a file-backed credential store under folder.
// hexKey is the optional hex-encoded 32 byte encryption key ("" disables
// encryption at rest).
func NewFileRepo(folder, hexKey string) (*FileRepo, error) {
	if err := os.MkdirAll(folder, 0o700); err != nil {
		return nil, errors.Wrap(err, "[NewFileRepo] mkdir")
	}
	repo := &FileRepo{path: filepath.Join(folder, credentialsFileName)}
	if hexKey != "" {
		raw, err := hex.DecodeString(hexKey)
		if err != nil || len(raw) != 32 {
			return nil, errors.New("[NewFileRepo] credentials key must be 32 hex-encoded bytes")
		}
		repo.key = new([32]byte)
		copy(repo.key[:], raw)
	}
	return repo, nil
}

var _ Repo = (*FileRepo)(nil)

// Load implements Repo
func (r *FileRepo) Load() (*Stored, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, interrors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[FileRepo.Load] read")
	}
	if r.key != nil {
		data, err = r.open(data)
		if err != nil {
			return nil, err
		}
	}
	var stored Stored
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, errors.Wrap(err, "[FileRepo.Load] unmarshal")
	}
	return &stored, nil
}

// Save implements Repo. The record is written to a temp file and renamed so a
// crash mid-write never leaves a torn credential pair behind.
func (r *FileRepo) Save(stored *Stored) error {
	data, err := json.Marshal(stored)
	if err != nil {
		return errors.Wrap(err, "[FileRepo.Save] marshal")
	}
	if r.key != nil {
		if data, err = r.seal(data); err != nil {
			return err
		}
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "[FileRepo.Save] write")
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return errors.Wrap(err, "[FileRepo.Save] rename")
	}
	return nil
}

// Clear implements Repo
func (r *FileRepo) Clear() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[FileRepo.Clear] remove")
	}
	return nil
}

func (r *FileRepo) seal(plaintext []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, errors.Wrap(err, "[FileRepo] nonce")
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, r.key), nil
}

func (r *FileRepo) open(sealed []byte) ([]byte, error) {
	if len(sealed) < 24 {
		return nil, errors.New("[FileRepo] sealed credentials too short")
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plaintext, ok := secretbox.Open(nil, sealed[24:], &nonce, r.key)
	if !ok {
		return nil, errors.New("[FileRepo] failed to open sealed credentials")
	}
	return plaintext, nil
}
