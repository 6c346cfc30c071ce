package repofake

import (
	"sync"

	"github.com/mentorlink/go-mentor-client/credentials"
	"github.com/mentorlink/go-mentor-client/internal/errors"
)

// FakeCredentialsRepo is an in-memory credentials.Repo for tests
type FakeCredentialsRepo struct {
	mu     sync.Mutex
	stored *credentials.Stored

	SaveCount  int
	ClearCount int
}

func NewFakeCredentialsRepo() *FakeCredentialsRepo {
	return &FakeCredentialsRepo{}
}

var _ credentials.Repo = (*FakeCredentialsRepo)(nil)

func (f *FakeCredentialsRepo) Load() (*credentials.Stored, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stored == nil {
		return nil, errors.ErrNotFound
	}
	copied := *f.stored
	return &copied, nil
}

func (f *FakeCredentialsRepo) Save(stored *credentials.Stored) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *stored
	f.stored = &copied
	f.SaveCount++
	return nil
}

func (f *FakeCredentialsRepo) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = nil
	f.ClearCount++
	return nil
}
