package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/nyxus-portfolio/apiserver/internal/storage"
	"github.com/nyxus-portfolio/apiserver/internal/store"
	"github.com/nyxus-portfolio/apiserver/types"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type memUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[int]types.User{}}
}

func (r *memUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) List(_ context.Context, offset, limit int) ([]types.User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]types.User, 0, len(r.users))
	for _, u := range r.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if offset > len(all) {
		offset = len(all)
	}
	end := min(offset+limit, len(all))
	return all[offset:end], len(all), nil
}

func (r *memUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type memProjectRepo struct {
	nextID    int
	projects  map[int]types.Project
	createErr error
	updateErr error
}

func newMemProjectRepo() *memProjectRepo {
	return &memProjectRepo{projects: map[int]types.Project{}}
}

func (r *memProjectRepo) List(_ context.Context, offset, limit int) ([]types.Project, int, error) {
	all := make([]types.Project, 0, len(r.projects))
	for _, p := range r.projects {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if offset > len(all) {
		offset = len(all)
	}
	end := min(offset+limit, len(all))
	return all[offset:end], len(all), nil
}

func (r *memProjectRepo) Get(_ context.Context, id int) (types.Project, error) {
	p, ok := r.projects[id]
	if !ok {
		return types.Project{}, store.ErrNotFound
	}
	return p, nil
}

func (r *memProjectRepo) Create(_ context.Context, p types.Project) (types.Project, error) {
	if r.createErr != nil {
		return types.Project{}, r.createErr
	}
	r.nextID++
	p.ID = r.nextID
	r.projects[p.ID] = p
	return p, nil
}

func (r *memProjectRepo) Update(_ context.Context, p types.Project) (types.Project, error) {
	if r.updateErr != nil {
		return types.Project{}, r.updateErr
	}
	if _, ok := r.projects[p.ID]; !ok {
		return types.Project{}, store.ErrNotFound
	}
	r.projects[p.ID] = p
	return p, nil
}

func (r *memProjectRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.projects[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.projects, id)
	return nil
}

type memImageStore struct {
	objects   map[string][]byte
	types     map[string]string
	deleted   []string
	putErr    error
	deleteErr error
}

func newMemImageStore() *memImageStore {
	return &memImageStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memImageStore) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return err
	}
	if n != size {
		return errors.New("size mismatch")
	}
	m.objects[key] = buf.Bytes()
	m.types[key] = contentType
	return nil
}

func (m *memImageStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memImageStore) Delete(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, key)
	return nil
}

func (m *memImageStore) URL(key string) string {
	return "https://cdn.example/" + key
}

type memContactRepo struct {
	messages []types.ContactMessage
	err      error
}

func (r *memContactRepo) Create(_ context.Context, msg types.ContactMessage) (types.ContactMessage, error) {
	if r.err != nil {
		return types.ContactMessage{}, r.err
	}
	msg.ID = len(r.messages) + 1
	r.messages = append(r.messages, msg)
	return msg, nil
}

func (r *memContactRepo) List(_ context.Context, offset, limit int) ([]types.ContactMessage, int, error) {
	return r.messages, len(r.messages), nil
}

type recordingPublisher struct {
	channel string
	events  []any
	err     error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, channel string, v any) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.channel = channel
	p.events = append(p.events, v)
	return "id", nil
}
