package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sakif/travel-blog/internal/apperror"
	"github.com/sakif/travel-blog/internal/model"
	"github.com/sakif/travel-blog/internal/repository"
)

// =========================================================================
// IN-MEMORY FAKES
// =========================================================================
//
// Each fake implements one repository interface with a map and a mutex.
// Fields ending in Err make the matching method fail, so tests can simulate
// a storage outage without a database. calls counts every method call, which
// lets tests assert that validation happened before any storage access.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- posts ---------------------------------------------------------------

type fakePostRepo struct {
	mu    sync.Mutex
	posts map[string]*model.Post
	seq   map[string]int
	next  int
	calls int

	listErr   error
	updateErr error
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{
		posts: make(map[string]*model.Post),
		seq:   make(map[string]int),
	}
}

func clonePost(p *model.Post) *model.Post {
	c := *p
	c.LikedBy = append([]string{}, p.LikedBy...)
	return &c
}

func (f *fakePostRepo) Create(_ context.Context, post *model.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if _, ok := f.posts[post.ID]; ok {
		return apperror.Conflict("post", post.ID)
	}
	f.next++
	now := time.Now().UTC().Add(time.Duration(f.next) * time.Millisecond)
	post.CreatedAt, post.UpdatedAt = now, now
	f.posts[post.ID] = clonePost(post)
	f.seq[post.ID] = f.next
	return nil
}

func (f *fakePostRepo) GetByID(_ context.Context, id string) (*model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	p, ok := f.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	return clonePost(p), nil
}

func (f *fakePostRepo) List(_ context.Context, filter repository.PostFilter) ([]model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.listErr != nil {
		return nil, f.listErr
	}

	term := strings.ToLower(filter.Term)
	var out []model.Post
	for _, p := range f.posts {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.UserID != "" && p.UserID != filter.UserID {
			continue
		}
		switch filter.Field {
		case repository.SearchTitle:
			if !strings.Contains(strings.ToLower(p.Title), term) {
				continue
			}
		case repository.SearchContent:
			if !strings.Contains(strings.ToLower(p.Content), term) {
				continue
			}
		}
		out = append(out, *clonePost(p))
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch filter.Sort {
		case model.SortOldest:
			return f.seq[a.ID] < f.seq[b.ID]
		case model.SortPopular:
			if a.Views != b.Views {
				return a.Views > b.Views
			}
		case model.SortMostLiked:
			if a.LikeCount != b.LikeCount {
				return a.LikeCount > b.LikeCount
			}
		}
		return f.seq[a.ID] > f.seq[b.ID]
	})

	if filter.Offset >= len(out) {
		return []model.Post{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakePostRepo) Update(_ context.Context, post *model.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.posts[post.ID]; !ok {
		return apperror.NotFound("post", post.ID)
	}
	post.UpdatedAt = time.Now().UTC()
	f.posts[post.ID] = clonePost(post)
	return nil
}

func (f *fakePostRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if _, ok := f.posts[id]; !ok {
		return apperror.NotFound("post", id)
	}
	delete(f.posts, id)
	return nil
}

func (f *fakePostRepo) ModifyLikes(_ context.Context, id string, fn repository.LikeFunc) (*model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	p, ok := f.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	p.LikedBy = fn(append([]string{}, p.LikedBy...))
	p.LikeCount = len(p.LikedBy)
	return clonePost(p), nil
}

func (f *fakePostRepo) IncrementViews(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	p, ok := f.posts[id]
	if !ok {
		return 0, apperror.NotFound("post", id)
	}
	p.Views++
	return p.Views, nil
}

// --- files ---------------------------------------------------------------

type fakeFileStore struct {
	mu    sync.Mutex
	files map[string]*model.File
	order []string
	next  int
	calls int

	createErr error
	getErr    error
	deleteErr error
	// failPublic lists file ids whose SetPublic call fails.
	failPublic map[string]bool
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{
		files:      make(map[string]*model.File),
		failPublic: make(map[string]bool),
	}
}

func (f *fakeFileStore) Create(_ context.Context, file *model.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.createErr != nil {
		return f.createErr
	}
	if file.ID == "" {
		f.next++
		file.ID = fmt.Sprintf("file-%d", f.next)
	}
	if _, ok := f.files[file.ID]; ok {
		return apperror.Conflict("file", file.ID)
	}
	file.Bucket = "test"
	file.Size = int64(len(file.Data))
	file.CreatedAt = time.Now().UTC()
	c := *file
	f.files[file.ID] = &c
	f.order = append(f.order, file.ID)
	return nil
}

func (f *fakeFileStore) Get(_ context.Context, id string) (*model.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	file, ok := f.files[id]
	if !ok {
		return nil, apperror.NotFound("file", id)
	}
	c := *file
	return &c, nil
}

func (f *fakeFileStore) List(_ context.Context) ([]model.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make([]model.File, 0, len(f.files))
	for _, id := range f.order {
		if file, ok := f.files[id]; ok {
			c := *file
			c.Data = nil
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeFileStore) SetPublic(_ context.Context, id string, public bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failPublic[id] {
		return fmt.Errorf("permission update rejected for %s", id)
	}
	file, ok := f.files[id]
	if !ok {
		return apperror.NotFound("file", id)
	}
	file.Public = public
	return nil
}

func (f *fakeFileStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.files[id]; !ok {
		return apperror.NotFound("file", id)
	}
	delete(f.files, id)
	return nil
}

func (f *fakeFileStore) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[id]
	return ok
}

func (f *fakeFileStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

// --- accounts, profiles, sessions, stats ---------------------------------

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*model.Account
	next     int

	createErr error
	countErr  error
	deleted   []string
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[string]*model.Account)}
}

func (f *fakeAccountRepo) Create(_ context.Context, a *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.accounts {
		if existing.Email == a.Email {
			return apperror.Conflict("account", a.Email)
		}
		if a.GitHubID != 0 && existing.GitHubID == a.GitHubID {
			return apperror.Conflict("account", a.Email)
		}
	}
	f.next++
	a.ID = fmt.Sprintf("user-%d", f.next)
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	c := *a
	f.accounts[a.ID] = &c
	return nil
}

func (f *fakeAccountRepo) find(match func(*model.Account) bool, label string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if match(a) {
			c := *a
			return &c, nil
		}
	}
	return nil, apperror.NotFound("account", label)
}

func (f *fakeAccountRepo) GetByID(_ context.Context, id string) (*model.Account, error) {
	return f.find(func(a *model.Account) bool { return a.ID == id }, id)
}

func (f *fakeAccountRepo) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	return f.find(func(a *model.Account) bool { return a.Email == email }, email)
}

func (f *fakeAccountRepo) GetByGitHubID(_ context.Context, githubID int64) (*model.Account, error) {
	return f.find(func(a *model.Account) bool { return a.GitHubID == githubID }, fmt.Sprint(githubID))
}

func (f *fakeAccountRepo) LinkGitHub(_ context.Context, id string, githubID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return apperror.NotFound("account", id)
	}
	a.GitHubID = githubID
	return nil
}

func (f *fakeAccountRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[id]; !ok {
		return apperror.NotFound("account", id)
	}
	delete(f.accounts, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAccountRepo) Count(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.accounts), nil
}

type fakeProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*model.Profile
	calls    int

	createErr error
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[string]*model.Profile)}
}

func (f *fakeProfileRepo) Create(_ context.Context, p *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.createErr != nil {
		return f.createErr
	}
	if p.ID == "" {
		p.ID = p.UserID
	}
	if _, ok := f.profiles[p.ID]; ok {
		return apperror.Conflict("profile", p.ID)
	}
	c := *p
	f.profiles[p.ID] = &c
	return nil
}

func (f *fakeProfileRepo) GetByID(_ context.Context, id string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	p, ok := f.profiles[id]
	if !ok {
		return nil, apperror.NotFound("profile", id)
	}
	c := *p
	return &c, nil
}

func (f *fakeProfileRepo) FindByUserID(_ context.Context, userID string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, p := range f.profiles {
		if p.UserID == userID {
			c := *p
			return &c, nil
		}
	}
	return nil, apperror.NotFound("profile", userID)
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	next     int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*model.Session)}
}

func (f *fakeSessionRepo) Create(_ context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	s.ID = fmt.Sprintf("session-%d", f.next)
	c := *s
	f.sessions[s.ID] = &c
	return nil
}

func (f *fakeSessionRepo) GetByID(_ context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, apperror.NotFound("session", id)
	}
	c := *s
	return &c, nil
}

func (f *fakeSessionRepo) DeleteByUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, id)
		}
	}
	return nil
}

type fakeStatsRepo struct {
	mu       sync.Mutex
	counters map[string]int

	getErr       error
	incrementErr error
}

func newFakeStatsRepo() *fakeStatsRepo {
	return &fakeStatsRepo{counters: make(map[string]int)}
}

func (f *fakeStatsRepo) Get(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return 0, f.getErr
	}
	n, ok := f.counters[id]
	if !ok {
		return 0, apperror.NotFound("stats", id)
	}
	return n, nil
}

func (f *fakeStatsRepo) Increment(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrementErr != nil {
		return 0, f.incrementErr
	}
	f.counters[id]++
	return f.counters[id], nil
}
