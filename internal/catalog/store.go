package catalog

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultKey is the fixed, versionless key the catalog blob lives under.
const DefaultKey = "points-calculator-data"

// Blob is the key-value backend the catalog snapshot is written to.
type Blob interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

type Options struct {
	Key     string
	Log     *zap.Logger
	Metrics *StoreMetrics
	NewID   func() string
}

// Store owns the category to items mapping and the active category.
// Every mutation is written through to the blob as a full snapshot before
// the call returns. A *PersistenceError from a mutating call means the
// change is applied in memory but the persisted copy is stale.
type Store struct {
	mu     sync.RWMutex
	blob   Blob
	key    string
	log    *zap.Logger
	met    *StoreMetrics
	newID  func() string
	order  []string
	m      map[string][]Item
	active string
}

func NewStore(blob Blob, opts Options) *Store {
	s := &Store{
		blob:  blob,
		key:   opts.Key,
		log:   opts.Log,
		met:   opts.Metrics,
		newID: opts.NewID,
		m:     map[string][]Item{},
	}
	if s.key == "" {
		s.key = DefaultKey
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.newID == nil {
		s.newID = func() string { return "it_" + uuid.NewString() }
	}
	return s
}

// Open builds a Store and loads the persisted catalog. A returned
// *PersistenceError leaves a usable, empty Store.
func Open(ctx context.Context, blob Blob, opts Options) (*Store, error) {
	s := NewStore(blob, opts)
	return s, s.Load(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.blob.Ping(ctx)
}

// Load replaces the in-memory catalog with the persisted one. Missing or
// malformed data yields an empty catalog and is not an error; a backend
// read failure also yields an empty catalog but is reported.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order, s.m, s.active = nil, map[string][]Item{}, ""

	data, ok, err := s.blob.Get(ctx, s.key)
	if err != nil {
		s.log.Warn("catalog load failed, starting empty", zap.String("key", s.key), zap.Error(err))
		s.met.recovered()
		s.met.setItems(0)
		return &PersistenceError{Op: "load", Err: err}
	}
	if !ok {
		s.log.Info("no saved catalog", zap.String("key", s.key))
		s.met.setItems(0)
		return nil
	}

	order, m, dropped, err := decodeCatalog(data, s.newID)
	if err != nil {
		s.log.Warn("malformed catalog blob, starting empty", zap.String("key", s.key), zap.Error(err))
		s.met.recovered()
		s.met.setItems(0)
		return nil
	}
	if dropped > 0 {
		s.log.Warn("dropped invalid catalog records", zap.Int("dropped", dropped))
	}

	s.order, s.m = order, m
	s.fixSelection()
	s.met.setItems(s.countItems())

	s.log.Info("catalog loaded",
		zap.Int("categories", len(s.order)),
		zap.Int("items", s.countItems()),
	)
	return nil
}

// CreateCategory adds an empty category. An existing name is left as is.
// It returns the trimmed name.
func (s *Store) CreateCategory(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", newValidationError("category", "required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[name]; ok {
		return name, nil
	}
	s.order = append(s.order, name)
	s.m[name] = []Item{}
	s.fixSelection()

	return name, s.save(ctx)
}

// DeleteCategory removes a category and all of its items. Callers confirm
// with the user first; there is no way back.
func (s *Store) DeleteCategory(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[name]; !ok {
		return ErrCategoryNotFound
	}
	s.removeCategory(name)
	s.fixSelection()

	return s.save(ctx)
}

// ListCategories returns category names in insertion order.
func (s *Store) ListCategories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Active reports the selected category; ok is false when the catalog is empty.
func (s *Store) Active() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, s.active != ""
}

// Select switches the active category.
func (s *Store) Select(name string) error {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m[name]; !ok {
		return ErrCategoryNotFound
	}
	s.active = name
	return nil
}

// Items returns a copy of a category's items in stored order.
func (s *Store) Items(category string) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items, ok := s.m[strings.TrimSpace(category)]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out, nil
}

// Ranked returns the category's items ranked for display.
func (s *Store) Ranked(category string) ([]Ranked, error) {
	items, err := s.Items(category)
	if err != nil {
		return nil, err
	}
	return Rank(items), nil
}

// AddItem appends an item to category, creating the category when needed,
// and returns its position and the stored item with its new ID.
func (s *Store) AddItem(ctx context.Context, category string, it Item) (int, Item, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return 0, Item{}, newValidationError("category", "required")
	}
	it, err := validateItem(it)
	if err != nil {
		return 0, Item{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it.ID = s.newID()
	if _, ok := s.m[category]; !ok {
		s.order = append(s.order, category)
	}
	s.m[category] = append(s.m[category], it)
	s.fixSelection()

	return len(s.m[category]) - 1, it, s.save(ctx)
}

// UpdateItem replaces the item at index. The item keeps its ID and position.
func (s *Store) UpdateItem(ctx context.Context, category string, index int, it Item) (Item, error) {
	it, err := validateItem(it)
	if err != nil {
		return Item{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	category = strings.TrimSpace(category)
	if err := s.checkIndex(category, index); err != nil {
		return Item{}, err
	}
	return s.replace(ctx, category, index, it)
}

// UpdateItemByID is UpdateItem addressed by the item's stable ID.
func (s *Store) UpdateItemByID(ctx context.Context, category, id string, it Item) (int, Item, error) {
	it, err := validateItem(it)
	if err != nil {
		return 0, Item{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	category = strings.TrimSpace(category)
	index, err := s.indexOf(category, id)
	if err != nil {
		return 0, Item{}, err
	}
	it, err = s.replace(ctx, category, index, it)
	return index, it, err
}

// DeleteItem removes the item at index; later items shift down by one.
// A category left empty is removed.
func (s *Store) DeleteItem(ctx context.Context, category string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	category = strings.TrimSpace(category)
	if err := s.checkIndex(category, index); err != nil {
		return err
	}
	return s.remove(ctx, category, index)
}

// DeleteItemByID is DeleteItem addressed by the item's stable ID.
func (s *Store) DeleteItemByID(ctx context.Context, category, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	category = strings.TrimSpace(category)
	index, err := s.indexOf(category, id)
	if err != nil {
		return err
	}
	return s.remove(ctx, category, index)
}

// Reset drops every category and removes the persisted blob, so the next
// load sees no saved catalog.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order, s.m, s.active = nil, map[string][]Item{}, ""
	s.met.setItems(0)

	err := s.blob.Delete(ctx, s.key)
	s.met.saved(err)
	if err != nil {
		s.log.Error("catalog reset failed", zap.String("key", s.key), zap.Error(err))
		return &PersistenceError{Op: "reset", Err: err}
	}
	return nil
}

func (s *Store) replace(ctx context.Context, category string, index int, it Item) (Item, error) {
	it.ID = s.m[category][index].ID
	s.m[category][index] = it
	return it, s.save(ctx)
}

func (s *Store) remove(ctx context.Context, category string, index int) error {
	items := s.m[category]
	s.m[category] = append(items[:index:index], items[index+1:]...)

	if len(s.m[category]) == 0 {
		s.removeCategory(category)
		s.fixSelection()
	}
	return s.save(ctx)
}

func (s *Store) checkIndex(category string, index int) error {
	items := s.m[category]
	if index < 0 || index >= len(items) {
		return &IndexError{Category: category, Index: index, Len: len(items)}
	}
	return nil
}

func (s *Store) indexOf(category, id string) (int, error) {
	items, ok := s.m[category]
	if !ok {
		return 0, ErrCategoryNotFound
	}
	for i, it := range items {
		if it.ID == id {
			return i, nil
		}
	}
	return 0, ErrItemNotFound
}

func (s *Store) removeCategory(name string) {
	delete(s.m, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// fixSelection keeps active pointing at an existing category, falling back
// to the first one, or clears it when nothing is left.
func (s *Store) fixSelection() {
	if _, ok := s.m[s.active]; ok {
		return
	}
	s.active = ""
	if len(s.order) > 0 {
		s.active = s.order[0]
	}
}

func (s *Store) countItems() int {
	n := 0
	for _, items := range s.m {
		n += len(items)
	}
	return n
}

// save writes the whole catalog under the store key. Callers hold mu.
func (s *Store) save(ctx context.Context) error {
	s.met.setItems(s.countItems())

	data, err := encodeCatalog(s.order, s.m)
	if err == nil {
		err = s.blob.Put(ctx, s.key, data)
	}
	s.met.saved(err)

	if err != nil {
		s.log.Error("catalog save failed", zap.String("key", s.key), zap.Error(err))
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}
