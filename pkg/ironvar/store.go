package ironvar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/rs/zerolog"
)

var (
	// ErrUnknownVariable is returned by Subscribe in strict mode for names
	// that have never been set.
	ErrUnknownVariable = errors.New("unknown variable")

	// ErrInvalidName is returned for names that are empty or contain whitespace.
	ErrInvalidName = errors.New("invalid variable name")
)

// Value is the optional value of a variable.
type Value struct {
	Data  string
	Valid bool
}

// Some returns a present value.
func Some(data string) Value {
	return Value{Data: data, Valid: true}
}

// None is the absent value.
var None = Value{}

// Persister stores variable values outside the process.
type Persister interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, name, value string) error
	Delete(ctx context.Context, name string) error
}

// Options configures a Store.
type Options struct {
	// Strict rejects subscriptions to variables that were never set.
	Strict bool

	// Persister, when set, receives every Set and Unset.
	Persister Persister

	// Logger receives store diagnostics.
	Logger zerolog.Logger
}

// Store holds variables and fans out their changes to subscribers.
type Store struct {
	// writeMu orders persist and publish so storage and memory agree.
	writeMu sync.Mutex

	mu     sync.Mutex
	vars   map[string]*variable
	nextID uint64

	strict    bool
	persister Persister
	logger    zerolog.Logger
}

type variable struct {
	value Value
	known bool
	subs  map[uint64]chan Value
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	return &Store{
		vars:      make(map[string]*variable),
		strict:    opts.Strict,
		persister: opts.Persister,
		logger:    opts.Logger,
	}
}

// ValidateName checks that name can be referenced from a template.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidName, name)
	}
	return nil
}

// Restore loads every persisted value into the store.
func (s *Store) Restore(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	values, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore variables: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, value := range values {
		s.publishLocked(name, Some(value))
	}

	s.logger.Debug().Int("count", len(values)).Msg("restored variables")
	return nil
}

// Set assigns a value to a variable and notifies its subscribers.
func (s *Store) Set(ctx context.Context, name, value string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.persister != nil {
		if err := s.persister.Save(ctx, name, value); err != nil {
			return fmt.Errorf("failed to persist variable %s: %w", name, err)
		}
	}

	s.mu.Lock()
	s.publishLocked(name, Some(value))
	s.mu.Unlock()

	s.logger.Trace().Str("variable", name).Msg("variable set")
	return nil
}

// Unset clears a variable. Subscribers receive None.
func (s *Store) Unset(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.persister != nil {
		if err := s.persister.Delete(ctx, name); err != nil {
			return fmt.Errorf("failed to delete variable %s: %w", name, err)
		}
	}

	s.mu.Lock()
	s.publishLocked(name, None)
	s.mu.Unlock()

	return nil
}

// Get returns the current value of a variable.
func (s *Store) Get(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vars[name]
	if !ok || !v.value.Valid {
		return "", false
	}
	return v.value.Data, true
}

// Names returns the names of all variables that currently hold a value, in
// sorted order.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.vars))
	for name, v := range s.vars {
		if v.value.Valid {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Subscribe returns a stream of values for name. The current value, if any,
// is delivered first. A slow subscriber only ever sees the latest value; Set
// never blocks on it. The channel is closed when ctx is done.
func (s *Store) Subscribe(ctx context.Context, name string) (<-chan Value, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	v, ok := s.vars[name]
	if s.strict && (!ok || !v.known) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	if !ok {
		v = s.newVariableLocked(name)
	}

	id := s.nextID
	s.nextID++
	ch := make(chan Value, 1)
	v.subs[id] = ch
	if v.value.Valid {
		ch <- v.value
	}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()

		s.mu.Lock()
		defer s.mu.Unlock()
		delete(v.subs, id)
		close(ch)
	}()

	return ch, nil
}

func (s *Store) newVariableLocked(name string) *variable {
	v := &variable{subs: make(map[uint64]chan Value)}
	s.vars[name] = v
	return v
}

func (s *Store) publishLocked(name string, value Value) {
	v, ok := s.vars[name]
	if !ok {
		v = s.newVariableLocked(name)
	}
	v.value = value
	v.known = true

	for _, ch := range v.subs {
		offer(ch, value)
	}
}

// offer replaces any undelivered value with the new one.
func offer(ch chan Value, value Value) {
	select {
	case ch <- value:
		return
	default:
	}

	select {
	case <-ch:
	default:
	}
	ch <- value
}
