package foreman

// Scope is the access context of one unit invocation. Tokens acquired
// through it are released when the invocation ends, whichever way it ends.
type Scope struct {
	world    *World
	unit     string
	declared map[Identity]Mode // nil means unrestricted
	held     map[Identity]Mode
	pool     *workerPool
}

func newScope(w *World, unit string, declared map[Identity]Mode, pool *workerPool) *Scope {
	return &Scope{
		world:    w,
		unit:     unit,
		declared: declared,
		held:     make(map[Identity]Mode),
		pool:     pool,
	}
}

// Unit returns the name of the unit the scope belongs to.
func (s *Scope) Unit() string {
	return s.unit
}

// Lazy returns the world's deferred operation queue. It is internally
// synchronized and needs no token.
func (s *Scope) Lazy() *LazyUpdates {
	return s.world.lazy
}

func (s *Scope) acquire(id Identity, mode Mode) error {
	if s.declared != nil {
		declared, ok := s.declared[id]
		if !ok || (mode == Write && declared == Read) {
			return AccessConflictError{ID: id, Requested: mode, Unit: s.unit, Undeclared: true}
		}
	}
	if held, ok := s.held[id]; ok {
		if held == Write || mode == Read {
			return nil
		}
		if err := s.world.ledger.upgrade(id); err != nil {
			return s.tag(err)
		}
		s.held[id] = Write
		return nil
	}
	if err := s.world.ledger.acquire(id, mode); err != nil {
		return s.tag(err)
	}
	s.held[id] = mode
	return nil
}

func (s *Scope) tag(err error) error {
	if conflict, ok := err.(AccessConflictError); ok {
		conflict.Unit = s.unit
		return conflict
	}
	return err
}

func (s *Scope) release() {
	for id, mode := range s.held {
		s.world.ledger.release(id, mode)
	}
	clear(s.held)
}

// ReadComponents acquires a read token on the T storage.
func ReadComponents[T any](s *Scope) (ReadStorage[T], error) {
	sto, err := fetchStorage[T](s, Read)
	if err != nil {
		return ReadStorage[T]{}, err
	}
	return ReadStorage[T]{sto: sto}, nil
}

// WriteComponents acquires a write token on the T storage.
func WriteComponents[T any](s *Scope) (WriteStorage[T], error) {
	sto, err := fetchStorage[T](s, Write)
	if err != nil {
		return WriteStorage[T]{}, err
	}
	return WriteStorage[T]{ReadStorage[T]{sto: sto}}, nil
}

func fetchStorage[T any](s *Scope, mode Mode) (*Storage[T], error) {
	id := StorageID[T]()
	sto, ok := s.world.storage(id)
	if !ok {
		return nil, MissingResourceError{ID: id}
	}
	if err := s.acquire(id, mode); err != nil {
		return nil, err
	}
	return sto.(*Storage[T]), nil
}

// ReadResource acquires a read token on the T resource. A missing resource
// is a MissingResourceError.
func ReadResource[T any](s *Scope) (*T, error) {
	return fetchResource[T](s, Read)
}

// WriteResource acquires a write token on the T resource.
func WriteResource[T any](s *Scope) (*T, error) {
	return fetchResource[T](s, Write)
}

func fetchResource[T any](s *Scope, mode Mode) (*T, error) {
	id := ResourceID[T]()
	res, ok := s.world.resource(id)
	if !ok {
		return nil, MissingResourceError{ID: id}
	}
	if err := s.acquire(id, mode); err != nil {
		return nil, err
	}
	return res.(*T), nil
}

// EntitiesOf acquires a read token on the entity registry.
func EntitiesOf(s *Scope) (*Entities, error) {
	if err := s.acquire(ResourceID[Entities](), Read); err != nil {
		return nil, err
	}
	return s.world.entities, nil
}
