package dictionary

// Store holds all loaded dictionaries by name. It is populated once at
// startup and read-only afterwards, so no locking is needed.
type Store struct {
	dicts map[string]*Dictionary
}

func NewStore() *Store {
	return &Store{dicts: make(map[string]*Dictionary)}
}

// Add registers a loaded dictionary.
func (s *Store) Add(d *Dictionary) {
	s.dicts[d.Name()] = d
}

// Get returns the named dictionary, if loaded.
func (s *Store) Get(name string) (*Dictionary, bool) {
	d, ok := s.dicts[name]
	return d, ok
}

// Names returns the names of all loaded dictionaries.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.dicts))
	for name := range s.dicts {
		names = append(names, name)
	}
	return names
}
