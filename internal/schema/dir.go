package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DirStore resolves schemas from <dir>/<action>.json, compiling each file
// once and caching the result.
type DirStore struct {
	dir string
	log zerolog.Logger

	mu    sync.Mutex
	cache map[string]*jsonschema.Schema
}

func NewDirStore(dir string, log zerolog.Logger) *DirStore {
	return &DirStore{
		dir:   dir,
		log:   log,
		cache: make(map[string]*jsonschema.Schema),
	}
}

// Validate implements Validator.
func (s *DirStore) Validate(action string, payload []byte) error {
	sch, err := s.load(action)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return &ValidationError{Action: action, Cause: fmt.Errorf("payload is not valid JSON: %w", err)}
	}
	if err := sch.Validate(doc); err != nil {
		s.log.Debug().Str("action", action).Err(err).Msg("schema rejected payload")
		return &ValidationError{Action: action, Cause: err}
	}
	return nil
}

func (s *DirStore) load(action string) (*jsonschema.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sch, ok := s.cache[action]; ok {
		return sch, nil
	}
	path := filepath.Join(s.dir, action+".json")
	sch, err := jsonschema.Compile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, path)
		}
		return nil, fmt.Errorf("schema: compile %s: %w", path, err)
	}
	s.cache[action] = sch
	return sch, nil
}
