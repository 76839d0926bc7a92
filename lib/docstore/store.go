package docstore

import (
	"encoding/json"
	"sync/atomic"

	"github.com/ValentinKolb/dDoc/lib/subdoc"
	"github.com/ValentinKolb/dDoc/lib/util"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("docstore")

type document struct {
	value []byte
	cas   uint64
}

type storeImpl struct {
	name  string
	docs  *xsync.MapOf[string, document]
	index atomic.Uint64
}

// NewLocalStore creates an in-memory document store
func NewLocalStore(name string) IDocStore {
	return &storeImpl{
		name: name,
		docs: xsync.NewMapOfWithHasher[string, document](util.StringHasher),
	}
}

// nextCas increments the write index and returns it. Every write gets a
// unique, increasing cas.
func (s *storeImpl) nextCas() uint64 {
	return s.index.Add(1)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see docstore/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(key string) ([]byte, uint64, error) {
	doc, ok := s.docs.Load(key)
	if !ok {
		return nil, 0, errorf(RetCKeyNotFound, "document %q not found", key)
	}
	return doc.value, doc.cas, nil
}

func (s *storeImpl) Upsert(key string, value []byte, cas uint64) (uint64, error) {
	if !isContainer(value) {
		return 0, errorf(RetCDocNotJSON, "document %q is not a JSON object or array", key)
	}
	stored := append([]byte(nil), value...)

	var failure *Error
	doc, _ := s.docs.Compute(key, func(old document, loaded bool) (document, bool) {
		if cas != 0 {
			if !loaded {
				failure = errorf(RetCKeyNotFound, "document %q not found", key)
				return old, true
			}
			if old.cas != cas {
				failure = errorf(RetCKeyExists, "cas mismatch for %q", key)
				return old, false
			}
		}
		return document{value: stored, cas: s.nextCas()}, false
	})
	if failure != nil {
		return 0, failure
	}
	return doc.cas, nil
}

func (s *storeImpl) Remove(key string, cas uint64) error {
	var failure *Error
	s.docs.Compute(key, func(old document, loaded bool) (document, bool) {
		switch {
		case !loaded:
			failure = errorf(RetCKeyNotFound, "document %q not found", key)
		case cas != 0 && old.cas != cas:
			failure = errorf(RetCKeyExists, "cas mismatch for %q", key)
			return old, false
		}
		return old, true
	})
	if failure != nil {
		return failure
	}
	return nil
}

func (s *storeImpl) LookupIn(key string, specs []subdoc.Spec) (*subdoc.Result, error) {
	if len(specs) == 0 {
		return nil, errorf(RetCInvalidOperation, "need one or more lookups")
	}
	for _, sp := range specs {
		if !sp.Op().IsLookup() {
			return nil, errorf(RetCInvalidOperation, "%s is not a lookup", sp.Op())
		}
	}

	doc, ok := s.docs.Load(key)
	if !ok {
		return nil, errorf(RetCKeyNotFound, "document %q not found", key)
	}

	res := &subdoc.Result{Key: key, Cas: doc.cas, Items: make([]subdoc.Item, len(specs))}
	for i, sp := range specs {
		res.Items[i] = lookup(doc.value, sp)
	}
	return res, nil
}

func (s *storeImpl) MutateIn(key string, specs []subdoc.Spec, cas uint64) (*subdoc.Result, error) {
	if len(specs) == 0 {
		return nil, errorf(RetCInvalidOperation, "need one or more mutations")
	}
	for _, sp := range specs {
		if sp.Op().IsLookup() {
			return nil, errorf(RetCInvalidOperation, "%s is not a mutation", sp.Op())
		}
	}

	var (
		result  *subdoc.Result
		failure *Error
	)
	s.docs.Compute(key, func(old document, loaded bool) (document, bool) {
		if !loaded {
			failure = errorf(RetCKeyNotFound, "document %q not found", key)
			return old, true
		}
		if cas != 0 && old.cas != cas {
			failure = errorf(RetCKeyExists, "cas mismatch for %q", key)
			return old, false
		}

		value := old.value
		items := make([]subdoc.Item, len(specs))
		for i, sp := range specs {
			next, item, err := mutate(value, sp)
			if err != nil {
				failure = errorf(err.Code, "command %d (%s %q): %s", i, sp.Op(), sp.Path(), err.Msg)
				return old, false
			}
			value, items[i] = next, item
		}

		doc := document{value: value, cas: s.nextCas()}
		result = &subdoc.Result{Key: key, Cas: doc.cas, Items: items}
		return doc, false
	})
	if failure != nil {
		Logger.Debugf("mutateIn %q in %s failed: %s", key, s.name, failure.Msg)
		return nil, failure
	}
	return result, nil
}

func (s *storeImpl) Search(body []byte) ([]json.RawMessage, []byte) {
	return runSearch(s.name, body, s.docs.Range)
}

func (s *storeImpl) Len() int {
	return s.docs.Size()
}
