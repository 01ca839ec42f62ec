package server

import (
	"fmt"
	"sync"

	"github.com/tidwall/buntdb"
	"github.com/tidwall/gjson"

	"github.com/meshline/msgline/cmn"
	"github.com/meshline/msgline/session"
)

// registry holds the live session objects (in a plain map, since they are
// stateful goroutine-owning objects buntdb cannot store) alongside an
// in-memory buntdb store of their routing metadata, one JSON record per
// session keyed "sess:<id>". SessionByID reads the map; SessionsBySubID
// walks every buntdb record under the registry lock and compares sub_id,
// since no secondary index is created. Grounded on the DOMAIN STACK wiring
// for github.com/tidwall/buntdb (an embedded KV store).
type registry struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	order    []string // insertion order, for Sessions()'s stable snapshot
	db       *buntdb.DB
}

type sessionRecord struct {
	ID       string `json:"id"`
	TargetID string `json:"target_id"`
	SubID    string `json:"sub_id"`
}

func newRegistry() *registry {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		// an in-memory buntdb can only fail to open on a resource error;
		// the registry cannot usefully continue without its index.
		panic(fmt.Sprintf("server: open in-memory registry: %v", err))
	}
	return &registry{
		sessions: make(map[string]*session.Session),
		db:       db,
	}
}

func (r *registry) add(s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
	r.order = append(r.order, s.ID())
	r.index(s)
}

// reindex refreshes s's metadata record; the server calls this once the
// handshake resolves the peer's declared identity.
func (r *registry) reindex(s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index(s)
}

// index writes/refreshes s's routing metadata into buntdb; called on add
// and again once the handshake resolves s.TargetID()/TargetSubID().
func (r *registry) index(s *session.Session) {
	rec := sessionRecord{ID: s.ID(), TargetID: s.TargetID(), SubID: s.TargetSubID()}
	b, err := cmn.MarshalJSON(rec)
	if err != nil {
		return
	}
	_ = r.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set("sess:"+s.ID(), string(b), nil)
		return err
	})
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	_ = r.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete("sess:" + id)
		return err
	})
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// list returns a stable, insertion-ordered snapshot of live sessions
// (SPEC_FULL supplemental introspection surface).
func (r *registry) list() []*session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*session.Session, 0, len(r.order))
	for _, id := range r.order {
		if s, ok := r.sessions[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (r *registry) byID(id string) (*session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// bySubID looks up sessions whose recorded sub_id (the peer's
// TargetSubID, i.e. its host:port) matches subID, via the buntdb-backed
// metadata store.
func (r *registry) bySubID(subID string) []*session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	_ = r.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(key, value string) bool {
			if gjson.Get(value, "sub_id").String() == subID {
				ids = append(ids, gjson.Get(value, "id").String())
			}
			return true
		})
	})
	out := make([]*session.Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.sessions[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (r *registry) close() {
	_ = r.db.Close()
}
