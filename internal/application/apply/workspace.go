package apply

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sotakimura/conductor/internal/domain/model/record"
)

// workspace holds the in-memory working copies for one apply.
// Later operations in a batch observe the effects of earlier ones here,
// long before anything reaches disk.
type workspace struct {
	store   record.Store
	records map[string]*record.Record
	order   []string // dirty keys in first-touch order
	dirty   map[string]bool
}

func newWorkspace(store record.Store) *workspace {
	return &workspace{
		store:   store,
		records: make(map[string]*record.Record),
		dirty:   make(map[string]bool),
	}
}

func key(kind record.Kind, id string) string {
	return string(kind) + "/" + id
}

// get returns a working copy of the record, loading it from the store on
// first access
func (w *workspace) get(kind record.Kind, id string) (*record.Record, bool) {
	k := key(kind, id)
	if rec, ok := w.records[k]; ok {
		return rec, true
	}
	rec, err := w.store.Get(kind, id)
	if err != nil {
		return nil, false
	}
	w.records[k] = rec
	return rec, true
}

// put marks a record dirty so it gets staged at commit
func (w *workspace) put(rec *record.Record) {
	k := key(rec.Kind, rec.ID)
	w.records[k] = rec
	if !w.dirty[k] {
		w.dirty[k] = true
		w.order = append(w.order, k)
	}
}

// dirtyKeys returns the dirty record keys in first-touch order
func (w *workspace) dirtyKeys() []string {
	return w.order
}

func (w *workspace) workflowExists(id string) bool {
	_, err := w.store.GetWorkflow(id)
	return err == nil
}

// nextID allocates the next sequential id for a kind, counting both
// stored records and records created earlier in this batch
func (w *workspace) nextID(kind record.Kind, prefix string, width int) string {
	max := 0
	bump := func(id string) {
		rest, found := strings.CutPrefix(id, prefix+"-")
		if !found {
			return
		}
		n, err := strconv.Atoi(rest)
		if err == nil && n > max {
			max = n
		}
	}

	if stored, err := w.store.List(kind); err == nil {
		for _, rec := range stored {
			bump(rec.ID)
		}
	}
	for k, rec := range w.records {
		if strings.HasPrefix(k, string(kind)+"/") {
			bump(rec.ID)
		}
	}

	return fmt.Sprintf("%s-%0*d", prefix, width, max+1)
}
