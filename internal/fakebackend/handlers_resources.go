package fakebackend

import (
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

type record = map[string]any

// resourceTable is an in-memory table of JSON objects keyed by id. Access is
// guarded by Backend.mu.
type resourceTable struct {
	nextID int64
	rows   map[int64]record
}

func newResourceTable() *resourceTable {
	return &resourceTable{nextID: 1, rows: make(map[int64]record)}
}

func (t *resourceTable) insert(row record) record {
	id := t.nextID
	t.nextID++
	out := make(record, len(row)+2)
	for k, v := range row {
		out[k] = v
	}
	delete(out, "password")
	out["id"] = id
	out["created_at"] = time.Now().UTC().Format("2006-01-02T15:04:05")
	t.rows[id] = out
	return out
}

func (t *resourceTable) ids() []int64 {
	ids := make([]int64, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Seed inserts rows into a resource table and returns them with ids assigned.
func (b *Backend) Seed(resource string, rows ...map[string]any) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	table, ok := b.resources[resource]
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, table.insert(row))
	}
	return out
}

// Linked returns the ids assigned to owner through one of the assignment endpoints.
func (b *Backend) Linked(kind string, owner int64) []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int64(nil), b.roleLinks[kind][owner]...)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 1 {
		return def
	}
	return v
}

func (b *Backend) resourceRoutes(router chi.Router, resource string) {
	router.Get("/", b.listHandler(resource))
	router.Post("/", b.createHandler(resource))
	router.Get("/{id}", b.getHandler(resource))
	router.Put("/{id}", b.updateHandler(resource))
	router.Delete("/{id}", b.deleteHandler(resource))
}

func (b *Backend) listHandler(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := queryInt(r, "page", 1)
		size := queryInt(r, "page_size", queryInt(r, "size", 10))

		b.mu.Lock()
		table := b.resources[resource]
		ids := table.ids()
		items := make([]record, 0, size)
		start := (page - 1) * size
		for i := start; i < len(ids) && i < start+size; i++ {
			items = append(items, table.rows[ids[i]])
		}
		b.mu.Unlock()

		writeSuccess(w, r, map[string]any{
			"items":       items,
			"total":       len(ids),
			"page":        page,
			"page_size":   size,
			"total_pages": int(math.Ceil(float64(len(ids)) / float64(size))),
		})
	}
}

func (b *Backend) createHandler(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var row record
		if err := decodeBody(r, &row); err != nil {
			writeError(w, r, codeBadRequest, "invalid request body")
			return
		}
		b.mu.Lock()
		created := b.resources[resource].insert(row)
		b.mu.Unlock()
		writeSuccess(w, r, created)
	}
}

func (b *Backend) getHandler(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeError(w, r, codeBadRequest, "invalid id")
			return
		}
		b.mu.Lock()
		row, found := b.resources[resource].rows[id]
		b.mu.Unlock()
		if !found {
			writeError(w, r, codeNotFound, resource+" not found")
			return
		}
		writeSuccess(w, r, row)
	}
}

func (b *Backend) updateHandler(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeError(w, r, codeBadRequest, "invalid id")
			return
		}
		var patch record
		if err := decodeBody(r, &patch); err != nil {
			writeError(w, r, codeBadRequest, "invalid request body")
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		row, found := b.resources[resource].rows[id]
		if !found {
			writeError(w, r, codeNotFound, resource+" not found")
			return
		}
		for k, v := range patch {
			if k == "id" || k == "created_at" || v == nil {
				continue
			}
			row[k] = v
		}
		writeSuccess(w, r, row)
	}
}

func (b *Backend) deleteHandler(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeError(w, r, codeBadRequest, "invalid id")
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, found := b.resources[resource].rows[id]; !found {
			writeError(w, r, codeNotFound, resource+" not found")
			return
		}
		delete(b.resources[resource].rows, id)
		writeSuccess(w, r, nil)
	}
}

func (b *Backend) menuTreeHandler(w http.ResponseWriter, r *http.Request) {
	includeDisabled, _ := strconv.ParseBool(r.URL.Query().Get("include_disabled"))

	b.mu.Lock()
	defer b.mu.Unlock()
	table := b.resources["menus"]
	children := make(map[int64][]record)
	for _, id := range table.ids() {
		row := table.rows[id]
		if status, ok := asInt64(row["status"]); ok && status == 0 && !includeDisabled {
			continue
		}
		parent, _ := asInt64(row["parent_id"])
		children[parent] = append(children[parent], row)
	}

	var build func(parent int64) []record
	build = func(parent int64) []record {
		nodes := make([]record, 0, len(children[parent]))
		for _, row := range children[parent] {
			node := make(record, len(row)+1)
			for k, v := range row {
				node[k] = v
			}
			node["children"] = build(row["id"].(int64))
			nodes = append(nodes, node)
		}
		return nodes
	}
	writeSuccess(w, r, build(0))
}

func (b *Backend) menuSortHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, codeBadRequest, "invalid id")
		return
	}
	var req struct {
		Sort *int `json:"sort"`
	}
	if err := decodeBody(r, &req); err != nil || req.Sort == nil || *req.Sort < 0 {
		writeError(w, r, codeBadRequest, "sort must be a non-negative integer")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	row, found := b.resources["menus"].rows[id]
	if !found {
		writeError(w, r, codeNotFound, "menus not found")
		return
	}
	row["sort"] = float64(*req.Sort)
	writeSuccess(w, r, nil)
}

func (b *Backend) resetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, codeBadRequest, "invalid id")
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil || len(req.Password) < 6 {
		writeError(w, r, codeBadRequest, "password must be at least 6 characters")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, found := b.resources["users"].rows[id]; !found {
		writeError(w, r, codeNotFound, "users not found")
		return
	}
	writeSuccess(w, r, nil)
}

// assignHandler stores the ids posted under field as the owner's links of kind.
func (b *Backend) assignHandler(kind, field string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeError(w, r, codeBadRequest, "invalid id")
			return
		}
		var req map[string][]int64
		if err := decodeBody(r, &req); err != nil {
			writeError(w, r, codeBadRequest, "invalid request body")
			return
		}
		ids, ok := req[field]
		if !ok {
			writeError(w, r, codeBadRequest, field+" is required")
			return
		}

		b.mu.Lock()
		b.roleLinks[kind][id] = append([]int64(nil), ids...)
		b.mu.Unlock()
		writeSuccess(w, r, nil)
	}
}

// linkedHandler returns the rows of kind linked to the role in the path.
func (b *Backend) linkedHandler(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			writeError(w, r, codeBadRequest, "invalid id")
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		if _, found := b.resources["roles"].rows[id]; !found {
			writeError(w, r, codeNotFound, "roles not found")
			return
		}
		table := b.resources[kind]
		out := make([]record, 0)
		for _, linked := range b.roleLinks[kind][id] {
			if row, found := table.rows[linked]; found {
				out = append(out, row)
			}
		}
		writeSuccess(w, r, out)
	}
}

func (b *Backend) permissionTreeHandler(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	table := b.resources["permissions"]
	out := make([]record, 0, len(table.rows))
	for _, id := range table.ids() {
		row := table.rows[id]
		out = append(out, record{"id": id, "name": row["name"], "code": row["code"], "type": row["type"]})
	}
	writeSuccess(w, r, out)
}
