// Package oxidbtest provides an in-process oxidb-server speaking the wire
// protocol, for tests that need a real TCP peer.
package oxidbtest

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"reflect"
	"sort"
	"sync"
)

type collection struct {
	docs   []map[string]any
	nextID int
	unique map[string]bool
}

// Server is a minimal document server covering the commands the client issues.
type Server struct {
	ln net.Listener

	mu          sync.Mutex
	collections map[string]*collection
	conns       map[net.Conn]struct{}
	closed      bool

	wg sync.WaitGroup
}

// NewServer starts a server on a random loopback port.
func NewServer() (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Server{
		ln:          ln,
		collections: make(map[string]*collection),
		conns:       make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.accept()
	return s, nil
}

// Host returns the listening host.
func (s *Server) Host() string {
	return s.ln.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the listening port.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Docs returns a snapshot of a collection's documents.
func (s *Server) Docs(name string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return nil
	}
	out := make([]map[string]any, len(c.docs))
	copy(out, c.docs)
	return out
}

// DropConnections closes every open client connection, simulating a server restart.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
}

// Close stops the listener, drops connections and waits for handlers to exit.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.ln.Close()
	s.DropConnections()
	s.wg.Wait()
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()
	for {
		lenBuf := make([]byte, 4)
		if _, err := io.ReadFull(conn, lenBuf); err != nil {
			return
		}
		payload := make([]byte, binary.LittleEndian.Uint32(lenBuf))
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}
		var req map[string]any
		resp := map[string]any{"ok": true}
		if err := json.Unmarshal(payload, &req); err != nil {
			resp = map[string]any{"ok": false, "error": "bad json"}
		} else if data, err := s.handle(req); err != nil {
			resp = map[string]any{"ok": false, "error": err.Error()}
		} else {
			resp["data"] = data
		}
		out, _ := json.Marshal(resp)
		frame := make([]byte, 4+len(out))
		binary.LittleEndian.PutUint32(frame, uint32(len(out)))
		copy(frame[4:], out)
		if _, err := conn.Write(frame); err != nil {
			return
		}
	}
}

func (s *Server) coll(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{unique: map[string]bool{}}
		s.collections[name] = c
	}
	return c
}

func (s *Server) handle(req map[string]any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd, _ := req["cmd"].(string)
	name, _ := req["collection"].(string)
	query, _ := req["query"].(map[string]any)

	switch cmd {
	case "ping":
		return "pong", nil
	case "create_collection":
		s.coll(name)
		return "ok", nil
	case "list_collections":
		names := make([]string, 0, len(s.collections))
		for n := range s.collections {
			names = append(names, n)
		}
		sort.Strings(names)
		return names, nil
	case "create_unique_index":
		field, _ := req["field"].(string)
		s.coll(name).unique[field] = true
		return "ok", nil
	case "insert":
		doc, _ := req["doc"].(map[string]any)
		c := s.coll(name)
		for field := range c.unique {
			for _, d := range c.docs {
				if v, ok := doc[field]; ok && reflect.DeepEqual(d[field], v) {
					return nil, fmt.Errorf("duplicate key on unique index %s", field)
				}
			}
		}
		c.nextID++
		stored := map[string]any{"_id": float64(c.nextID)}
		for k, v := range doc {
			stored[k] = v
		}
		c.docs = append(c.docs, stored)
		return map[string]any{"id": float64(c.nextID)}, nil
	case "find":
		docs := matching(s.coll(name).docs, query)
		if spec, ok := req["sort"].(map[string]any); ok {
			sortDocs(docs, spec)
		}
		if skip, ok := req["skip"].(float64); ok {
			if int(skip) >= len(docs) {
				docs = nil
			} else {
				docs = docs[int(skip):]
			}
		}
		if limit, ok := req["limit"].(float64); ok && int(limit) < len(docs) {
			docs = docs[:int(limit)]
		}
		if docs == nil {
			docs = []map[string]any{}
		}
		return docs, nil
	case "find_one":
		docs := matching(s.coll(name).docs, query)
		if len(docs) == 0 {
			return nil, nil
		}
		return docs[0], nil
	case "update_one":
		update, _ := req["update"].(map[string]any)
		set, _ := update["$set"].(map[string]any)
		c := s.coll(name)
		for _, d := range c.docs {
			if match(d, query) {
				for k, v := range set {
					d[k] = v
				}
				return map[string]any{"modified": float64(1)}, nil
			}
		}
		return map[string]any{"modified": float64(0)}, nil
	case "delete":
		c := s.coll(name)
		kept := c.docs[:0]
		deleted := 0
		for _, d := range c.docs {
			if match(d, query) {
				deleted++
				continue
			}
			kept = append(kept, d)
		}
		c.docs = kept
		return map[string]any{"deleted": float64(deleted)}, nil
	case "count":
		return map[string]any{"count": float64(len(matching(s.coll(name).docs, query)))}, nil
	}
	return nil, fmt.Errorf("unknown command %q", cmd)
}

func match(doc, query map[string]any) bool {
	for k, v := range query {
		if !reflect.DeepEqual(doc[k], v) {
			return false
		}
	}
	return true
}

func matching(docs []map[string]any, query map[string]any) []map[string]any {
	var out []map[string]any
	for _, d := range docs {
		if match(d, query) {
			cp := make(map[string]any, len(d))
			for k, v := range d {
				cp[k] = v
			}
			out = append(out, cp)
		}
	}
	return out
}

func sortDocs(docs []map[string]any, spec map[string]any) {
	for field, dir := range spec {
		desc := false
		if f, ok := dir.(float64); ok && f < 0 {
			desc = true
		}
		sort.SliceStable(docs, func(i, j int) bool {
			if desc {
				return less(docs[j][field], docs[i][field])
			}
			return less(docs[i][field], docs[j][field])
		})
		return
	}
}

func less(a, b any) bool {
	fa, aNum := a.(float64)
	fb, bNum := b.(float64)
	if aNum && bNum {
		return fa < fb
	}
	sa, _ := a.(string)
	sb, _ := b.(string)
	return sa < sb
}
