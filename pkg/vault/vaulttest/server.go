// Package vaulttest provides a stateful in-memory fake of the Vault HTTP API
// covering the endpoints used by vault-config.
package vaulttest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
)

// Server is a fake Vault server backed by httptest.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	initialized bool
	sealed      bool
	threshold   int
	keys        []string
	submitted   map[string]bool
	initCalls   int
	tokenSeq    int
	tokens      map[string]bool
	auths       map[string]string
	mounts      map[string]string
	policies    map[string]string
	data        map[string]map[string]interface{}
	mutations   []string
}

// NewServer starts an uninitialized fake Vault.
func NewServer() *Server {
	s := &Server{
		sealed:    true,
		submitted: make(map[string]bool),
		tokens:    make(map[string]bool),
		auths:     map[string]string{"token": "token"},
		mounts: map[string]string{
			"sys":       "system",
			"identity":  "identity",
			"cubbyhole": "cubbyhole",
		},
		policies: map[string]string{
			"root":    "",
			"default": "# default policy\n",
		},
		data: make(map[string]map[string]interface{}),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// NewInitializedServer starts an initialized, unsealed fake Vault and returns
// it with a valid root token.
func NewInitializedServer() (*Server, string) {
	s := NewServer()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	s.sealed = false
	s.threshold = 1
	return s, s.issueTokenLocked()
}

// InitCalls returns the number of successful initialization requests.
func (s *Server) InitCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initCalls
}

// Keys returns the unseal keys generated at initialization.
func (s *Server) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...)
}

// Seal seals the fake Vault again.
func (s *Server) Seal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed = true
	s.submitted = make(map[string]bool)
}

// Sealed reports whether the fake Vault is sealed.
func (s *Server) Sealed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealed
}

// IssueToken creates a new valid token.
func (s *Server) IssueToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueTokenLocked()
}

// RevokeToken invalidates token.
func (s *Server) RevokeToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// SetPolicy stores a policy directly, bypassing the mutation log.
func (s *Server) SetPolicy(name, rules string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[name] = rules
}

// Policy returns a stored policy.
func (s *Server) Policy(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rules, ok := s.policies[name]
	return rules, ok
}

// PolicyNames returns the sorted stored policy names.
func (s *Server) PolicyNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.policies)
}

// SetAuth enables an auth method directly.
func (s *Server) SetAuth(path, methodType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auths[path] = methodType
}

// Auths returns enabled auth methods keyed by path.
func (s *Server) Auths() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyStrings(s.auths)
}

// SetMount mounts a secret engine directly.
func (s *Server) SetMount(path, engineType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mounts[path] = engineType
}

// Mounts returns mounted secret engines keyed by path.
func (s *Server) Mounts() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyStrings(s.mounts)
}

// SetData stores data at a logical path directly.
func (s *Server) SetData(path string, data map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = data
}

// Data returns the data stored at a logical path.
func (s *Server) Data(path string) (map[string]interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[path]
	return d, ok
}

// Mutations returns "METHOD path" for every state-changing request served,
// excluding init, unseal and login.
func (s *Server) Mutations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.mutations...)
}

// ResetMutations clears the mutation log.
func (s *Server) ResetMutations() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutations = nil
}

func (s *Server) issueTokenLocked() string {
	s.tokenSeq++
	token := fmt.Sprintf("hvs.fake%04d", s.tokenSeq)
	s.tokens[token] = true
	return token
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v1/")
	method := r.Method
	if method == "POST" {
		method = http.MethodPut
	}
	if r.Method == "LIST" || r.URL.Query().Get("list") == "true" {
		method = "LIST"
	}

	switch {
	case path == "sys/health":
		s.health(w, r)
		return
	case path == "sys/init":
		s.init(w, r, method)
		return
	case path == "sys/seal-status":
		writeJSON(w, http.StatusOK, s.sealStatusLocked())
		return
	case path == "sys/unseal":
		s.unseal(w, r)
		return
	case strings.HasPrefix(path, "auth/") && strings.HasSuffix(path, "/login") && method == http.MethodPut:
		s.login(w, r, strings.TrimSuffix(strings.TrimPrefix(path, "auth/"), "/login"))
		return
	}

	if s.sealed {
		writeErrors(w, http.StatusServiceUnavailable, "Vault is sealed")
		return
	}
	if !s.tokens[r.Header.Get("X-Vault-Token")] {
		writeErrors(w, http.StatusForbidden, "permission denied")
		return
	}

	switch {
	case path == "auth/token/lookup-self":
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"data": map[string]interface{}{"id": r.Header.Get("X-Vault-Token")},
		})
	case path == "sys/auth" && method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": mountListing(s.auths)})
	case strings.HasPrefix(path, "sys/auth/"):
		s.mountOp(w, r, method, strings.TrimPrefix(path, "sys/auth/"), "auth/", s.auths)
	case path == "sys/mounts" && method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": mountListing(s.mounts)})
	case strings.HasPrefix(path, "sys/mounts/"):
		s.mountOp(w, r, method, strings.TrimPrefix(path, "sys/mounts/"), "", s.mounts)
	case path == "sys/policies/acl" && method == "LIST":
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"data": map[string]interface{}{"keys": sortedKeys(s.policies)},
		})
	case strings.HasPrefix(path, "sys/policies/acl/"):
		s.policyOp(w, r, method, strings.TrimPrefix(path, "sys/policies/acl/"))
	default:
		s.logical(w, r, method, path)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	query := r.URL.Query()
	switch {
	case !s.initialized:
		status = statusOverride(query.Get("uninitcode"), http.StatusNotImplemented)
	case s.sealed:
		status = statusOverride(query.Get("sealedcode"), http.StatusServiceUnavailable)
	}
	writeJSON(w, status, map[string]interface{}{
		"initialized": s.initialized,
		"sealed":      s.sealed,
		"standby":     false,
		"version":     "1.15.0",
	})
}

func (s *Server) init(w http.ResponseWriter, r *http.Request, method string) {
	if method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]interface{}{"initialized": s.initialized})
		return
	}
	if s.initialized {
		writeErrors(w, http.StatusBadRequest, "Vault is already initialized")
		return
	}

	var req struct {
		SecretShares    int `json:"secret_shares"`
		SecretThreshold int `json:"secret_threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrors(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SecretShares < 1 || req.SecretThreshold < 1 || req.SecretThreshold > req.SecretShares {
		writeErrors(w, http.StatusBadRequest, "invalid seal configuration")
		return
	}

	s.initCalls++
	s.initialized = true
	s.sealed = true
	s.threshold = req.SecretThreshold
	s.keys = make([]string, req.SecretShares)
	keysB64 := make([]string, req.SecretShares)
	for i := range s.keys {
		s.keys[i] = fmt.Sprintf("%064x", s.initCalls*100+i+1)
		keysB64[i] = base64.StdEncoding.EncodeToString([]byte(s.keys[i]))
	}
	root := s.issueTokenLocked()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"keys":        s.keys,
		"keys_base64": keysB64,
		"root_token":  root,
	})
}

func (s *Server) sealStatusLocked() map[string]interface{} {
	return map[string]interface{}{
		"type":        "shamir",
		"initialized": s.initialized,
		"sealed":      s.sealed,
		"t":           s.threshold,
		"n":           len(s.keys),
		"progress":    len(s.submitted),
	}
}

func (s *Server) unseal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrors(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.initialized {
		writeErrors(w, http.StatusBadRequest, "Vault is not initialized")
		return
	}
	if s.sealed {
		valid := false
		for _, k := range s.keys {
			if k == req.Key {
				valid = true
			}
		}
		if !valid {
			writeErrors(w, http.StatusBadRequest, "invalid key")
			return
		}
		s.submitted[req.Key] = true
		if len(s.submitted) >= s.threshold {
			s.sealed = false
			s.submitted = make(map[string]bool)
		}
	}
	writeJSON(w, http.StatusOK, s.sealStatusLocked())
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, mount string) {
	if s.sealed {
		writeErrors(w, http.StatusServiceUnavailable, "Vault is sealed")
		return
	}
	if s.auths[mount] != "kubernetes" {
		writeErrors(w, http.StatusNotFound, "no handler for route")
		return
	}
	var req struct {
		Role string `json:"role"`
		JWT  string `json:"jwt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrors(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, ok := s.data["auth/"+mount+"/role/"+req.Role]; !ok || req.JWT == "" {
		writeErrors(w, http.StatusForbidden, "permission denied")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"auth": map[string]interface{}{
			"client_token": s.issueTokenLocked(),
			"policies":     []string{"default"},
		},
	})
}

func (s *Server) mountOp(w http.ResponseWriter, r *http.Request, method, path, dataPrefix string, table map[string]string) {
	path = strings.TrimSuffix(path, "/")
	switch method {
	case http.MethodPut:
		if _, ok := table[path]; ok {
			writeErrors(w, http.StatusBadRequest, fmt.Sprintf("path is already in use at %s/", path))
			return
		}
		var req struct {
			Type string `json:"type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" {
			writeErrors(w, http.StatusBadRequest, "missing type")
			return
		}
		table[path] = req.Type
		s.record(method, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		delete(table, path)
		for p := range s.data {
			if strings.HasPrefix(p, dataPrefix+path+"/") {
				delete(s.data, p)
			}
		}
		s.record(method, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeErrors(w, http.StatusMethodNotAllowed, "unsupported operation")
	}
}

func (s *Server) policyOp(w http.ResponseWriter, r *http.Request, method, name string) {
	switch method {
	case http.MethodGet:
		rules, ok := s.policies[name]
		if !ok {
			writeErrors(w, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"data": map[string]interface{}{"name": name, "policy": rules},
		})
	case http.MethodPut:
		var req struct {
			Policy string `json:"policy"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrors(w, http.StatusBadRequest, err.Error())
			return
		}
		if name == "root" {
			writeErrors(w, http.StatusBadRequest, "cannot update \"root\" policy")
			return
		}
		s.policies[name] = req.Policy
		s.record(method, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if name == "root" || name == "default" {
			writeErrors(w, http.StatusBadRequest, fmt.Sprintf("cannot delete %q policy", name))
			return
		}
		delete(s.policies, name)
		s.record(method, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeErrors(w, http.StatusMethodNotAllowed, "unsupported operation")
	}
}

func (s *Server) logical(w http.ResponseWriter, r *http.Request, method, path string) {
	if strings.HasPrefix(path, "auth/") {
		mount := strings.SplitN(strings.TrimPrefix(path, "auth/"), "/", 2)[0]
		if _, ok := s.auths[mount]; !ok {
			writeErrors(w, http.StatusNotFound, "no handler for route \""+path+"\"")
			return
		}
	}

	switch method {
	case http.MethodGet:
		d, ok := s.data[path]
		if !ok {
			writeErrors(w, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": d})
	case http.MethodPut:
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeErrors(w, http.StatusBadRequest, err.Error())
			return
		}
		s.data[path] = body
		s.record(method, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		delete(s.data, path)
		s.record(method, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeErrors(w, http.StatusMethodNotAllowed, "unsupported operation")
	}
}

func (s *Server) record(method, path string) {
	s.mutations = append(s.mutations, method+" "+strings.TrimPrefix(path, "/v1/"))
}

func mountListing(table map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(table))
	for path, typ := range table {
		out[path+"/"] = map[string]interface{}{"type": typ, "description": ""}
	}
	return out
}

func statusOverride(value string, fallback int) int {
	var code int
	if _, err := fmt.Sscanf(value, "%d", &code); err == nil && code > 0 {
		return code
	}
	return fallback
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErrors(w http.ResponseWriter, status int, errs ...string) {
	if errs == nil {
		errs = []string{}
	}
	writeJSON(w, status, map[string]interface{}{"errors": errs})
}
