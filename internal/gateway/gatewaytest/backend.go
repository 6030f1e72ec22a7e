// Package gatewaytest provides an in-process fake of the forecasting backend.
package gatewaytest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
)

// SessionCookie is the cookie name the fake backend issues
const SessionCookie = "session"

// Request is one request observed by the fake backend
type Request struct {
	Method    string
	Path      string
	Form      url.Values
	Files     map[string][]byte
	Cookie    string
	RequestID string
}

// Item is an inventory row held by the fake backend
type Item struct {
	Product string
	Stock   int
}

// Backend is an httptest server that mimics the backend's session and inventory endpoints
type Backend struct {
	Server *httptest.Server

	mu              sync.Mutex
	requests        []Request
	users           map[string]string
	sessions        map[string]string
	inventory       map[string]Item
	overrides       map[string]http.HandlerFunc
	predictionsPage string
	predictCalls    int
	nextSession     int
}

// NewBackend starts a fake backend. Close it with b.Close().
func NewBackend() *Backend {
	b := &Backend{
		users:           map[string]string{},
		sessions:        map[string]string{},
		inventory:       map[string]Item{},
		overrides:       map[string]http.HandlerFunc{},
		predictionsPage: "<html>no predictions</html>",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", b.login)
	mux.HandleFunc("POST /register", b.register)
	mux.HandleFunc("GET /logout", b.logout)
	mux.HandleFunc("GET /dashboard", b.authed(b.dashboard))
	mux.HandleFunc("POST /api/inventory/upload", b.authed(b.ok("inventory uploaded")))
	mux.HandleFunc("POST /api/sales/upload", b.authed(b.ok("sales uploaded")))
	mux.HandleFunc("POST /predict", b.authed(b.predict))
	mux.HandleFunc("GET /predict-page", b.authed(b.predictPage))
	mux.HandleFunc("POST /transfer-suggestions", b.authed(b.ok("<html>transfer suggestions</html>")))
	mux.HandleFunc("POST /inventory/add", b.authed(b.addItem))
	mux.HandleFunc("POST /inventory/update/{id}", b.authed(b.updateItem))
	mux.HandleFunc("GET /inventory/delete/{id}", b.authed(b.deleteItem))

	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		b.mu.Lock()
		override, ok := b.overrides[r.Method+" "+r.URL.Path]
		b.mu.Unlock()
		if ok {
			override(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	return b
}

// URL returns the backend origin
func (b *Backend) URL() string {
	return b.Server.URL
}

// Close shuts the server down
func (b *Backend) Close() {
	b.Server.Close()
}

// AddUser registers a store account directly
func (b *Backend) AddUser(storeID, password string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[storeID] = password
}

// AddItem seeds an inventory row
func (b *Backend) AddItem(itemID, product string, stock int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inventory[itemID] = Item{Product: product, Stock: stock}
}

// Item returns an inventory row
func (b *Backend) Item(itemID string) (Item, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	it, ok := b.inventory[itemID]
	return it, ok
}

// HasUser reports whether a store account exists
func (b *Backend) HasUser(storeID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.users[storeID]
	return ok
}

// Override replaces the handler for "METHOD /path" (exact path match)
func (b *Backend) Override(methodPath string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overrides[methodPath] = h
}

// SetPredictionsPage sets the body served by /predict-page
func (b *Backend) SetPredictionsPage(body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.predictionsPage = body
}

// ExpireSessions invalidates every issued session cookie
func (b *Backend) ExpireSessions() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions = map[string]string{}
}

// PredictCalls returns how many times /predict succeeded
func (b *Backend) PredictCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.predictCalls
}

// Requests returns a copy of every request observed so far
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Request, len(b.requests))
	copy(out, b.requests)
	return out
}

// LastRequest returns the most recent request to path
func (b *Backend) LastRequest(path string) (Request, bool) {
	reqs := b.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Path == path {
			return reqs[i], true
		}
	}
	return Request{}, false
}

func (b *Backend) record(r *http.Request) {
	rec := Request{
		Method:    r.Method,
		Path:      r.URL.Path,
		Form:      url.Values{},
		Files:     map[string][]byte{},
		RequestID: r.Header.Get("X-Request-ID"),
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		rec.Cookie = c.Value
	}
	if err := r.ParseMultipartForm(1 << 20); err == nil && r.MultipartForm != nil {
		for k, v := range r.MultipartForm.Value {
			rec.Form[k] = v
		}
		for field, headers := range r.MultipartForm.File {
			if len(headers) == 0 {
				continue
			}
			f, err := headers[0].Open()
			if err != nil {
				continue
			}
			data, _ := io.ReadAll(f)
			f.Close()
			rec.Files[field] = data
		}
	}

	b.mu.Lock()
	b.requests = append(b.requests, rec)
	b.mu.Unlock()
}

func (b *Backend) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(SessionCookie)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		b.mu.Lock()
		_, ok := b.sessions[c.Value]
		b.mu.Unlock()
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (b *Backend) ok(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	storeID := r.FormValue("store_id")
	password := r.FormValue("password")

	b.mu.Lock()
	expected, ok := b.users[storeID]
	if !ok || expected != password {
		b.mu.Unlock()
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	b.nextSession++
	token := "sess-" + strconv.Itoa(b.nextSession)
	b.sessions[token] = storeID
	b.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: token, Path: "/", HttpOnly: true})
	fmt.Fprint(w, "<html>welcome</html>")
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	storeID := r.FormValue("store_id")
	password := r.FormValue("password")
	if storeID == "" || password == "" {
		http.Error(w, "Store ID and password are required", http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.users[storeID]; exists {
		http.Error(w, "Store ID already exists", http.StatusConflict)
		return
	}
	b.users[storeID] = password
	fmt.Fprint(w, "registered")
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		b.mu.Lock()
		delete(b.sessions, c.Value)
		b.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	fmt.Fprint(w, "logged out")
}

func (b *Backend) dashboard(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "<html>dashboard</html>")
}

func (b *Backend) predict(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.predictCalls++
	b.mu.Unlock()
	fmt.Fprint(w, "<html>predictions generated</html>")
}

func (b *Backend) predictPage(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	body := b.predictionsPage
	b.mu.Unlock()
	fmt.Fprint(w, body)
}

func (b *Backend) addItem(w http.ResponseWriter, r *http.Request) {
	itemID := r.FormValue("item_id")
	stock, err := strconv.Atoi(r.FormValue("stock"))
	if itemID == "" || err != nil {
		http.Error(w, "Invalid item", http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.inventory[itemID]; exists {
		http.Error(w, "Item already exists", http.StatusConflict)
		return
	}
	b.inventory[itemID] = Item{Product: r.FormValue("product"), Stock: stock}
	fmt.Fprint(w, "added")
}

func (b *Backend) updateItem(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	item, ok := b.inventory[itemID]
	if !ok {
		http.Error(w, "Item not found", http.StatusNotFound)
		return
	}
	if v, present := r.MultipartForm.Value["product"]; present && len(v) > 0 {
		item.Product = v[0]
	}
	if v, present := r.MultipartForm.Value["stock"]; present && len(v) > 0 {
		stock, err := strconv.Atoi(v[0])
		if err != nil {
			http.Error(w, "Invalid stock", http.StatusBadRequest)
			return
		}
		item.Stock = stock
	}
	b.inventory[itemID] = item
	fmt.Fprint(w, "updated")
}

func (b *Backend) deleteItem(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.inventory[itemID]; !ok {
		http.Error(w, "Item not found", http.StatusNotFound)
		return
	}
	delete(b.inventory, itemID)
	fmt.Fprint(w, "deleted")
}
