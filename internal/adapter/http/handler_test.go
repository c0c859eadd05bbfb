package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/neomorfeo/mycouch/internal/adapter/fsm"
	adapter "github.com/neomorfeo/mycouch/internal/adapter/http"
	"github.com/neomorfeo/mycouch/internal/adapter/sqlite"
	"github.com/neomorfeo/mycouch/internal/app"
	"github.com/neomorfeo/mycouch/internal/domain"
)

// noopPublisher is a no-op EventPublisher for tests.
type noopPublisher struct{}

func (p *noopPublisher) Publish(_ context.Context, _ domain.TransitionEvent) error {
	return nil
}

// newTestServer creates a full-stack httptest.Server with SQLite in-memory.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv, _ := newTestServerWithStore(t)
	return srv
}

// newTestServerWithStore also returns the backing store for direct seeding.
func newTestServerWithStore(t *testing.T) (*httptest.Server, *sqlite.Store) {
	t.Helper()

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	validator := fsm.New()
	pub := &noopPublisher{}

	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("mycouch", "0.1.0"))
	adapter.Register(api, adapter.Services{
		Users:       app.NewUserService(store, store),
		Connections: app.NewConnectionService(store, store, validator, pub),
		Messages:    app.NewMessageService(store, store, validator, pub),
		Activities:  app.NewActivityService(store, store, store),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return srv, store
}

// doRequest performs an HTTP request with context (avoids noctx linter).
func doRequest(t *testing.T, method, url, actor, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, reader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != "" {
		req.Header.Set("X-User-ID", actor)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}

	return resp
}

// decodeObject reads a JSON object body and fails on an unexpected status.
func decodeObject(t *testing.T, resp *http.Response, wantStatus int) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, wantStatus, raw)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	defer resp.Body.Close()

	if resp.StatusCode != want {
		raw, _ := io.ReadAll(resp.Body)
		t.Errorf("status = %d, want %d: %s", resp.StatusCode, want, raw)
	}
}

// mustCreateUser registers a user via the API and returns its ID.
func mustCreateUser(t *testing.T, srv *httptest.Server, name string) string {
	t.Helper()

	body := fmt.Sprintf(`{"first_name":%q,"last_name":"Test","email":"%s@example.com","birth_date":"1990-06-15"}`, name, name)
	out := decodeObject(t, doRequest(t, http.MethodPost, srv.URL+"/api/v1/users", "", body), http.StatusOK)

	id, _ := out["id"].(string)
	if id == "" {
		t.Fatal("created user has no id")
	}
	return id
}

func futureDate(days int) string {
	return time.Now().UTC().AddDate(0, 0, days).Format("2006-01-02")
}

// --- Users & cities ---

func TestCreateUser(t *testing.T) {
	srv := newTestServer(t)

	city := decodeObject(t, doRequest(t, http.MethodPost, srv.URL+"/api/v1/cities", "",
		`{"name":"Lyon","latitude":45.76,"longitude":4.84,"country_code":"FRA"}`), http.StatusOK)
	if city["slug"] != "lyon" {
		t.Errorf("slug = %v, want lyon", city["slug"])
	}
	if _, ok := city["coordinates"]; ok {
		t.Error("coordinates should not be serialized")
	}

	body := fmt.Sprintf(`{"first_name":"Ana","last_name":"Lopez","email":"ana@example.com","birth_date":"1990-03-04","city_id":%q}`, city["id"])
	user := decodeObject(t, doRequest(t, http.MethodPost, srv.URL+"/api/v1/users", "", body), http.StatusOK)

	if user["birth_date"] != "1990-03-04" {
		t.Errorf("birth_date = %v", user["birth_date"])
	}
	if user["country_code"] != "FRA" {
		t.Errorf("country_code = %v, want FRA", user["country_code"])
	}
	if _, ok := user["password_hash"]; ok {
		t.Error("password_hash should not be serialized")
	}
	if _, ok := user["city"]; ok {
		t.Error("city should only appear when expanded")
	}

	got := decodeObject(t, doRequest(t, http.MethodGet, srv.URL+"/api/v1/users/"+user["id"].(string)+"?expand=city", "", ""), http.StatusOK)
	nested, ok := got["city"].(map[string]any)
	if !ok {
		t.Fatalf("city = %T, want object", got["city"])
	}
	if nested["name"] != "Lyon" || nested["latitude"] != 45.76 {
		t.Errorf("city = %v", nested)
	}
	if got["n_friends"] != float64(0) {
		t.Errorf("n_friends = %v, want 0", got["n_friends"])
	}
}

func TestGetUser_ExpandSkipsPrivateFields(t *testing.T) {
	srv, store := newTestServerWithStore(t)

	u := domain.User{
		ID: "u-secret", FirstName: "Ana", LastName: "Lopez", Email: "ana@example.com",
		Gender: domain.GenderNotKnown, CanHost: domain.HostNo,
		PasswordHash: "pbkdf2$hash", Role: "admin", CreatedAt: time.Now(),
	}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got := decodeObject(t, doRequest(t, http.MethodGet,
		srv.URL+"/api/v1/users/u-secret?expand=password_hash,role,city,n_friends", "", ""), http.StatusOK)

	for _, name := range []string{"password_hash", "role"} {
		if v, ok := got[name]; ok {
			t.Errorf("%s = %v, want it left out", name, v)
		}
	}
	if v, ok := got["city"]; !ok || v != nil {
		t.Errorf("city = %v (present=%v), want null", v, ok)
	}
	if got["first_name"] != "Ana" {
		t.Errorf("first_name = %v, want Ana", got["first_name"])
	}
}

func TestCreateUser_Validation(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/users", "",
		`{"first_name":"","last_name":"x","email":"nope","gender":"5"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var problem huma.ErrorModel
	if err := json.NewDecoder(resp.Body).Decode(&problem); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(problem.Errors) != 3 {
		t.Errorf("errors = %+v, want 3 entries", problem.Errors)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	srv := newTestServer(t)

	expectStatus(t, doRequest(t, http.MethodGet, srv.URL+"/api/v1/users/nonexistent", "", ""), http.StatusNotFound)
}

// --- Connections ---

func TestFriendship_Lifecycle(t *testing.T) {
	srv := newTestServer(t)
	ana := mustCreateUser(t, srv, "ana")
	bob := mustCreateUser(t, srv, "bob")

	created := decodeObject(t, doRequest(t, http.MethodPost, srv.URL+"/api/v1/connections/friendship", ana,
		fmt.Sprintf(`{"user_id":%q,"friendship_level":"good_friend"}`, bob)), http.StatusOK)

	if created["type_status"] != "pending" {
		t.Errorf("type_status = %v, want pending", created["type_status"])
	}
	if created["user_id"] != bob {
		t.Errorf("user_id = %v, want %s", created["user_id"], bob)
	}
	if created["friendship_level_description"] != "Good friend" {
		t.Errorf("friendship_level_description = %v", created["friendship_level_description"])
	}
	url := srv.URL + "/api/v1/connections/friendship/" + created["id"].(string)

	// The initiator cannot accept their own request.
	expectStatus(t, doRequest(t, http.MethodPatch, url, ana, `{"type_status":"accepted"}`), http.StatusForbidden)

	// Unknown states and missing edges are told apart.
	expectStatus(t, doRequest(t, http.MethodPatch, url, bob, `{"type_status":"archived"}`), http.StatusBadRequest)
	expectStatus(t, doRequest(t, http.MethodPatch, url, bob, `{"type_status":"removed"}`), http.StatusUnprocessableEntity)

	accepted := decodeObject(t, doRequest(t, http.MethodPatch, url, bob, `{"type_status":"accepted"}`), http.StatusOK)
	if accepted["type_status"] != "accepted" {
		t.Errorf("type_status = %v, want accepted", accepted["type_status"])
	}
	if accepted["user_id"] != ana {
		t.Errorf("user_id = %v, want %s", accepted["user_id"], ana)
	}

	resp := doRequest(t, http.MethodGet, url+"/history", ana, "")
	defer resp.Body.Close()
	var history []adapter.HistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 2 || history[1].State != "accepted" || history[1].Author != bob {
		t.Errorf("history = %+v", history)
	}

	user := decodeObject(t, doRequest(t, http.MethodGet, srv.URL+"/api/v1/users/"+ana, "", ""), http.StatusOK)
	if user["n_friends"] != float64(1) {
		t.Errorf("n_friends = %v, want 1", user["n_friends"])
	}

	carl := mustCreateUser(t, srv, "carl")
	expectStatus(t, doRequest(t, http.MethodGet, url, carl, ""), http.StatusForbidden)
}

func TestReference_Immutable(t *testing.T) {
	srv := newTestServer(t)
	ana := mustCreateUser(t, srv, "ana")
	bob := mustCreateUser(t, srv, "bob")

	expectStatus(t, doRequest(t, http.MethodPost, srv.URL+"/api/v1/connections/reference", ana,
		fmt.Sprintf(`{"user_id":%q,"text":"Great host","reference_type":"stellar"}`, bob)), http.StatusBadRequest)

	ref := decodeObject(t, doRequest(t, http.MethodPost, srv.URL+"/api/v1/connections/reference", ana,
		fmt.Sprintf(`{"user_id":%q,"text":"Great host","reference_type":"positive"}`, bob)), http.StatusOK)
	if ref["reference_type"] != "positive" {
		t.Errorf("reference_type = %v, want positive", ref["reference_type"])
	}
	if _, ok := ref["type_status"]; ok {
		t.Error("type_status should not be serialized for references")
	}

	expectStatus(t, doRequest(t, http.MethodPatch, srv.URL+"/api/v1/connections/reference/"+ref["id"].(string), ana,
		`{"type_status":"negative"}`), http.StatusUnprocessableEntity)
}

func TestConnections_RequireActor(t *testing.T) {
	srv := newTestServer(t)

	expectStatus(t, doRequest(t, http.MethodGet, srv.URL+"/api/v1/connections/friendship", "", ""), http.StatusUnprocessableEntity)
}

// --- Messages ---

func TestHospitalityRequest_Lifecycle(t *testing.T) {
	srv := newTestServer(t)
	ana := mustCreateUser(t, srv, "ana")
	bob := mustCreateUser(t, srv, "bob")

	body := fmt.Sprintf(`{"subject":"Couch?","text":"Hi!","recipient_list_ids":[%q],"date_from":%q,"date_to":%q}`,
		bob, futureDate(7), futureDate(9))
	msg := decodeObject(t, doRequest(t, http.MethodPost, srv.URL+"/api/v1/messages/hospitality_request", ana, body), http.StatusOK)

	if msg["status"] != "unread" {
		t.Errorf("status = %v, want unread", msg["status"])
	}
	url := srv.URL + "/api/v1/messages/hospitality_request/" + msg["id"].(string)

	// The sender may only cancel.
	expectStatus(t, doRequest(t, http.MethodPatch, url, ana, `{"status":"accepted"}`), http.StatusForbidden)

	accepted := decodeObject(t, doRequest(t, http.MethodPatch, url, bob, `{"status":"accepted","message_status":"read"}`), http.StatusOK)
	if accepted["status"] != "accepted" {
		t.Errorf("status = %v, want accepted", accepted["status"])
	}
	if accepted["message_status"] != "read" {
		t.Errorf("message_status = %v, want read", accepted["message_status"])
	}

	expectStatus(t, doRequest(t, http.MethodPatch, url, bob, `{"status":"unread"}`), http.StatusUnprocessableEntity)
	expectStatus(t, doRequest(t, http.MethodPatch, url, bob, `{"status":"archived"}`), http.StatusBadRequest)

	asSender := decodeObject(t, doRequest(t, http.MethodGet, url, ana, ""), http.StatusOK)
	if v, ok := asSender["message_status"]; !ok || v != nil {
		t.Errorf("sender message_status = %v (present=%v), want null", v, ok)
	}
}

func TestPrivateMessage_ListAndReply(t *testing.T) {
	srv := newTestServer(t)
	ana := mustCreateUser(t, srv, "ana")
	bob := mustCreateUser(t, srv, "bob")

	msg := decodeObject(t, doRequest(t, http.MethodPost, srv.URL+"/api/v1/messages/private", ana,
		fmt.Sprintf(`{"subject":"hello","text":"hi","recipient_list_ids":[%q,%q]}`, bob, bob)), http.StatusOK)
	if ids, _ := msg["recipient_list_ids"].([]any); len(ids) != 1 {
		t.Errorf("recipient_list_ids = %v, want one entry", msg["recipient_list_ids"])
	}

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/messages/private?direction=in", bob, "")
	defer resp.Body.Close()
	var inbox []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&inbox); err != nil {
		t.Fatalf("decode inbox: %v", err)
	}
	if len(inbox) != 1 || inbox[0]["message_status"] != "unread" {
		t.Fatalf("inbox = %v", inbox)
	}

	decodeObject(t, doRequest(t, http.MethodPost, srv.URL+"/api/v1/messages/private", bob,
		fmt.Sprintf(`{"subject":"re: hello","text":"hey","recipient_list_ids":[%q],"reply_to_id":%q}`, ana, msg["id"])), http.StatusOK)

	original := decodeObject(t, doRequest(t, http.MethodGet, srv.URL+"/api/v1/messages/private/"+msg["id"].(string), bob, ""), http.StatusOK)
	if original["message_status"] != "replied" {
		t.Errorf("message_status = %v, want replied", original["message_status"])
	}

	expectStatus(t, doRequest(t, http.MethodGet, srv.URL+"/api/v1/messages/private/nonexistent", bob, ""), http.StatusNotFound)
}

// --- Activities ---

func futureDateTime(hours int) string {
	return time.Now().UTC().Add(time.Duration(hours) * time.Hour).Format("2006-01-02T15:04:05")
}

func TestActivity_LifecycleAndRSVP(t *testing.T) {
	srv := newTestServer(t)
	ana := mustCreateUser(t, srv, "ana")
	bob := mustCreateUser(t, srv, "bob")
	city := decodeObject(t, doRequest(t, http.MethodPost, srv.URL+"/api/v1/cities", "",
		`{"name":"Berlin","latitude":52.52,"longitude":13.40,"country_code":"DEU"}`), http.StatusOK)

	// Starting within the hour is rejected.
	tooSoon := fmt.Sprintf(`{"title":"Picnic","description":"Bring food","location":"Park","city_id":%q,"scheduled_from":%q}`,
		city["id"], futureDateTime(0))
	expectStatus(t, doRequest(t, http.MethodPost, srv.URL+"/api/v1/activities", ana, tooSoon), http.StatusBadRequest)

	body := fmt.Sprintf(`{"title":"Picnic","description":"Bring food","location":"Park","city_id":%q,"scheduled_from":%q,"scheduled_until":%q}`,
		city["id"], futureDateTime(48), futureDateTime(51))
	activity := decodeObject(t, doRequest(t, http.MethodPost, srv.URL+"/api/v1/activities", ana, body), http.StatusOK)

	if _, ok := activity["creator_id"]; ok {
		t.Error("creator_id should not be serialized")
	}
	if activity["city_id"] != city["id"] {
		t.Errorf("city_id = %v, want %v", activity["city_id"], city["id"])
	}
	url := srv.URL + "/api/v1/activities/" + activity["id"].(string)

	rsvp := decodeObject(t, doRequest(t, http.MethodPut, url+"/rsvp", bob, `{"rsvp_status":"maybe","comment":"if sunny"}`), http.StatusOK)
	if rsvp["rsvp_status"] != "maybe" || rsvp["user_id"] != bob {
		t.Errorf("rsvp = %v", rsvp)
	}
	if _, ok := rsvp["id"]; ok {
		t.Error("rsvp id should not be serialized")
	}
	expectStatus(t, doRequest(t, http.MethodPut, url+"/rsvp", bob, `{"rsvp_status":"perhaps"}`), http.StatusBadRequest)

	got := decodeObject(t, doRequest(t, http.MethodGet, url+"?expand=creator_id", "", ""), http.StatusOK)
	if _, ok := got["creator_id"]; ok {
		t.Error("creator_id should not be expandable")
	}
	counts, ok := got["attending_count"].(map[string]any)
	if !ok {
		t.Fatalf("attending_count = %T, want object", got["attending_count"])
	}
	if counts["yes"] != float64(1) || counts["maybe"] != float64(1) || counts["no"] != float64(0) {
		t.Errorf("attending_count = %v, want yes=1 maybe=1 no=0", counts)
	}

	expectStatus(t, doRequest(t, http.MethodPatch, url, bob, `{"title":"Mine now"}`), http.StatusForbidden)
	patched := decodeObject(t, doRequest(t, http.MethodPatch, url, ana, `{"title":"Evening picnic"}`), http.StatusOK)
	if patched["title"] != "Evening picnic" {
		t.Errorf("title = %v, want Evening picnic", patched["title"])
	}

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/activities?city_id="+city["id"].(string), "", "")
	defer resp.Body.Close()
	var list []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0]["title"] != "Evening picnic" {
		t.Errorf("list = %v", list)
	}

	expectStatus(t, doRequest(t, http.MethodGet, srv.URL+"/api/v1/activities/missing", "", ""), http.StatusNotFound)
}
