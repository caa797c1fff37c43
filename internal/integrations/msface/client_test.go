package msface

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"
)

type fakeRefresher struct {
	mu        sync.Mutex
	refreshed []string
	removed   []string
}

func (f *fakeRefresher) RefreshGroup(e *GroupEntity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, e.ID())
	return nil
}

func (f *fakeRefresher) RemoveGroup(e *GroupEntity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, e.ID())
	return nil
}

func (f *fakeRefresher) refreshedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.refreshed...)
	sort.Strings(out)
	return out
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *fakeRefresher, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	refresher := &fakeRefresher{}
	client := NewWithURL(srv.URL+"/", "test-key", 5*time.Second, refresher)
	return client, refresher, srv
}

func TestCallAPI_SetsHeaders(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Ocp-Apim-Subscription-Key"); got != "test-key" {
			t.Errorf("expected subscription key header, got %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("expected json content type, got %q", got)
		}
		w.Write([]byte(`[]`))
	})

	if _, err := client.CallAPI(context.Background(), http.MethodGet, "persongroups", nil, false, nil); err != nil {
		t.Fatalf("CallAPI: %v", err)
	}
}

func TestCallAPI_RemoteErrorCarriesMessage(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error": {"code": "PersonGroupExists", "message": "Person group already exists."}}`))
	})

	_, err := client.CallAPI(context.Background(), http.MethodPut, "persongroups/family", nil, false, nil)
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError, got %T: %v", err, err)
	}
	if svcErr.Message != "Person group already exists." {
		t.Errorf("expected remote message, got %q", svcErr.Message)
	}
}

func TestCallAPI_RemoteErrorWithoutMessageField(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"unexpected": true}`))
	})

	_, err := client.CallAPI(context.Background(), http.MethodGet, "persongroups", nil, false, nil)
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError, got %T: %v", err, err)
	}
	if svcErr.Message != "" {
		t.Errorf("expected empty message for missing error field, got %q", svcErr.Message)
	}
}

func TestCallAPI_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewWithURL(srv.URL+"/", "test-key", 50*time.Millisecond, nil)

	for _, binary := range []bool{false, true} {
		var payload any
		if binary {
			payload = []byte{0x01}
		}
		_, err := client.CallAPI(context.Background(), http.MethodPost, "persongroups", payload, binary, nil)
		var svcErr *ServiceError
		if !errors.As(err, &svcErr) {
			t.Fatalf("binary=%v: expected ServiceError, got %T: %v", binary, err, err)
		}
		if svcErr.Message != "Timeout from face api" {
			t.Errorf("binary=%v: expected fixed timeout message, got %q", binary, svcErr.Message)
		}
	}
}

func TestCallAPI_ConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	srv.Close()

	client := NewWithURL(srv.URL+"/", "test-key", time.Second, nil)
	_, err := client.CallAPI(context.Background(), http.MethodGet, "persongroups", nil, false, nil)
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError, got %T: %v", err, err)
	}
	if svcErr.Message != "Can't connect to face api" {
		t.Errorf("expected fixed connection message, got %q", svcErr.Message)
	}
}

func TestCreateGroup(t *testing.T) {
	client, refresher, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/persongroups/my_family" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var payload map[string]string
		json.Unmarshal(body, &payload)
		if payload["name"] != "My Family" {
			t.Errorf("expected display name in payload, got %v", payload)
		}
		w.Write([]byte(`{}`))
	})

	if err := client.CreateGroup(context.Background(), "My Family"); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	if !client.Store().HasGroup("my_family") {
		t.Error("expected group in store after confirmed create")
	}
	if got := client.Store().PersonCount("my_family"); got != 0 {
		t.Errorf("expected empty person mapping, got %d", got)
	}
	if ids := refresher.refreshedIDs(); len(ids) != 1 || ids[0] != "my_family" {
		t.Errorf("expected entity refresh for my_family, got %v", ids)
	}
}

func TestCreateGroup_RemoteFailureLeavesStoreUntouched(t *testing.T) {
	client, refresher, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error": {"message": "Person group already exists."}}`))
	})

	err := client.CreateGroup(context.Background(), "Family")
	if err == nil {
		t.Fatal("expected error from remote conflict")
	}
	if client.Store().HasGroup("family") {
		t.Error("store must not be populated before remote success")
	}
	if len(refresher.refreshedIDs()) != 0 {
		t.Error("no entity refresh expected on failure")
	}
}

func TestDeleteGroup(t *testing.T) {
	deleted := false
	client, refresher, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			if r.URL.Path != "/persongroups/family" {
				t.Errorf("unexpected delete path: %s", r.URL.Path)
			}
			deleted = true
		}
		w.Write([]byte(`{}`))
	})

	if err := client.CreateGroup(context.Background(), "Family"); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if err := client.DeleteGroup(context.Background(), "Family"); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}

	if !deleted {
		t.Error("expected remote delete call")
	}
	if client.Store().HasGroup("family") {
		t.Error("expected group removed from store after confirmed delete")
	}
	if _, ok := client.Entity("family"); ok {
		t.Error("expected entity discarded after delete")
	}
	if len(refresher.removed) != 1 || refresher.removed[0] != "family" {
		t.Errorf("expected entity removal for family, got %v", refresher.removed)
	}
}

func TestTrainGroup(t *testing.T) {
	trained := false
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/persongroups/family/train" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		trained = true
		w.Write([]byte(`{}`))
	})

	if err := client.TrainGroup(context.Background(), "family"); err != nil {
		t.Fatalf("TrainGroup: %v", err)
	}
	if !trained {
		t.Error("expected remote train call")
	}
}

func TestPersonLifecycle(t *testing.T) {
	var deletePath string
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut:
			w.Write([]byte(`{}`))
		case r.Method == http.MethodPost:
			if r.URL.Path != "/persongroups/family/persons" {
				t.Errorf("unexpected create path: %s", r.URL.Path)
			}
			body, _ := io.ReadAll(r.Body)
			var payload map[string]string
			json.Unmarshal(body, &payload)
			if payload["name"] != "Alice" {
				t.Errorf("expected person name in payload, got %v", payload)
			}
			w.Write([]byte(`{"personId": "abc123"}`))
		case r.Method == http.MethodDelete:
			deletePath = r.URL.Path
			w.Write([]byte(`{}`))
		}
	})

	ctx := context.Background()
	if err := client.CreateGroup(ctx, "Family"); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	if err := client.CreatePerson(ctx, "family", "Alice"); err != nil {
		t.Fatalf("CreatePerson: %v", err)
	}
	if id, ok := client.Store().PersonID("family", "Alice"); !ok || id != "abc123" {
		t.Errorf("expected stored person id abc123, got %q (ok=%v)", id, ok)
	}

	if err := client.DeletePerson(ctx, "family", "Alice"); err != nil {
		t.Fatalf("DeletePerson: %v", err)
	}
	if deletePath != "/persongroups/family/persons/abc123" {
		t.Errorf("expected delete against stored person id, got %s", deletePath)
	}
	if _, ok := client.Store().PersonID("family", "Alice"); ok {
		t.Error("expected Alice removed from store after confirmed delete")
	}
}

// Eine lokal unbekannte Person wird nicht vorab abgewiesen; die Platzhalter-ID
// geht an den Dienst und scheitert dort. Bestehendes Verhalten, kein Fehler.
func TestDeletePerson_UnknownUsesPlaceholder(t *testing.T) {
	var deletePath string
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deletePath = r.URL.Path
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": {"message": "Person is not found."}}`))
			return
		}
		w.Write([]byte(`{}`))
	})

	ctx := context.Background()
	if err := client.CreateGroup(ctx, "Family"); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	err := client.DeletePerson(ctx, "family", "Ghost")
	if err == nil {
		t.Fatal("expected remote rejection of placeholder id")
	}
	if deletePath != "/persongroups/family/persons/not found" {
		t.Errorf("expected placeholder id in delete path, got %q", deletePath)
	}
}

func TestAttachFace(t *testing.T) {
	image := []byte{0xff, 0xd8, 0xff, 0xe0, 0x42}
	var gotBody []byte
	var gotContentType string
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/persongroups/family/persons":
			w.Write([]byte(`{"personId": "abc123"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/persongroups/family/persons/abc123/persistedFaces":
			gotContentType = r.Header.Get("Content-Type")
			gotBody, _ = io.ReadAll(r.Body)
			w.Write([]byte(`{"persistedFaceId": "pf1"}`))
		default:
			w.Write([]byte(`{}`))
		}
	})

	ctx := context.Background()
	if err := client.CreateGroup(ctx, "Family"); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if err := client.CreatePerson(ctx, "family", "Alice"); err != nil {
		t.Fatalf("CreatePerson: %v", err)
	}

	before := client.Store().PersonCount("family")
	if err := client.AttachFace(ctx, "family", "Alice", image); err != nil {
		t.Fatalf("AttachFace: %v", err)
	}

	if gotContentType != "application/octet-stream" {
		t.Errorf("expected octet-stream content type, got %q", gotContentType)
	}
	if string(gotBody) != string(image) {
		t.Errorf("expected raw image bytes as body, got %v", gotBody)
	}
	if got := client.Store().PersonCount("family"); got != before {
		t.Errorf("face attachment must not change the mirrored store, count %d -> %d", before, got)
	}
}

func TestUpdateStore(t *testing.T) {
	client, refresher, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/persongroups":
			w.Write([]byte(`[
				{"personGroupId": "family", "name": "Family"},
				{"personGroupId": "neighbors", "name": "Neighbors"}
			]`))
		case "/persongroups/family/persons":
			w.Write([]byte(`[
				{"personId": "abc123", "name": "Alice"},
				{"personId": "def456", "name": "Bob"}
			]`))
		case "/persongroups/neighbors/persons":
			w.Write([]byte(`[]`))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	})

	if err := client.UpdateStore(context.Background()); err != nil {
		t.Fatalf("UpdateStore: %v", err)
	}

	store := client.Store()
	if got := store.Persons("family"); got["Alice"] != "abc123" || got["Bob"] != "def456" || len(got) != 2 {
		t.Errorf("unexpected family mapping: %v", got)
	}
	if got := store.PersonCount("neighbors"); got != 0 {
		t.Errorf("expected empty neighbors group, got %d", got)
	}

	entity, ok := client.Entity("family")
	if !ok {
		t.Fatal("expected entity for family")
	}
	if got := entity.State(); got != 2 {
		t.Errorf("expected entity state 2, got %d", got)
	}

	want := []string{"family", "neighbors"}
	got := refresher.refreshedIDs()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("expected refresh for all groups, got %v", got)
	}
}

func TestUpdateStore_FailureKeepsPartialState(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/persongroups":
			w.Write([]byte(`[{"personGroupId": "family", "name": "Family"}]`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error": {"message": "boom"}}`))
		}
	})

	err := client.UpdateStore(context.Background())
	if err == nil {
		t.Fatal("expected error from failing person fetch")
	}

	// Teilbefüllung bleibt bestehen und wird nicht zurückgerollt
	if !client.Store().HasGroup("family") {
		t.Error("expected partially populated store to survive the failure")
	}
}
