package face

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"face-bridge-go/internal/integrations/msface"
)

type fakeImages struct {
	camera string
	image  []byte
	err    error
}

func (f *fakeImages) Snapshot(_ context.Context, camera string) ([]byte, error) {
	f.camera = camera
	return f.image, f.err
}

type recordedCommand struct {
	command string
	target  string
	err     error
}

type fakeRecorder struct {
	records []recordedCommand
}

func (f *fakeRecorder) RecordCommand(command, target string, _ []byte, cmdErr error) {
	f.records = append(f.records, recordedCommand{command: command, target: target, err: cmdErr})
}

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *fakeImages, *fakeRecorder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := msface.NewWithURL(srv.URL+"/", "test-key", 5*time.Second, nil)
	images := &fakeImages{image: []byte{0xff, 0xd8}}
	recorder := &fakeRecorder{}
	return NewService(client, images, recorder), images, recorder
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte(`{"personId": "abc123"}`))
}

func TestDispatch_UnknownCommand(t *testing.T) {
	svc, _, recorder := newTestService(t, okHandler)

	err := svc.Dispatch(context.Background(), Command("recognize"), nil)
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
	if len(recorder.records) != 0 {
		t.Errorf("unknown command must not be journaled, got %v", recorder.records)
	}
}

func TestDispatch_RejectsInvalidPayload(t *testing.T) {
	svc, _, recorder := newTestService(t, okHandler)

	cases := []struct {
		cmd     Command
		payload string
	}{
		{CommandCreateGroup, `{}`},
		{CommandDeleteGroup, `{"name": ""}`},
		{CommandTrainGroup, `{}`},
		{CommandCreatePerson, `{"name": "Alice"}`},
		{CommandDeletePerson, `{"group": "family"}`},
		{CommandFacePerson, `{"person": "Alice", "group": "family"}`},
		{CommandCreateGroup, `not json`},
	}
	for _, tc := range cases {
		if err := svc.Dispatch(context.Background(), tc.cmd, []byte(tc.payload)); err == nil {
			t.Errorf("%s with payload %q: expected validation error", tc.cmd, tc.payload)
		}
	}
	if len(recorder.records) != 0 {
		t.Errorf("rejected payloads must not be journaled, got %v", recorder.records)
	}
}

func TestDispatch_CreateGroupNormalizesName(t *testing.T) {
	var path string
	svc, _, recorder := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(`{}`))
	})

	if err := svc.Dispatch(context.Background(), CommandCreateGroup, []byte(`{"name": "My Family"}`)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if path != "/persongroups/my_family" {
		t.Errorf("expected normalized group id in path, got %s", path)
	}
	if len(recorder.records) != 1 || recorder.records[0].err != nil {
		t.Fatalf("expected one successful journal entry, got %v", recorder.records)
	}
	if recorder.records[0].target != "my_family" {
		t.Errorf("expected normalized target in journal, got %q", recorder.records[0].target)
	}
}

func TestDispatch_RemoteFailureIsSwallowed(t *testing.T) {
	svc, _, recorder := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error": {"message": "Person group already exists."}}`))
	})

	err := svc.Dispatch(context.Background(), CommandCreateGroup, []byte(`{"name": "Family"}`))
	if err != nil {
		t.Fatalf("remote failure must not reach the dispatcher, got %v", err)
	}

	if len(recorder.records) != 1 {
		t.Fatalf("expected one journal entry, got %d", len(recorder.records))
	}
	if recorder.records[0].err == nil {
		t.Error("expected journaled entry to carry the remote error")
	}
}

func TestDispatch_FacePersonFetchesSnapshot(t *testing.T) {
	var attachBody []byte
	svc, images, recorder := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/persistedFaces") {
			attachBody, _ = io.ReadAll(r.Body)
		}
		w.Write([]byte(`{"persistedFaceId": "pf1"}`))
	})

	payload := []byte(`{"person": "Alice", "group": "family", "camera": "front_door"}`)
	if err := svc.Dispatch(context.Background(), CommandFacePerson, payload); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if images.camera != "front_door" {
		t.Errorf("expected snapshot from front_door, got %q", images.camera)
	}
	if string(attachBody) != string(images.image) {
		t.Errorf("expected snapshot bytes forwarded, got %v", attachBody)
	}
	if len(recorder.records) != 1 || recorder.records[0].command != string(CommandFacePerson) {
		t.Fatalf("expected face_person journal entry, got %v", recorder.records)
	}
}

func TestDispatch_FacePersonWithoutImageSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(okHandler))
	defer srv.Close()
	client := msface.NewWithURL(srv.URL+"/", "test-key", 5*time.Second, nil)
	recorder := &fakeRecorder{}
	svc := NewService(client, nil, recorder)

	payload := []byte(`{"person": "Alice", "group": "family", "camera": "front_door"}`)
	if err := svc.Dispatch(context.Background(), CommandFacePerson, payload); err != nil {
		t.Fatalf("missing image source is a runtime outcome, not a dispatch error: %v", err)
	}
	if len(recorder.records) != 1 || recorder.records[0].err == nil {
		t.Fatalf("expected journaled failure, got %v", recorder.records)
	}
}

func TestValidateNormalizesGroup(t *testing.T) {
	args := PersonArgs{Name: "Alice", Group: "My Family"}
	if err := args.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if args.Group != "my_family" {
		t.Errorf("expected normalized group, got %q", args.Group)
	}
}
