package remote_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	kvmemory "tasktracker/internal/infra/kv/memory"
	"tasktracker/internal/infra/persistence/file"
	"tasktracker/internal/infra/persistence/memory"
	"tasktracker/internal/infra/persistence/remote"
	"tasktracker/internal/kv"
	"tasktracker/internal/kv/core"
	"tasktracker/pkg/domain"
)

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newRemote(t *testing.T, client core.Client) (*remote.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.csv")
	s, err := remote.New(context.Background(), client, "board", file.New(nil, path))
	if err != nil {
		t.Fatalf("remote.New: %v", err)
	}
	return s, path
}

func populate(t *testing.T, m domain.Manager) {
	t.Helper()
	ctx := context.Background()
	if _, err := m.AddTask(ctx, &domain.Task{Name: "write", Status: domain.StatusNew, StartTime: base, Duration: time.Hour}); err != nil {
		t.Fatalf("add task: %v", err)
	}
	epic, err := m.AddEpic(ctx, &domain.Epic{Name: "release"})
	if err != nil {
		t.Fatalf("add epic: %v", err)
	}
	if _, err := m.AddSubtask(ctx, &domain.Subtask{Name: "tag", Status: domain.StatusDone, EpicID: epic.ID, StartTime: base.Add(2 * time.Hour), Duration: time.Minute}); err != nil {
		t.Fatalf("add subtask: %v", err)
	}
	m.Task(1)
}

func TestPushesFileContentsAfterEveryMutation(t *testing.T) {
	ctx := context.Background()
	client := kv.NewClient(kvmemory.New())
	s, path := newRemote(t, client)
	populate(t, s)

	local, err := s.Local().ReadAll()
	if err != nil {
		t.Fatalf("read local: %v", err)
	}
	pushed, err := client.Load(ctx, "board", s.Token())
	if err != nil {
		t.Fatalf("load pushed: %v", err)
	}
	if pushed != string(local) {
		t.Fatalf("remote copy differs from %s:\n%q\n%q", path, pushed, local)
	}
	if !strings.HasSuffix(pushed, "\n\n1\n") {
		t.Fatalf("history line missing: %q", pushed)
	}
}

func TestClearedStatePushesBlankPayload(t *testing.T) {
	ctx := context.Background()
	client := kv.NewClient(kvmemory.New())
	s, _ := newRemote(t, client)
	if err := s.ClearTasks(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	pushed, err := client.Load(ctx, "board", s.Token())
	if err != nil || pushed != "\n" {
		t.Fatalf("pushed = %q %v", pushed, err)
	}
	restored, err := remote.Load(ctx, client, "board", filepath.Join(t.TempDir(), "copy.csv"), remote.WithToken(s.Token()))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(restored.Tasks()) != 0 || len(restored.History()) != 0 {
		t.Fatalf("expected empty state")
	}
}

func TestLoadRestoresPushedState(t *testing.T) {
	ctx := context.Background()
	client := kv.NewClient(kvmemory.New())
	s, _ := newRemote(t, client)
	populate(t, s)

	restored, err := remote.Load(ctx, client, "board", filepath.Join(t.TempDir(), "copy.csv"),
		remote.WithFileOptions(file.WithMemoryOptions(memory.WithHistoryCapacity(5))))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := s.ExportState()
	got := restored.ExportState()
	if len(got.Tasks) != 1 || !got.Tasks[0].Equal(want.Tasks[0]) {
		t.Fatalf("tasks = %+v", got.Tasks)
	}
	if len(got.Epics) != 1 || got.Epics[0].Status != domain.StatusDone || len(got.Epics[0].SubtaskIDs) != 1 {
		t.Fatalf("epics = %+v", got.Epics)
	}
	if len(got.History) != 1 || got.History[0] != 1 {
		t.Fatalf("history = %v", got.History)
	}
	if restored.Token() == s.Token() {
		t.Fatalf("expected a freshly registered token")
	}

	// the restored store keeps pushing under the same key
	if _, err := restored.RemoveTask(ctx, 1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	pushed, _ := client.Load(ctx, "board", s.Token())
	if strings.Contains(pushed, ",TASK,") {
		t.Fatalf("removal not pushed: %q", pushed)
	}
}

func TestLoadFailuresAreLoadErrors(t *testing.T) {
	ctx := context.Background()
	bucket := kvmemory.New()
	client := kv.NewClient(bucket)
	token, _ := client.Register(ctx)
	if err := client.Save(ctx, "garbage", token, "1,TASK,only-three\n"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := bucket.Put(ctx, "blank", nil); err != nil {
		t.Fatalf("seed blank: %v", err)
	}
	cases := []struct {
		name   string
		client core.Client
		key    string
		opts   []remote.Option
		cause  error
	}{
		{"missing key", client, "never-saved", nil, core.ErrKeyNotFound},
		{"bad token", client, "garbage", []remote.Option{remote.WithToken("forged")}, core.ErrUnauthorized},
		{"malformed payload", client, "garbage", nil, domain.ErrMalformed},
		{"empty stored value", client, "blank", nil, core.ErrEmptyPayload},
		{"empty payload", blankClient{client}, "garbage", nil, core.ErrEmptyPayload},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := remote.Load(ctx, tc.client, tc.key, filepath.Join(t.TempDir(), "x.csv"), tc.opts...)
			if !errors.Is(err, domain.ErrLoad) || !errors.Is(err, tc.cause) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

// blankClient answers every load with an empty body, as a misbehaving
// service could.
type blankClient struct {
	core.Client
}

func (blankClient) Load(context.Context, string, string) (string, error) { return "", nil }

type brokenClient struct {
	core.Client
	failRegister bool
}

func (b brokenClient) Register(ctx context.Context) (string, error) {
	if b.failRegister {
		return "", errors.New("connection refused")
	}
	return b.Client.Register(ctx)
}

func (brokenClient) Save(context.Context, string, string, string) error {
	return errors.New("connection reset")
}

func TestPushFailureIsSaveErrorWithoutRollback(t *testing.T) {
	ctx := context.Background()
	s, _ := newRemote(t, brokenClient{Client: kv.NewClient(kvmemory.New())})
	task, err := s.AddTask(ctx, &domain.Task{Name: "kept", StartTime: base, Duration: time.Minute})
	if !errors.Is(err, domain.ErrSave) {
		t.Fatalf("expected ErrSave, got %v", err)
	}
	if task.ID == 0 {
		t.Fatalf("committed task not returned")
	}
	if _, ok := s.Task(task.ID); !ok {
		t.Fatalf("memory rolled back")
	}
	if data, _ := s.Local().ReadAll(); !strings.Contains(string(data), "kept") {
		t.Fatalf("local file not written: %q", data)
	}
}

func TestRegisterFailure(t *testing.T) {
	client := brokenClient{Client: kv.NewClient(kvmemory.New()), failRegister: true}
	path := filepath.Join(t.TempDir(), "tasks.csv")
	if _, err := remote.New(context.Background(), client, "", file.New(nil, path)); !errors.Is(err, domain.ErrLoad) {
		t.Fatalf("err = %v", err)
	}
	s, err := remote.New(context.Background(), client, "", file.New(nil, path), remote.WithToken("given"))
	if err != nil {
		t.Fatalf("with token: %v", err)
	}
	if s.Key() != remote.DefaultKey || s.Token() != "given" {
		t.Fatalf("key=%s token=%s", s.Key(), s.Token())
	}
}

func TestRejectionsAreNotPushed(t *testing.T) {
	ctx := context.Background()
	client := kv.NewClient(kvmemory.New())
	s, _ := newRemote(t, client)
	if _, err := s.RemoveEpic(ctx, 42); !domain.IsRejection(err) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if _, err := client.Load(ctx, "board", s.Token()); !errors.Is(err, core.ErrKeyNotFound) {
		t.Fatalf("rejected call was pushed: %v", err)
	}
}
