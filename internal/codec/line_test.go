package codec

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"tasktracker/pkg/domain"
)

var t0 = time.Date(2024, time.May, 2, 8, 30, 0, 0, time.UTC)

func sampleSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Tasks: []domain.Task{
			{ID: 1, Name: "write report", Description: "quarterly", Status: domain.StatusNew, StartTime: t0, Duration: 90 * time.Minute},
			{ID: 2, Name: "review", Description: "code, docs and \"tests\"", Status: domain.StatusInProgress, StartTime: t0.Add(2 * time.Hour), Duration: time.Hour},
			{ID: 3, Name: "ship", Description: "", Status: domain.StatusDone, StartTime: t0.Add(4 * time.Hour), Duration: 15 * time.Minute},
		},
		Epics: []domain.Epic{
			{ID: 4, Name: "release", Description: "v2", Status: domain.StatusInProgress, SubtaskIDs: []int64{6, 7, 8}},
			{ID: 5, Name: "cleanup", Description: "multi\nline", Status: domain.StatusNew, SubtaskIDs: []int64{9, 10}},
		},
		Subtasks: []domain.Subtask{
			{ID: 6, Name: "branch", Status: domain.StatusDone, EpicID: 4, StartTime: t0.Add(24 * time.Hour), Duration: 10 * time.Minute},
			{ID: 7, Name: "tag", Status: domain.StatusNew, EpicID: 4, StartTime: t0.Add(25 * time.Hour), Duration: 5 * time.Minute},
			{ID: 8, Name: "announce", Status: domain.StatusNew, EpicID: 4, StartTime: t0.Add(26 * time.Hour), Duration: 500 * time.Millisecond},
			{ID: 9, Name: "logs", Status: domain.StatusNew, EpicID: 5, StartTime: t0.Add(48 * time.Hour), Duration: time.Hour},
			{ID: 10, Name: "cache", Status: domain.StatusNew, EpicID: 5, StartTime: t0.Add(50 * time.Hour).Add(123 * time.Nanosecond), Duration: 0},
		},
		History: []int64{7, 1, 5, 10},
	}
}

func TestRoundTrip(t *testing.T) {
	want := sampleSnapshot()
	data, err := Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, data)
	}
	if len(got.Tasks) != 3 || len(got.Epics) != 2 || len(got.Subtasks) != 5 {
		t.Fatalf("counts: %d/%d/%d", len(got.Tasks), len(got.Epics), len(got.Subtasks))
	}
	for i := range want.Tasks {
		w, g := want.Tasks[i], got.Tasks[i]
		if !w.Equal(g) || !w.StartTime.Equal(g.StartTime) || w.Duration != g.Duration {
			t.Fatalf("task %d: got %+v want %+v", i, g, w)
		}
	}
	for i := range want.Epics {
		if !want.Epics[i].Equal(got.Epics[i]) || want.Epics[i].Name != got.Epics[i].Name || want.Epics[i].Description != got.Epics[i].Description {
			t.Fatalf("epic %d: got %+v want %+v", i, got.Epics[i], want.Epics[i])
		}
	}
	for i := range want.Subtasks {
		w, g := want.Subtasks[i], got.Subtasks[i]
		if !w.Equal(g) || !w.StartTime.Equal(g.StartTime) || w.Duration != g.Duration {
			t.Fatalf("subtask %d: got %+v want %+v", i, g, w)
		}
	}
	if !slices.Equal(got.History, want.History) {
		t.Fatalf("history = %v", got.History)
	}
}

func TestEncodeLayout(t *testing.T) {
	snap := domain.Snapshot{
		Tasks:    []domain.Task{{ID: 1, Name: "a", Description: "d", Status: domain.StatusNew, StartTime: t0, Duration: time.Hour}},
		Epics:    []domain.Epic{{ID: 2, Name: "e", Description: "x", Status: domain.StatusNew, SubtaskIDs: []int64{3}}},
		Subtasks: []domain.Subtask{{ID: 3, Name: "s", Description: "y", Status: domain.StatusNew, EpicID: 2, StartTime: t0.Add(time.Hour), Duration: 30 * time.Minute}},
		History:  []int64{3, 1},
	}
	var buf bytes.Buffer
	if err := Encode(&buf, snap); err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := strings.Join([]string{
		"1,TASK,a,NEW,d,2024-05-02T08:30:00Z,1h0m0s",
		"2,EPIC,e,NEW,x",
		"3,SUBTASK,s,NEW,y,2,2024-05-02T09:30:00Z,30m0s",
		"",
		"3,1",
		"",
	}, "\n")
	if buf.String() != want {
		t.Fatalf("encoded:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestEncodeWithoutHistoryOmitsTrailer(t *testing.T) {
	snap := sampleSnapshot()
	snap.History = nil
	data, err := Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if bytes.HasSuffix(data, []byte("\n\n")) {
		t.Fatalf("unexpected history trailer in %q", data)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.History) != 0 {
		t.Fatalf("history = %v", got.History)
	}
}

func TestDecodeBlankLineSeparator(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		tasks   int
		history []int64
	}{
		{"separator only", "\n", 0, nil},
		{"history only", "\n3,1\n", 0, []int64{3, 1}},
		{"no trailing newline", "1,TASK,a,NEW,d,2024-05-02T08:30:00Z,1m0s\n\n1", 1, []int64{1}},
		{"crlf", "1,TASK,a,NEW,d,2024-05-02T08:30:00Z,1m0s\r\n\r\n1\r\n", 1, []int64{1}},
		{"blank line inside quoted field", "1,TASK,a,NEW,\"x\n\ny\",2024-05-02T08:30:00Z,1m0s\n\n1\n", 1, []int64{1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Unmarshal([]byte(tc.in))
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(got.Tasks) != tc.tasks || !slices.Equal(got.History, tc.history) {
				t.Fatalf("tasks=%d history=%v", len(got.Tasks), got.History)
			}
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	got, err := Unmarshal(nil)
	if err != nil {
		t.Fatalf("decode empty: %v", err)
	}
	if len(got.Tasks)+len(got.Epics)+len(got.Subtasks)+len(got.History) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", got)
	}
}

func TestLineHelpers(t *testing.T) {
	task := domain.Task{ID: 7, Name: "a,b", Description: "c", Status: domain.StatusDone, StartTime: t0, Duration: time.Minute}
	line := EncodeTask(task)
	if line != `7,TASK,"a,b",DONE,c,2024-05-02T08:30:00Z,1m0s` {
		t.Fatalf("EncodeTask = %s", line)
	}
	back, err := DecodeTask(line)
	if err != nil || !back.Equal(task) {
		t.Fatalf("DecodeTask = %+v, %v", back, err)
	}

	epic := domain.Epic{ID: 8, Name: "e", Status: domain.StatusNew}
	gotEpic, err := DecodeEpic(EncodeEpic(epic))
	if err != nil || gotEpic.ID != 8 || gotEpic.Name != "e" {
		t.Fatalf("DecodeEpic = %+v, %v", gotEpic, err)
	}

	sub := domain.Subtask{ID: 9, Name: "s", Status: domain.StatusNew, EpicID: 8, StartTime: t0, Duration: time.Second}
	known := func(id int64) (domain.Epic, bool) { return epic, id == epic.ID }
	gotSub, err := DecodeSubtask(EncodeSubtask(sub), known)
	if err != nil || !gotSub.Equal(sub) {
		t.Fatalf("DecodeSubtask = %+v, %v", gotSub, err)
	}

	ids, err := DecodeHistory(EncodeHistory([]int64{3, 2, 1}))
	if err != nil || !slices.Equal(ids, []int64{3, 2, 1}) {
		t.Fatalf("history = %v, %v", ids, err)
	}
	if ids, err := DecodeHistory(""); err != nil || ids != nil {
		t.Fatalf("empty history = %v, %v", ids, err)
	}
}

func TestDecodeRejectsBadRecords(t *testing.T) {
	noEpic := func(int64) (domain.Epic, bool) { return domain.Epic{}, false }
	cases := []struct {
		name string
		fn   func() error
	}{
		{"task wrong kind", func() error { _, err := DecodeTask("1,EPIC,a,NEW,d"); return err }},
		{"task short", func() error { _, err := DecodeTask("1,TASK,a,NEW,d"); return err }},
		{"task bad id", func() error { _, err := DecodeTask("x,TASK,a,NEW,d,2024-05-02T08:30:00Z,1m0s"); return err }},
		{"task bad status", func() error { _, err := DecodeTask("1,TASK,a,OPEN,d,2024-05-02T08:30:00Z,1m0s"); return err }},
		{"task bad time", func() error { _, err := DecodeTask("1,TASK,a,NEW,d,yesterday,1m0s"); return err }},
		{"task bad duration", func() error { _, err := DecodeTask("1,TASK,a,NEW,d,2024-05-02T08:30:00Z,PT1M"); return err }},
		{"epic extra column", func() error { _, err := DecodeEpic("1,EPIC,a,NEW,d,x"); return err }},
		{"subtask unknown epic", func() error {
			_, err := DecodeSubtask("2,SUBTASK,s,NEW,d,1,2024-05-02T08:30:00Z,1m0s", noEpic)
			return err
		}},
		{"history garbage", func() error { _, err := DecodeHistory("1,two,3"); return err }},
		{"stream subtask before epic", func() error {
			_, err := Unmarshal([]byte("2,SUBTASK,s,NEW,d,1,2024-05-02T08:30:00Z,1m0s\n1,EPIC,e,NEW,d\n"))
			return err
		}},
		{"stream record after history", func() error {
			_, err := Unmarshal([]byte("1,EPIC,e,NEW,d\n\n1\n2,EPIC,f,NEW,d\n"))
			return err
		}},
		{"stream task after blank line", func() error {
			_, err := Unmarshal([]byte("1,TASK,a,NEW,d,2024-05-02T08:30:00Z,1m0s\n\n2,TASK,b,NEW,d,2024-05-02T09:30:00Z,1m0s\n"))
			return err
		}},
		{"stream history without blank line", func() error {
			_, err := Unmarshal([]byte("1,EPIC,e,NEW,d\n1\n"))
			return err
		}},
		{"stream second blank line", func() error {
			_, err := Unmarshal([]byte("1,EPIC,e,NEW,d\n\n\n1\n"))
			return err
		}},
		{"stream bad quoting", func() error {
			_, err := Unmarshal([]byte("1,EPIC,\"e,NEW,d\n"))
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.fn()
			if !errors.Is(err, ErrFormat) || !errors.Is(err, domain.ErrMalformed) {
				t.Fatalf("expected format error, got %v", err)
			}
		})
	}
}
