// Package codec implements the line-oriented text format used to persist the
// manager state: one comma-separated record per work item, a blank line, then
// an optional record listing the recently viewed identifiers.
//
//	<id>,TASK,<name>,<status>,<description>,<startTime>,<duration>
//	<id>,EPIC,<name>,<status>,<description>
//	<id>,SUBTASK,<name>,<status>,<description>,<epicId>,<startTime>,<duration>
//
// Fields containing a comma, a quote or a line break are quoted as in RFC 4180.
// Times are RFC 3339 with nanoseconds, durations use time.Duration text.
package codec

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"tasktracker/pkg/domain"
)

// ErrFormat reports a record that cannot be decoded. It wraps
// domain.ErrMalformed.
var ErrFormat = fmt.Errorf("codec: %w", domain.ErrMalformed)

const (
	taskColumns    = 7
	epicColumns    = 5
	subtaskColumns = 8
)

// EpicLookup resolves the parent of a decoded subtask.
type EpicLookup func(id int64) (domain.Epic, bool)

// EncodeTask renders a task as a single record.
func EncodeTask(t domain.Task) string {
	return joinRecord(taskRecord(t))
}

// EncodeEpic renders an epic as a single record. Derived schedule fields are
// not written; they are recomputed from the subtasks on load.
func EncodeEpic(e domain.Epic) string {
	return joinRecord(epicRecord(e))
}

// EncodeSubtask renders a subtask as a single record.
func EncodeSubtask(st domain.Subtask) string {
	return joinRecord(subtaskRecord(st))
}

// EncodeHistory renders identifiers, most recent first.
func EncodeHistory(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// DecodeTask parses a task record.
func DecodeTask(line string) (domain.Task, error) {
	rec, err := splitRecord(line)
	if err != nil {
		return domain.Task{}, err
	}
	return parseTask(rec)
}

// DecodeEpic parses an epic record.
func DecodeEpic(line string) (domain.Epic, error) {
	rec, err := splitRecord(line)
	if err != nil {
		return domain.Epic{}, err
	}
	return parseEpic(rec)
}

// DecodeSubtask parses a subtask record. The parent epic must be known to
// lookup.
func DecodeSubtask(line string, lookup EpicLookup) (domain.Subtask, error) {
	rec, err := splitRecord(line)
	if err != nil {
		return domain.Subtask{}, err
	}
	return parseSubtask(rec, lookup)
}

// DecodeHistory parses a history record.
func DecodeHistory(line string) ([]int64, error) {
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	return parseHistory(strings.Split(line, ","))
}

// Encode writes the full snapshot: tasks, epics, subtasks, then a blank line
// and the history record when the history is not empty.
func Encode(w io.Writer, snap domain.Snapshot) error {
	cw := csv.NewWriter(w)
	for _, t := range snap.Tasks {
		if err := cw.Write(taskRecord(t)); err != nil {
			return err
		}
	}
	for _, e := range snap.Epics {
		if err := cw.Write(epicRecord(e)); err != nil {
			return err
		}
	}
	for _, st := range snap.Subtasks {
		if err := cw.Write(subtaskRecord(st)); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	if len(snap.History) == 0 {
		return nil
	}
	_, err := fmt.Fprintf(w, "\n%s\n", EncodeHistory(snap.History))
	return err
}

// Marshal is Encode into a byte slice.
func Marshal(snap domain.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a stream produced by Encode. Item records end at the first
// empty line; at most one history record may follow it. Epic membership is
// rebuilt from the subtask records in stream order.
func Decode(r io.Reader) (domain.Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.Snapshot{}, err
	}
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	var (
		snap        domain.Snapshot
		epicIndexes = make(map[int64]int)
	)
	lookup := func(id int64) (domain.Epic, bool) {
		i, ok := epicIndexes[id]
		if !ok {
			return domain.Epic{}, false
		}
		return snap.Epics[i], true
	}
	for {
		// csv skips empty lines, so the separator is detected from the
		// reader offset before each record.
		offset := int(cr.InputOffset())
		if n := blankLineAt(data[offset:]); n > 0 {
			line := bytes.Count(data[:offset], []byte("\n")) + 2
			ids, err := decodeTrailer(data[offset+n:], line)
			if err != nil {
				return domain.Snapshot{}, err
			}
			snap.History = ids
			return snap, nil
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return snap, nil
		}
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		line, _ := cr.FieldPos(0)
		if !isItemRecord(rec) {
			return domain.Snapshot{}, fmt.Errorf("%w: line %d: not an item record", ErrFormat, line)
		}
		switch domain.Kind(rec[1]) {
		case domain.KindTask:
			t, err := parseTask(rec)
			if err != nil {
				return domain.Snapshot{}, fmt.Errorf("line %d: %w", line, err)
			}
			snap.Tasks = append(snap.Tasks, t)
		case domain.KindEpic:
			e, err := parseEpic(rec)
			if err != nil {
				return domain.Snapshot{}, fmt.Errorf("line %d: %w", line, err)
			}
			epicIndexes[e.ID] = len(snap.Epics)
			snap.Epics = append(snap.Epics, e)
		case domain.KindSubtask:
			st, err := parseSubtask(rec, lookup)
			if err != nil {
				return domain.Snapshot{}, fmt.Errorf("line %d: %w", line, err)
			}
			parent := &snap.Epics[epicIndexes[st.EpicID]]
			parent.SubtaskIDs = append(parent.SubtaskIDs, st.ID)
			snap.Subtasks = append(snap.Subtasks, st)
		}
	}
}

// blankLineAt returns the length of the empty line starting data, or 0.
func blankLineAt(data []byte) int {
	switch {
	case bytes.HasPrefix(data, []byte("\n")):
		return 1
	case bytes.HasPrefix(data, []byte("\r\n")):
		return 2
	}
	return 0
}

// decodeTrailer parses what follows the separator: nothing, or a single
// history record. line is the line number of that record.
func decodeTrailer(rest []byte, line int) ([]int64, error) {
	text := strings.TrimRight(string(rest), "\r\n")
	if text == "" {
		return nil, nil
	}
	if strings.ContainsAny(text, "\r\n") {
		return nil, fmt.Errorf("%w: line %d: record after history", ErrFormat, line+1)
	}
	rec, err := splitRecord(text)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", line, err)
	}
	if isItemRecord(rec) {
		return nil, fmt.Errorf("%w: line %d: item record after the blank line", ErrFormat, line)
	}
	ids, err := parseHistory(rec)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", line, err)
	}
	return ids, nil
}

// Unmarshal is Decode over a byte slice.
func Unmarshal(data []byte) (domain.Snapshot, error) {
	return Decode(bytes.NewReader(data))
}

func isItemRecord(rec []string) bool {
	if len(rec) < 2 {
		return false
	}
	_, err := domain.ParseKind(rec[1])
	return err == nil
}

func taskRecord(t domain.Task) []string {
	return []string{
		strconv.FormatInt(t.ID, 10),
		string(domain.KindTask),
		t.Name,
		string(t.Status),
		t.Description,
		formatTime(t.StartTime),
		t.Duration.String(),
	}
}

func epicRecord(e domain.Epic) []string {
	return []string{
		strconv.FormatInt(e.ID, 10),
		string(domain.KindEpic),
		e.Name,
		string(e.Status),
		e.Description,
	}
}

func subtaskRecord(st domain.Subtask) []string {
	return []string{
		strconv.FormatInt(st.ID, 10),
		string(domain.KindSubtask),
		st.Name,
		string(st.Status),
		st.Description,
		strconv.FormatInt(st.EpicID, 10),
		formatTime(st.StartTime),
		st.Duration.String(),
	}
}

func parseTask(rec []string) (domain.Task, error) {
	if err := expect(rec, domain.KindTask, taskColumns); err != nil {
		return domain.Task{}, err
	}
	id, err := parseID(rec[0])
	if err != nil {
		return domain.Task{}, err
	}
	status, err := parseStatus(rec[3])
	if err != nil {
		return domain.Task{}, err
	}
	start, err := parseTime(rec[5])
	if err != nil {
		return domain.Task{}, err
	}
	dur, err := parseDuration(rec[6])
	if err != nil {
		return domain.Task{}, err
	}
	return domain.Task{ID: id, Name: rec[2], Description: rec[4], Status: status, StartTime: start, Duration: dur}, nil
}

func parseEpic(rec []string) (domain.Epic, error) {
	if err := expect(rec, domain.KindEpic, epicColumns); err != nil {
		return domain.Epic{}, err
	}
	id, err := parseID(rec[0])
	if err != nil {
		return domain.Epic{}, err
	}
	status, err := parseStatus(rec[3])
	if err != nil {
		return domain.Epic{}, err
	}
	return domain.Epic{ID: id, Name: rec[2], Description: rec[4], Status: status}, nil
}

func parseSubtask(rec []string, lookup EpicLookup) (domain.Subtask, error) {
	if err := expect(rec, domain.KindSubtask, subtaskColumns); err != nil {
		return domain.Subtask{}, err
	}
	id, err := parseID(rec[0])
	if err != nil {
		return domain.Subtask{}, err
	}
	status, err := parseStatus(rec[3])
	if err != nil {
		return domain.Subtask{}, err
	}
	epicID, err := parseID(rec[5])
	if err != nil {
		return domain.Subtask{}, err
	}
	if lookup == nil {
		return domain.Subtask{}, fmt.Errorf("%w: no epic lookup for subtask %d", ErrFormat, id)
	}
	if _, ok := lookup(epicID); !ok {
		return domain.Subtask{}, fmt.Errorf("%w: subtask %d references unknown epic %d", ErrFormat, id, epicID)
	}
	start, err := parseTime(rec[6])
	if err != nil {
		return domain.Subtask{}, err
	}
	dur, err := parseDuration(rec[7])
	if err != nil {
		return domain.Subtask{}, err
	}
	return domain.Subtask{ID: id, Name: rec[2], Description: rec[4], Status: status, EpicID: epicID, StartTime: start, Duration: dur}, nil
}

func parseHistory(fields []string) ([]int64, error) {
	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := parseID(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func expect(rec []string, kind domain.Kind, columns int) error {
	if len(rec) < 2 || domain.Kind(rec[1]) != kind {
		return fmt.Errorf("%w: record is not a %s", ErrFormat, kind)
	}
	if len(rec) != columns {
		return fmt.Errorf("%w: %s record has %d columns, want %d", ErrFormat, kind, len(rec), columns)
	}
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid identifier %q", ErrFormat, s)
	}
	return id, nil
}

func parseStatus(s string) (domain.Status, error) {
	st, err := domain.ParseStatus(s)
	if err != nil {
		return "", fmt.Errorf("%w: invalid status %q", ErrFormat, s)
	}
	return st, nil
}

func formatTime(t time.Time) string { return t.Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid time %q", ErrFormat, s)
	}
	return t, nil
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: invalid duration %q", ErrFormat, s)
	}
	return d, nil
}

func joinRecord(rec []string) string {
	var b strings.Builder
	cw := csv.NewWriter(&b)
	_ = cw.Write(rec)
	cw.Flush()
	return strings.TrimSuffix(b.String(), "\n")
}

func splitRecord(line string) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(line))
	cr.FieldsPerRecord = -1
	rec, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return rec, nil
}
