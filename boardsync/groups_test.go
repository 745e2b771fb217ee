package boardsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type createItemCall struct {
	boardId      string
	itemName     string
	columnValues map[string]interface{}
	groupId      string
}

// fakeBoard is an in-memory board. Created groups become visible to later
// ListGroups calls, like the real API.
type fakeBoard struct {
	groups map[string]string

	listErr        error
	createGroupErr error
	createItemErr  error
	emptyGroupId   bool
	emptyItemId    bool

	createGroupCalls []string
	createItemCalls  []createItemCall
	nextId           int
}

func (f *fakeBoard) ListGroups(ctx context.Context, boardId string) (map[string]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make(map[string]string, len(f.groups))
	for k, v := range f.groups {
		out[k] = v
	}
	return out, nil
}

func (f *fakeBoard) CreateGroup(ctx context.Context, boardId, groupName string) (string, error) {
	f.createGroupCalls = append(f.createGroupCalls, groupName)
	if f.createGroupErr != nil {
		return "", f.createGroupErr
	}
	if f.emptyGroupId {
		return "", nil
	}
	f.nextId++
	id := fmt.Sprintf("group-%d", f.nextId)
	if f.groups == nil {
		f.groups = make(map[string]string)
	}
	f.groups[groupName] = id
	return id, nil
}

func (f *fakeBoard) CreateItem(ctx context.Context, boardId, itemName string, columnValues map[string]interface{}, groupId string) (string, error) {
	f.createItemCalls = append(f.createItemCalls, createItemCall{
		boardId:      boardId,
		itemName:     itemName,
		columnValues: columnValues,
		groupId:      groupId,
	})
	if f.createItemErr != nil {
		return "", f.createItemErr
	}
	if f.emptyItemId {
		return "", nil
	}
	f.nextId++
	return fmt.Sprintf("item-%d", f.nextId), nil
}

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestGroupLabel(t *testing.T) {
	cases := []struct {
		date time.Time
		want string
	}{
		{time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), "jan-2024"},
		{time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), "dec-2024"},
		{time.Date(2025, 6, 30, 23, 59, 0, 0, time.UTC), "jun-2025"},
	}
	for _, tc := range cases {
		if got := GroupLabel(tc.date); got != tc.want {
			t.Fatalf("GroupLabel(%s) = %q, want %q", tc.date, got, tc.want)
		}
	}
}

func TestResolveGroup_ReusesExistingGroup(t *testing.T) {
	board := &fakeBoard{groups: map[string]string{"jan-2024": "grp-existing"}}
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	id, err := ResolveGroup(context.Background(), board, "board-1", date, discardLogger())
	if err != nil {
		t.Fatalf("ResolveGroup: %v", err)
	}
	if id != "grp-existing" {
		t.Fatalf("got group id %q, want grp-existing", id)
	}
	if len(board.createGroupCalls) != 0 {
		t.Fatalf("existing group must not be recreated, got %v", board.createGroupCalls)
	}
}

func TestResolveGroup_CreatesMissingGroup(t *testing.T) {
	board := &fakeBoard{}
	date := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	id, err := ResolveGroup(context.Background(), board, "board-1", date, discardLogger())
	if err != nil {
		t.Fatalf("ResolveGroup: %v", err)
	}
	if id == "" {
		t.Fatalf("expected a group id")
	}
	if len(board.createGroupCalls) != 1 || board.createGroupCalls[0] != "mar-2024" {
		t.Fatalf("expected one CreateGroup(mar-2024), got %v", board.createGroupCalls)
	}

	// A second document in the same month reuses the group just created.
	id2, err := ResolveGroup(context.Background(), board, "board-1", date.AddDate(0, 0, 10), discardLogger())
	if err != nil {
		t.Fatalf("second ResolveGroup: %v", err)
	}
	if id2 != id {
		t.Fatalf("same month resolved to different groups: %q vs %q", id, id2)
	}
	if len(board.createGroupCalls) != 1 {
		t.Fatalf("group created twice for one label: %v", board.createGroupCalls)
	}
}

func TestResolveGroup_ListFailure(t *testing.T) {
	board := &fakeBoard{listErr: errors.New("boom")}
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	if _, err := ResolveGroup(context.Background(), board, "board-1", date, discardLogger()); err == nil {
		t.Fatalf("expected list error to propagate")
	}
	if len(board.createGroupCalls) != 0 {
		t.Fatalf("must not create a group when the lookup failed")
	}
}

func TestResolveGroup_EmptyCreatedIdIsAnError(t *testing.T) {
	board := &fakeBoard{emptyGroupId: true}
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	if _, err := ResolveGroup(context.Background(), board, "board-1", date, discardLogger()); err == nil {
		t.Fatalf("expected an error when the board returns no group id")
	}
}
