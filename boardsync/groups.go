package boardsync

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// GroupLabel derives the month-bucket label for a document date, e.g.
// "jan-2024". The derivation is a pure function of the date; the uppercase
// form used in log lines is cosmetic only.
func GroupLabel(date time.Time) string {
	return strings.ToLower(date.Format("Jan")) + "-" + strconv.Itoa(date.Year())
}

// ResolveGroup maps a document date to a remote group id, creating the month
// bucket on first use. Resolution is lookup-first: CreateGroup is only called
// when the label is absent, because the remote side happily creates duplicate
// groups with the same name.
//
// Known limitation: two overlapping runs can both miss the lookup and create
// the label twice. Runs are serialized by the caller, not by this function.
func ResolveGroup(ctx context.Context, board BoardAPI, boardId string, date time.Time, logger *logrus.Logger) (string, error) {
	label := GroupLabel(date)

	groups, err := board.ListGroups(ctx, boardId)
	if err != nil {
		return "", fmt.Errorf("list groups: %w", err)
	}
	if id, ok := groups[label]; ok {
		return id, nil
	}

	logger.WithFields(logrus.Fields{
		"module": "boardsync",
		"group":  label,
	}).Info("creating new board group")

	id, err := board.CreateGroup(ctx, boardId, label)
	if err != nil {
		return "", fmt.Errorf("create group %q: %w", label, err)
	}
	if id == "" {
		return "", fmt.Errorf("could not create group %q", label)
	}
	return id, nil
}
