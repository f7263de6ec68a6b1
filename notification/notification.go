// Package notification implements the notification log (spec §4.5): a
// globally-ordered, section-addressable view over everything an
// ApplicationRecorder has accepted, plus a forward Reader for followers and
// an HTTP-backed remote log for cross-process pull.
package notification

import (
	"context"
	"fmt"

	"github.com/arc-self/eventcore/recorder"
)

// Section is a contiguous run of notifications. ID describes the range
// actually returned ("first,last"), which may be narrower than requested if
// the recorder has fewer notifications or NextID is nil because the
// section came up short of the requested size.
type Section struct {
	ID     string
	Items  []recorder.Notification
	NextID string // empty means there is no next section yet
}

// Log is the notification-log contract: byte-for-byte access to one section
// at a time (Section), or a flat, limit-bounded window (Select).
type Log interface {
	Section(ctx context.Context, sectionID string) (Section, error)
	Select(ctx context.Context, start uint64, limit int) ([]recorder.Notification, error)
}

// LocalNotificationLog presents sections of a local ApplicationRecorder.
// The sectioning algorithm — including when NextID is populated — is ported
// from eventsourcing.application.LocalNotificationLog.__getitem__: a section
// only advertises a NextID when it came back exactly as full as requested,
// since a partial section means the recorder has nothing more (yet).
type LocalNotificationLog struct {
	recorder    recorder.ApplicationRecorder
	sectionSize int
}

const DefaultSectionSize = 10

// New builds a LocalNotificationLog over the given recorder.
func New(rec recorder.ApplicationRecorder, sectionSize int) *LocalNotificationLog {
	if sectionSize <= 0 {
		sectionSize = DefaultSectionSize
	}
	return &LocalNotificationLog{recorder: rec, sectionSize: sectionSize}
}

// Section parses a "first,last" requested section id, clamps its size to
// sectionSize, and returns the notifications actually available in that
// range.
func (l *LocalNotificationLog) Section(ctx context.Context, requestedSectionID string) (Section, error) {
	start, end, err := parseSectionID(requestedSectionID)
	if err != nil {
		return Section{}, err
	}
	if start < 1 {
		start = 1
	}
	limit := int(end) - int(start) + 1
	if limit < 0 {
		limit = 0
	}
	if limit > l.sectionSize {
		limit = l.sectionSize
	}

	items, err := l.Select(ctx, start, limit)
	if err != nil {
		return Section{}, err
	}

	if len(items) == 0 {
		return Section{}, nil
	}

	lastID := items[len(items)-1].ID
	section := Section{ID: formatSectionID(items[0].ID, lastID)}
	section.Items = items
	if len(items) == limit {
		section.NextID = formatSectionID(lastID+1, lastID+uint64(limit))
	}
	return section, nil
}

// Select returns up to limit notifications starting at start, failing if
// limit exceeds sectionSize — the same bound LocalNotificationLog.select
// enforces in the original implementation.
func (l *LocalNotificationLog) Select(ctx context.Context, start uint64, limit int) ([]recorder.Notification, error) {
	if limit > l.sectionSize {
		return nil, fmt.Errorf("requested limit %d greater than section size %d", limit, l.sectionSize)
	}
	return l.recorder.SelectNotifications(ctx, start, limit)
}

func formatSectionID(first, last uint64) string {
	return fmt.Sprintf("%d,%d", first, last)
}

func parseSectionID(sectionID string) (start, end uint64, err error) {
	n, scanErr := fmt.Sscanf(sectionID, "%d,%d", &start, &end)
	if scanErr != nil || n != 2 {
		return 0, 0, fmt.Errorf("malformed section id %q", sectionID)
	}
	return start, end, nil
}

// Reader walks a Log forward from a given start id, one section at a time,
// yielding notifications via the supplied callback in order. It stops at
// the first section whose NextID is empty. This mirrors
// NotificationLogReader.read in the original implementation, adapted to
// Go's push-callback style rather than a generator.
type Reader struct {
	log         Log
	sectionSize int
}

// NewReader builds a Reader over log.
func NewReader(log Log, sectionSize int) *Reader {
	if sectionSize <= 0 {
		sectionSize = DefaultSectionSize
	}
	return &Reader{log: log, sectionSize: sectionSize}
}

// Read calls visit once per notification starting at start, in ascending id
// order, until the log runs dry or visit returns an error (which Read
// propagates, stopping the walk).
func (r *Reader) Read(ctx context.Context, start uint64, visit func(recorder.Notification) error) error {
	sectionID := formatSectionID(start, start+uint64(r.sectionSize)-1)
	for {
		section, err := r.log.Section(ctx, sectionID)
		if err != nil {
			return err
		}
		for _, item := range section.Items {
			if err := visit(item); err != nil {
				return err
			}
		}
		if section.NextID == "" {
			return nil
		}
		sectionID = section.NextID
	}
}
