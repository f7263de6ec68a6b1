package notification

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/arc-self/eventcore/domain"
	"github.com/arc-self/eventcore/recorder"
)

// wireNotification is the JSON shape exchanged over HTTP, ported from
// notificationlogview.JSONNotificationLogView.serialise_item: a notification
// with its opaque State payload base64-encoded.
type wireNotification struct {
	ID                uint64 `json:"id"`
	OriginatorID       string `json:"originator_id"`
	OriginatorVersion uint64 `json:"originator_version"`
	Topic             string `json:"topic"`
	State             string `json:"state"`
}

type wireSection struct {
	SectionID string             `json:"section_id"`
	NextID    string             `json:"next_id"`
	Items     []wireNotification `json:"items"`
}

func toWire(section Section) wireSection {
	w := wireSection{SectionID: section.ID, NextID: section.NextID}
	w.Items = make([]wireNotification, 0, len(section.Items))
	for _, n := range section.Items {
		w.Items = append(w.Items, wireNotification{
			ID:                n.ID,
			OriginatorID:       n.OriginatorID.String(),
			OriginatorVersion: n.OriginatorVersion,
			Topic:             n.Topic,
			State:             base64.StdEncoding.EncodeToString(n.State),
		})
	}
	return w
}

func fromWire(w wireSection) (Section, error) {
	section := Section{ID: w.SectionID, NextID: w.NextID}
	section.Items = make([]recorder.Notification, 0, len(w.Items))
	for _, item := range w.Items {
		originatorID, err := parseAggregateID(item.OriginatorID)
		if err != nil {
			return Section{}, err
		}
		state, err := base64.StdEncoding.DecodeString(item.State)
		if err != nil {
			return Section{}, fmt.Errorf("decode notification state: %w", err)
		}
		section.Items = append(section.Items, recorder.Notification{
			ID:                item.ID,
			OriginatorID:      originatorID,
			OriginatorVersion: item.OriginatorVersion,
			Topic:             item.Topic,
			State:             state,
		})
	}
	return section, nil
}

func parseAggregateID(s string) (domain.AggregateID, error) {
	id, err := domain.ParseAggregateID(s)
	if err != nil {
		return domain.AggregateID{}, fmt.Errorf("parse originator_id: %w", err)
	}
	return id, nil
}

// SectionAPI is the minimal transport contract a RemoteNotificationLog needs
// from its HTTP client: fetch the raw JSON body for one section id.
type SectionAPI interface {
	GetLogSection(ctx context.Context, sectionID string) (string, error)
}

// HTTPSectionAPI implements SectionAPI against a notification server
// exposing GET {BaseURL}/log/{section_id}, as registered by
// cmd/notifyserver.
type HTTPSectionAPI struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPSectionAPI builds a SectionAPI against baseURL, defaulting to
// http.DefaultClient when client is nil.
func NewHTTPSectionAPI(baseURL string, client *http.Client) *HTTPSectionAPI {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSectionAPI{BaseURL: baseURL, Client: client}
}

func (a *HTTPSectionAPI) GetLogSection(ctx context.Context, sectionID string) (string, error) {
	url := fmt.Sprintf("%s/log/%s", a.BaseURL, sectionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := a.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch notification log section: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read notification log section body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("notification log section %q: unexpected status %d: %s", sectionID, resp.StatusCode, body)
	}
	return string(body), nil
}

// RemoteNotificationLog presents an upstream application's notification log
// as a Log, fetching and deserialising one section at a time. It never
// caches: every Section call is a live request, matching
// remotenotificationlog.RemoteNotificationLog.
type RemoteNotificationLog struct {
	api SectionAPI
}

// NewRemoteNotificationLog builds a RemoteNotificationLog over the given
// transport.
func NewRemoteNotificationLog(api SectionAPI) *RemoteNotificationLog {
	return &RemoteNotificationLog{api: api}
}

func (r *RemoteNotificationLog) Section(ctx context.Context, sectionID string) (Section, error) {
	body, err := r.api.GetLogSection(ctx, sectionID)
	if err != nil {
		return Section{}, err
	}
	var w wireSection
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return Section{}, fmt.Errorf("decode notification log section: %w", err)
	}
	return fromWire(w)
}

// Select is not part of the remote protocol: remote followers always pull
// section by section through Section, via Reader.
func (r *RemoteNotificationLog) Select(ctx context.Context, start uint64, limit int) ([]recorder.Notification, error) {
	return nil, fmt.Errorf("notification: Select is not supported on a RemoteNotificationLog, use Section via Reader")
}
