package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind names a managed content collection.
type Kind string

const (
	KindNews       Kind = "news"
	KindEvents     Kind = "events"
	KindLeadership Kind = "leadership"
	KindGallery    Kind = "gallery"
	KindServices   Kind = "services"
	KindMessages   Kind = "messages"
	KindSettings   Kind = "settings"
)

// Kinds returns every managed collection, in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindNews,
		KindEvents,
		KindLeadership,
		KindGallery,
		KindServices,
		KindMessages,
		KindSettings,
	}
}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if s == string(k) {
			return k, nil
		}
	}
	return "", ValidationError{Field: "collection", Reason: fmt.Sprintf("unknown collection %q", s)}
}

// Status is the lifecycle state of a content item.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

func ValidStatus(s Status) bool {
	return s == StatusDraft || s == StatusPublished || s == StatusArchived
}

// Envelope carries the attributes common to every content item. CreatedAt and
// CreatedBy are immutable after creation.
type Envelope struct {
	ID        string     `json:"id"`
	Kind      Kind       `json:"kind"`
	Status    Status     `json:"status,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	CreatedBy string     `json:"createdBy"`
	UpdatedAt time.Time  `json:"updatedAt"`
	UpdatedBy string     `json:"updatedBy"`
	MergedAt  *time.Time `json:"mergedAt,omitempty"`
	MergedBy  string     `json:"mergedBy,omitempty"`
}

// Payload is the type-specific field set of a content item.
type Payload interface {
	Kind() Kind
	Validate() error
}

// Item is the envelope-plus-fields representation of one content unit.
type Item struct {
	Envelope
	Fields Payload `json:"fields"`
}

// RawItem is the wire form of Item, with the payload left undecoded.
type RawItem struct {
	Envelope
	Fields json.RawMessage `json:"fields"`
}

func (ri RawItem) Decode() (Item, error) {
	p, err := DecodePayload(ri.Envelope.Kind, ri.Fields)
	if err != nil {
		return Item{}, err
	}
	return Item{Envelope: ri.Envelope, Fields: p}, nil
}

func (it Item) Raw() (RawItem, error) {
	b, err := json.Marshal(it.Fields)
	if err != nil {
		return RawItem{}, err
	}
	return RawItem{Envelope: it.Envelope, Fields: b}, nil
}

type NewsArticle struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

func (NewsArticle) Kind() Kind { return KindNews }

func (a NewsArticle) Validate() error {
	if len(strings.TrimSpace(a.Title)) < 3 {
		return ValidationError{Field: "title", Reason: "must be at least 3 characters"}
	}
	if len(a.Title) > 200 {
		return ValidationError{Field: "title", Reason: "must be at most 200 characters"}
	}
	if strings.TrimSpace(a.Body) == "" {
		return ValidationError{Field: "body", Reason: "must not be empty"}
	}
	return nil
}

type Event struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StartsAt    time.Time `json:"startsAt"`
	Location    string    `json:"location,omitempty"`
	Capacity    int       `json:"capacity,omitempty"`
}

func (Event) Kind() Kind { return KindEvents }

func (e Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if e.StartsAt.IsZero() {
		return ValidationError{Field: "startsAt", Reason: "must be set"}
	}
	if e.Capacity < 0 {
		return ValidationError{Field: "capacity", Reason: "must not be negative"}
	}
	return nil
}

type LeadershipMember struct {
	Name     string `json:"name"`
	Position string `json:"position"`
	PhotoURL string `json:"photoUrl,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Order    int    `json:"order,omitempty"`
}

func (LeadershipMember) Kind() Kind { return KindLeadership }

func (m LeadershipMember) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(m.Position) == "" {
		return ValidationError{Field: "position", Reason: "must not be empty"}
	}
	return nil
}

type GalleryImage struct {
	Title    string     `json:"title,omitempty"`
	ImageURL string     `json:"imageUrl"`
	Caption  string     `json:"caption,omitempty"`
	TakenAt  *time.Time `json:"takenAt,omitempty"`
}

func (GalleryImage) Kind() Kind { return KindGallery }

func (g GalleryImage) Validate() error {
	if strings.TrimSpace(g.ImageURL) == "" {
		return ValidationError{Field: "imageUrl", Reason: "must not be empty"}
	}
	return nil
}

type Service struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Link        string `json:"link,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

func (Service) Kind() Kind { return KindServices }

func (s Service) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return nil
}

type ContactMessage struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
	Read    bool   `json:"read,omitempty"`
}

func (ContactMessage) Kind() Kind { return KindMessages }

func (m ContactMessage) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if !strings.Contains(m.Email, "@") {
		return ValidationError{Field: "email", Reason: "must be an email address"}
	}
	if strings.TrimSpace(m.Body) == "" {
		return ValidationError{Field: "body", Reason: "must not be empty"}
	}
	return nil
}

type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (Setting) Kind() Kind { return KindSettings }

func (s Setting) Validate() error {
	if strings.TrimSpace(s.Key) == "" {
		return ValidationError{Field: "key", Reason: "must not be empty"}
	}
	return nil
}

// NewPayload returns a zero payload for the given collection, suitable for
// JSON decoding.
func NewPayload(kind Kind) (Payload, error) {
	switch kind {
	case KindNews:
		return &NewsArticle{}, nil
	case KindEvents:
		return &Event{}, nil
	case KindLeadership:
		return &LeadershipMember{}, nil
	case KindGallery:
		return &GalleryImage{}, nil
	case KindServices:
		return &Service{}, nil
	case KindMessages:
		return &ContactMessage{}, nil
	case KindSettings:
		return &Setting{}, nil
	default:
		return nil, ValidationError{Field: "collection", Reason: fmt.Sprintf("unknown collection %q", kind)}
	}
}

func DecodePayload(kind Kind, raw []byte) (Payload, error) {
	p, err := NewPayload(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, ValidationError{Field: "fields", Reason: err.Error()}
	}
	return p, nil
}

// PayloadFields flattens a payload to an untyped field map. The
// synchronization subsystem treats payloads as opaque maps.
func PayloadFields(p Payload) (map[string]any, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func PayloadFromFields(kind Kind, fields map[string]any) (Payload, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return DecodePayload(kind, b)
}
