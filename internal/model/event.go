package model

import "time"

// EventType classifies a CDR event.
type EventType string

const (
	EventCall    EventType = "call"
	EventSMS     EventType = "sms"
	EventData    EventType = "data"
	EventUnknown EventType = "unknown"
)

// Direction is the network-perspective direction of an event.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionInternal Direction = "internal"
	DirectionUnknown  Direction = "unknown"
)

// LocationSource records where an event's coordinates came from.
type LocationSource string

const (
	LocationGPS     LocationSource = "gps"
	LocationCellID  LocationSource = "cell_id"
	LocationUnknown LocationSource = "unknown"
)

// ConfidenceTier buckets the 0-100 normalization confidence score.
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "high"   // score >= 80
	TierMedium ConfidenceTier = "medium" // score >= 50
	TierLow    ConfidenceTier = "low"
)

// BaselineLabel splits the batch time range into earlier/later behavior windows.
const (
	WindowBaseline = "baseline"
	WindowRecent   = "recent"
)

// Source identifies where a record came from within an upload.
type Source struct {
	File  string `json:"file"`
	Sheet string `json:"sheet,omitempty"`
	Row   int    `json:"row"` // 1-based row number within the sheet/file
}

// IntermediateRecord is one parsed row, pre-canonicalization. It lives only
// between the normalizer and the canonicalizer and is never persisted.
type IntermediateRecord struct {
	EventType   EventType
	Direction   Direction
	AParty      string
	BParty      string
	StartTime   time.Time
	StartHasTZ  bool // true when the source value carried an explicit offset/zone
	EndTime     *time.Time
	DurationSec int
	Lat         *float64
	Lng         *float64
	CellID      string
	LACID       string
	Site        string
	SiteName    string
	SiteMeta    string
	IMEI        string
	IMSI        string
	Provider    string
	Source      Source
	Warnings    []string // ordered, append-only
}

// CanonicalEvent is the durable unit produced by the pipeline. Field names in
// the json tags are the persisted schema contract; consumers read these names,
// never the raw source headers. Events are never mutated after persistence.
type CanonicalEvent struct {
	RecordID       string    `json:"record_id"`
	UploadID       string    `json:"upload_id"`
	EventType      EventType `json:"event_type"`
	TimestampUTC   time.Time `json:"timestamp_utc"`
	TimestampLocal time.Time `json:"timestamp_local"`

	// Derived from the local timestamp in the reference civil timezone,
	// never from UTC.
	Date      string `json:"date"` // YYYY-MM-DD
	Hour      int    `json:"hour"`
	DayOfWeek string `json:"day_of_week"`
	IsWeekend bool   `json:"is_weekend"`
	IsNight   bool   `json:"is_night"` // local hour >= 22 or < 6

	CallerNumber        string    `json:"caller_number"`
	ReceiverNumber      string    `json:"receiver_number"`
	Direction           Direction `json:"direction"`
	CallDurationSeconds int       `json:"call_duration_seconds"`
	ContactPairKey      string    `json:"contact_pair_key,omitempty"` // empty if either party missing

	Lat            *float64       `json:"lat,omitempty"`
	Lng            *float64       `json:"lng,omitempty"`
	CellID         string         `json:"cell_id,omitempty"`
	LACID          string         `json:"lac_id,omitempty"`
	SiteName       string         `json:"site_name,omitempty"`
	SiteMeta       string         `json:"site_meta,omitempty"`
	LocationSource LocationSource `json:"location_source"`

	IMEI     string `json:"imei,omitempty"`
	IMSI     string `json:"imsi,omitempty"`
	Provider string `json:"provider,omitempty"`

	NormalizationWarnings   []string       `json:"normalization_warnings,omitempty"`
	NormalizationConfidence int            `json:"normalization_confidence"`
	ConfidenceTier          ConfidenceTier `json:"confidence_tier"`
	IsDuplicate             bool           `json:"is_duplicate"`

	// Enrichment fields, computed batch-wide over the deduplicated set.
	ContactFirstSeen    *time.Time `json:"contact_first_seen,omitempty"`
	ContactLastSeen     *time.Time `json:"contact_last_seen,omitempty"`
	DailyEventCount     int        `json:"daily_event_count"`
	Rolling7DayAvg      float64    `json:"rolling_7day_avg"`
	Rolling30DayAvg     float64    `json:"rolling_30day_avg"`
	BurstSessionID      string     `json:"burst_session_id,omitempty"`
	BaselineWindowLabel string     `json:"baseline_window_label"`

	SourceFile  string `json:"source_file"`
	SourceSheet string `json:"source_sheet,omitempty"`
	SourceRow   int    `json:"source_row"`
}
