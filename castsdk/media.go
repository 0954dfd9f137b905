package castsdk

// StreamType of a MediaInfo.
type StreamType string

const (
	StreamTypeBuffered StreamType = "BUFFERED"
	StreamTypeLive     StreamType = "LIVE"
)

// MetadataType values for the "metadataType" metadata key.
const (
	MetadataTypeGeneric = 0
	MetadataTypeMovie   = 1
)

// TrackType of a Track.
type TrackType string

const (
	TrackTypeText  TrackType = "TEXT"
	TrackTypeAudio TrackType = "AUDIO"
	TrackTypeVideo TrackType = "VIDEO"
)

// TextTrackType is the subtype of a text Track.
type TextTrackType string

const (
	TextTrackSubtitles    TextTrackType = "SUBTITLES"
	TextTrackCaptions     TextTrackType = "CAPTIONS"
	TextTrackDescriptions TextTrackType = "DESCRIPTIONS"
	TextTrackChapters     TextTrackType = "CHAPTERS"
	TextTrackMetadata     TextTrackType = "METADATA"
)

// TextTrackEdgeType of a TextTrackStyle.
type TextTrackEdgeType string

const (
	EdgeTypeNone       TextTrackEdgeType = "NONE"
	EdgeTypeOutline    TextTrackEdgeType = "OUTLINE"
	EdgeTypeDropShadow TextTrackEdgeType = "DROP_SHADOW"
)

// TextTrackWindowType of a TextTrackStyle.
type TextTrackWindowType string

const (
	WindowTypeNone           TextTrackWindowType = "NONE"
	WindowTypeNormal         TextTrackWindowType = "NORMAL"
	WindowTypeRoundedCorners TextTrackWindowType = "ROUNDED_CORNERS"
)

// Image is a URL with optional dimensions, used for posters.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Track is a media track description.
type Track struct {
	TrackID          int           `json:"trackId"`
	Type             TrackType     `json:"type"`
	Subtype          TextTrackType `json:"subtype,omitempty"`
	TrackContentID   string        `json:"trackContentId"`
	TrackContentType string        `json:"trackContentType"`
	Name             string        `json:"name,omitempty"`
	Language         string        `json:"language,omitempty"`
	CustomData       any           `json:"customData,omitempty"`
}

// TextTrackStyle controls how the receiver renders text tracks.
type TextTrackStyle struct {
	FontScale       float64             `json:"fontScale"`
	FontFamily      string              `json:"fontFamily"`
	ForegroundColor string              `json:"foregroundColor"`
	BackgroundColor string              `json:"backgroundColor"`
	EdgeType        TextTrackEdgeType   `json:"edgeType"`
	WindowType      TextTrackWindowType `json:"windowType"`
}

// MediaInfo describes what the receiver should play.
type MediaInfo struct {
	ContentID      string          `json:"contentId"`
	ContentType    string          `json:"contentType"`
	StreamType     StreamType      `json:"streamType"`
	Duration       float64         `json:"duration,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	Tracks         []Track         `json:"tracks,omitempty"`
	TextTrackStyle *TextTrackStyle `json:"textTrackStyle,omitempty"`
}

// LoadRequest is passed to Session.LoadMedia.
type LoadRequest struct {
	Media          MediaInfo
	Autoplay       bool
	CurrentTime    float64
	ActiveTrackIDs []int
}
