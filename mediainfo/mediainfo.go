// Package mediainfo translates what the local player is playing into the
// cast SDK's media description.
package mediainfo

import (
	"maps"
	"net/url"
	"strings"

	"go2tv.app/castbutton/castsdk"
	"go2tv.app/castbutton/player"
)

// TextTrackContentType is used for every text track; receivers only render WebVTT.
const TextTrackContentType = "text/vtt"

// Input is everything Build needs from the player and the plugin options.
type Input struct {
	SourceURL  string
	MimeType   string
	Poster     string
	Metadata   map[string]any
	TextTracks []player.TextTrack
	// Origin qualifies relative text track sources.
	Origin string
}

// DefaultTextTrackStyle is attached whenever at least one text track is sent.
func DefaultTextTrackStyle() *castsdk.TextTrackStyle {
	return &castsdk.TextTrackStyle{
		FontScale:       1.15,
		FontFamily:      "Arial",
		ForegroundColor: "#FFCC66FF",
		BackgroundColor: "#000000CC",
		EdgeType:        castsdk.EdgeTypeNone,
		WindowType:      castsdk.WindowTypeNone,
	}
}

// FromHost collects the Build input from a player.
func FromHost(h player.Host, metadata map[string]any) Input {
	return Input{
		SourceURL:  h.CurrentSource(),
		MimeType:   h.CurrentType(),
		Poster:     h.Poster(),
		Metadata:   metadata,
		TextTracks: h.TextTracks(),
		Origin:     h.Origin(),
	}
}

// Build returns the media description for in. Missing poster, metadata or
// text tracks contribute nothing.
func Build(in Input) castsdk.MediaInfo {
	info := castsdk.MediaInfo{
		ContentID:   in.SourceURL,
		ContentType: in.MimeType,
		StreamType:  castsdk.StreamTypeBuffered,
		Metadata: map[string]any{
			"metadataType": castsdk.MetadataTypeGeneric,
			"type":         castsdk.MetadataTypeGeneric,
		},
	}

	maps.Copy(info.Metadata, in.Metadata)

	if in.Poster != "" {
		info.Metadata["images"] = []castsdk.Image{{URL: in.Poster}}
	}

	tracks := make([]castsdk.Track, 0, len(in.TextTracks))
	for i, t := range in.TextTracks {
		tracks = append(tracks, castsdk.Track{
			TrackID:          i + 1,
			Type:             castsdk.TrackTypeText,
			Subtype:          castsdk.TextTrackSubtitles,
			TrackContentID:   AbsoluteURL(in.Origin, t.Src),
			TrackContentType: TextTrackContentType,
			Name:             t.Label,
			Language:         t.Language,
		})
	}

	if len(tracks) > 0 {
		info.Tracks = tracks
		info.TextTrackStyle = DefaultTextTrackStyle()
	}

	return info
}

// NewLoadRequest wraps info in an autoplaying load request starting at
// currentTime seconds.
func NewLoadRequest(info castsdk.MediaInfo, currentTime float64) castsdk.LoadRequest {
	return castsdk.LoadRequest{
		Media:       info,
		Autoplay:    true,
		CurrentTime: currentTime,
	}
}

// AbsoluteURL qualifies src with origin unless it already carries a scheme
// or is protocol relative.
func AbsoluteURL(origin, src string) string {
	if strings.HasPrefix(src, "//") {
		return src
	}

	ref, err := url.Parse(src)
	if err != nil || ref.Scheme != "" {
		return src
	}

	base, err := url.Parse(strings.TrimSuffix(origin, "/") + "/")
	if err != nil || base.Host == "" {
		return strings.TrimSuffix(origin, "/") + "/" + strings.TrimPrefix(src, "/")
	}

	return base.ResolveReference(ref).String()
}
