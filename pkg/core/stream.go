package core

// Stream identifies one upstream marketing data stream.
type Stream string

// Known streams.
const (
	StreamPaidSocial    Stream = "paid_social"
	StreamWebAnalytics  Stream = "web_analytics"
	StreamEcommerce     Stream = "ecommerce"
	StreamOrganicSocial Stream = "organic_social"
	StreamPodcast       Stream = "podcast"
	StreamOOH           Stream = "ooh"
)

// Streams lists every stream in a stable order.
var Streams = []Stream{
	StreamPaidSocial,
	StreamWebAnalytics,
	StreamEcommerce,
	StreamOrganicSocial,
	StreamPodcast,
	StreamOOH,
}

// Valid reports whether s is a known stream.
func (s Stream) Valid() bool {
	for _, known := range Streams {
		if s == known {
			return true
		}
	}
	return false
}
