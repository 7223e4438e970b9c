// Package constants centralises literal values shared across the broker:
// template tokens, sentinel message ids and HTTP header names.
package constants

// Template substitution tokens. Applied in this fixed order at publish time:
// id, event-id, channel, text. See render.Engine.
const (
	TokenChannelID = "~channel-id~"
	TokenMessageID = "~id~"
	TokenEventID   = "~event-id~"
	TokenText      = "~text~"
)

// Sentinel message ids. Real message ids are assigned starting at 1 and are
// always positive; these negative values mark system-generated messages so
// they never collide with a publisher-assigned id.
const (
	MessageIDChannelDeleted int64 = -1
	MessageIDPing           int64 = -2
)

// HTTP header names used by the streaming and long-poll wire formats.
const (
	HeaderLastModified    = "Last-Modified"
	HeaderEtag            = "ETag"
	HeaderContentType     = "Content-Type"
	HeaderTransferEncoded = "Transfer-Encoding"
	HeaderCacheControl    = "Cache-Control"
	HeaderConnection      = "Connection"

	ContentTypeEventStream = "text/event-stream"
	ContentTypeOctetStream = "application/octet-stream"
	TransferEncodingChunk  = "chunked"
)

// ViolationSizeLimit names the security-chain violation raised when a
// publish body exceeds the configured request size limit.
const ViolationSizeLimit = "size_limit"

// ViolationRateLimit names the security-chain violation raised when a
// client exceeds its configured request rate.
const ViolationRateLimit = "rate_limit"

// DefaultRequestIDHeader is the header streamhub stamps on every response
// carrying its generated request id, for correlation with access logs.
const DefaultRequestIDHeader = "X-Request-Id"

// DefaultHealthCheckEndpoint is exempt from the default per-IP rate limit
// and uses the separate health-check limit instead.
const DefaultHealthCheckEndpoint = "/health"

// HeaderXRequestID is the inbound header checked before minting a new
// request id.
const HeaderXRequestID = "X-Request-Id"

// HeaderAccept is read for access-log content negotiation fields.
const HeaderAccept = "Accept"

// ContextRequestIdKey is the structured-log field name carrying the
// request id.
const ContextRequestIdKey = "request_id"

