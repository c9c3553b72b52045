package constants

const (
	//分頁
	DefaultPagingSize int = 50
	MaxPagingSize     int = 200
)

type ContextKey string

const (
	// 上游 auth gateway 驗證後帶入的 header
	HeaderUserID         = "X-User-ID"
	HeaderUserRole       = "X-User-Role"
	HeaderRequestID      = "X-Request-ID"
	HeaderIdempotencyKey = "Idempotency-Key"

	PrincipalKey ContextKey = "principal"
)

type RequestID string

const (
	RequestIDKey RequestID = "request_id"
)

const (
	// PersistenceConflict 建議的重送間隔(秒)
	RetryAfterSeconds       = "1"
	MaxIdempotencyKeyLength = 255
)
