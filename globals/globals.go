package globals

// JwtSecret is set from configuration during startup.
var JwtSecret = []byte("change-me")

// Context keys
type ContextKey string

const (
	RoleKey     ContextKey = "role"
	UserIDKey   ContextKey = "userId"
	UsernameKey ContextKey = "username"
	TokenIDKey  ContextKey = "tokenId"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// EventsChannel is the Redis pub/sub channel carrying booking and order events.
const EventsChannel = "trattoria-events"
