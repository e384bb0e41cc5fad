package config

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityAccess                      // Access token required
)

// EndpointSecurityConfig maps methods to their required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	"/grpc.health.v1.Health/Check": SecurityPublic,

	"/fishtank.v1.JoinRequestService/CreateFishtank":           SecurityAccess,
	"/fishtank.v1.JoinRequestService/SubmitJoinRequest":        SecurityAccess,
	"/fishtank.v1.JoinRequestService/ListPendingJoinRequests":  SecurityAccess,
	"/fishtank.v1.JoinRequestService/ResolveJoinRequest":       SecurityAccess,
	"/fishtank.v1.JoinRequestService/WatchPendingJoinRequests": SecurityAccess,
}

// GetSecurityLevel returns the security level for a method.
// Unknown methods require an access token.
func GetSecurityLevel(method string) SecurityLevel {
	if level, ok := EndpointSecurityConfig[method]; ok {
		return level
	}
	return SecurityAccess
}
