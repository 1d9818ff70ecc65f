package beacon

// requiredScopes is the fixed scope table consulted by the permission gate.
// A kind missing from the table is never authorized.
var requiredScopes = map[MessageType][]PermissionScope{
	PermissionRequest:  nil,
	SignPayloadRequest: {ScopeSign},
	OperationRequest:   {ScopeOperationRequest},
	BroadcastRequest:   nil,
}

// RequiredScopes returns the scopes an account needs to issue kind, and false
// when the kind is not a known request.
func RequiredScopes(kind MessageType) ([]PermissionScope, bool) {
	scopes, ok := requiredScopes[kind]
	if !ok {
		return nil, false
	}
	return append([]PermissionScope(nil), scopes...), true
}
