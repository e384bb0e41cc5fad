package domain

type RequesterProfile struct {
	UserID      string `json:"user_id" firestore:"-"`
	DisplayName string `json:"display_name" firestore:"displayName"`
	AvatarURL   string `json:"avatar_url" firestore:"avatarUrl"`
}

// Contact holds the delivery addresses used to tell a user about a decision.
type Contact struct {
	UserID    string `json:"user_id" firestore:"-"`
	Email     string `json:"email" firestore:"email"`
	PushToken string `json:"push_token" firestore:"pushToken"`
}

// Actor is the authenticated user performing an operation.
type Actor struct {
	UserID string
}
