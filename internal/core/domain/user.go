package domain

// User is a read-only directory record. PushToken is empty when the user has
// no registered device.
type User struct {
	ID        string
	Email     string
	Username  string
	PushToken string
}
