package models

import "strings"

// Credential identifies an authenticated session.
type Credential struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// Empty reports whether no usable token is present.
func (c Credential) Empty() bool {
	return strings.TrimSpace(c.Token) == ""
}

// ImagePayload is the uploadable form of a meal photo. It is built for a
// single submission and dropped once the request finishes.
type ImagePayload struct {
	Data      []byte
	MediaType string
	Filename  string
}
