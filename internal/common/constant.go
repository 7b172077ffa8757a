// Package common contains shared constants and sentinel errors used across
// DriveKeeper components.
package common

// AuthorizationHeaderName is the HTTP header used to carry the access token
// on outbound API requests.
const AuthorizationHeaderName = "Authorization"

// Virtual container identifiers. Items whose parent is one of these live in
// a synthetic root rather than in a user folder.
const (
	ParentBase  = "base"
	ParentTrash = "trash"
	ParentLinks = "links"
)

// Item types as stored in item records and bucket listings.
const (
	ItemTypeFile   = "file"
	ItemTypeFolder = "folder"
)
