package model

import "time"

// File is a stored binary object: a featured image, an editor image, or an
// overflow file holding a post's full HTML content.
//
// Public mirrors an object store's "read: any" permission. Files that are not
// public can only be fetched through the authenticated download path.
// OwnerID is the user who uploaded the file; only they may delete it.
type File struct {
	ID        string    `json:"id"`
	Bucket    string    `json:"bucket"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mimeType"`
	OwnerID   string    `json:"ownerId,omitempty"`
	Size      int64     `json:"size"`
	Public    bool      `json:"public"`
	Data      []byte    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}
