package links

import "time"

// Link maps a short code to its target URL plus click-tracking metadata.
// Code is the public identifier; ID only orders rows in storage.
type Link struct {
	ID            int64
	Code          string
	URL           string
	Clicks        int64
	LastClickedAt *time.Time
	CreatedAt     time.Time
}

type CreateLinkInput struct {
	URL  string
	Code string // optional custom code; generated when empty
}
