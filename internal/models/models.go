package models

import "time"

// PostSummary is the post block carried by an Announcement
type PostSummary struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Excerpt string `json:"excerpt"`
	Image   string `json:"image"`
}

// Announcement describes one newly published piece of content
type Announcement struct {
	SHA       string      `json:"sha"`
	RequestID string      `json:"requestId"`
	Post      PostSummary `json:"post"`
}

// AnnounceReceipt is the receiver's reply to an accepted Announcement
type AnnounceReceipt struct {
	OK        bool   `json:"ok"`
	Deduped   bool   `json:"deduped,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

// AnnouncedPost is the durable dedup record, unique by URL
type AnnouncedPost struct {
	URL         string    `json:"url" bson:"url" dynamodbav:"url"`
	Title       string    `json:"title,omitempty" bson:"title,omitempty" dynamodbav:"title,omitempty"`
	RequestID   string    `json:"requestId,omitempty" bson:"requestId,omitempty" dynamodbav:"requestId,omitempty"`
	SHA         string    `json:"sha,omitempty" bson:"sha,omitempty" dynamodbav:"sha,omitempty"`
	AnnouncedAt time.Time `json:"announcedAt" bson:"announcedAt" dynamodbav:"announcedAt"`
}

// NewAnnouncedPost keeps only the fields of an Announcement that survive persistence
func NewAnnouncedPost(a Announcement, now time.Time) *AnnouncedPost {
	return &AnnouncedPost{
		URL:         a.Post.URL,
		Title:       a.Post.Title,
		RequestID:   a.RequestID,
		SHA:         a.SHA,
		AnnouncedAt: now.UTC(),
	}
}

// PushMessage is the payload accepted by the push dispatcher
type PushMessage struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	URL     string `json:"url"`
}

// PushResult reports a multicast outcome
type PushResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// ContactMessage is a contact form submission
type ContactMessage struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required"`
	Website string `json:"website"`
}

// Horoscope is one sign's entry in the daily report
type Horoscope struct {
	Description string `json:"description"`
	Symbol      string `json:"symbol"`
	Dates       string `json:"dates"`
}

// HoroscopeReport is the aggregated daily horoscope response
type HoroscopeReport struct {
	Today      string               `json:"today"`
	Horoscopes map[string]Horoscope `json:"horoscopes"`
}
