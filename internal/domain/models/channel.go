package models

import "github.com/google/uuid"

// ChannelProfile is the public view of a user as a channel: the account
// fields plus subscription counters relative to the viewing user.
type ChannelProfile struct {
	ID                uuid.UUID `json:"id"`
	Username          string    `json:"username"`
	FullName          string    `json:"full_name"`
	Email             string    `json:"email"`
	AvatarURL         string    `json:"avatar_url"`
	CoverImageURL     string    `json:"cover_image_url"`
	SubscriberCount   int64     `json:"subscribers_count"`
	SubscribedToCount int64     `json:"channels_subscribed_to_count"`
	IsSubscribed      bool      `json:"is_subscribed"`
}
