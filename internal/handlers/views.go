package handlers

import (
	"time"

	"github.com/parable/backend/internal/models"
)

type postView struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"ownerId"`
	MediaURL      string    `json:"mediaUrl"`
	Caption       string    `json:"caption,omitempty"`
	Filter        string    `json:"filter,omitempty"`
	PostType      string    `json:"postType"`
	CreatedAt     time.Time `json:"createdAt"`
	AuthorName    string    `json:"authorName,omitempty"`
	AuthorAvatar  string    `json:"authorAvatar,omitempty"`
	LikesCount    int       `json:"likesCount"`
	CommentsCount int       `json:"commentsCount"`
}

func newPostView(post models.Post) postView {
	return postView{
		ID:            post.ID,
		OwnerID:       post.OwnerID,
		MediaURL:      post.MediaURL,
		Caption:       post.Caption,
		Filter:        post.Filter,
		PostType:      post.PostType,
		CreatedAt:     post.CreatedAt,
		AuthorName:    post.AuthorName,
		AuthorAvatar:  post.AuthorAvatar,
		LikesCount:    post.LikesCount,
		CommentsCount: post.CommentsCount,
	}
}

type commentView struct {
	ID         string    `json:"id"`
	PostID     string    `json:"postId"`
	UserID     string    `json:"userId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
	AuthorName string    `json:"authorName,omitempty"`
}

func newCommentView(comment models.Comment) commentView {
	return commentView{
		ID:         comment.ID,
		PostID:     comment.PostID,
		UserID:     comment.UserID,
		Content:    comment.Content,
		CreatedAt:  comment.CreatedAt,
		AuthorName: comment.AuthorName,
	}
}

type creatorView struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	FullName  string `json:"fullName,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Followers int    `json:"followers"`
}

func newCreatorView(creator models.Creator) creatorView {
	return creatorView{
		UserID:    creator.UserID,
		Username:  creator.Username,
		FullName:  creator.FullName,
		AvatarURL: creator.AvatarURL,
		Followers: creator.Followers,
	}
}

type profileView struct {
	UserID             string `json:"userId"`
	Username           string `json:"username"`
	FullName           string `json:"fullName,omitempty"`
	AvatarURL          string `json:"avatarUrl,omitempty"`
	Bio                string `json:"bio,omitempty"`
	Role               string `json:"role,omitempty"`
	OnboardingComplete bool   `json:"onboardingComplete"`
	Followers          int    `json:"followers"`
	Following          int    `json:"following"`
}

func newProfileView(profile models.Profile, followers, following int) profileView {
	return profileView{
		UserID:             profile.UserID,
		Username:           profile.Username,
		FullName:           profile.FullName,
		AvatarURL:          profile.AvatarURL,
		Bio:                profile.Bio,
		Role:               profile.Role,
		OnboardingComplete: profile.OnboardingComplete,
		Followers:          followers,
		Following:          following,
	}
}
