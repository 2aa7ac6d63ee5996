package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/parable/backend/internal/models"
	"github.com/parable/backend/internal/repositories"
)

type inMemoryUserStore struct {
	users map[string]models.User
}

func newInMemoryUserStore() *inMemoryUserStore {
	return &inMemoryUserStore{users: make(map[string]models.User)}
}

func (s *inMemoryUserStore) Create(_ context.Context, user models.User) error {
	if _, exists := s.users[user.Email]; exists {
		return repositories.ErrConflict
	}
	s.users[user.Email] = user
	return nil
}

func (s *inMemoryUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	user, ok := s.users[email]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

type inMemoryProfileStore struct {
	profiles  map[string]models.Profile
	upsertErr error
	upserts   int
}

func newInMemoryProfileStore() *inMemoryProfileStore {
	return &inMemoryProfileStore{profiles: make(map[string]models.Profile)}
}

func (s *inMemoryProfileStore) Upsert(_ context.Context, profile models.Profile) error {
	s.upserts++
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.profiles[profile.UserID] = profile
	return nil
}

func (s *inMemoryProfileStore) Find(_ context.Context, userID string) (models.Profile, error) {
	profile, ok := s.profiles[userID]
	if !ok {
		return models.Profile{}, repositories.ErrNotFound
	}
	return profile, nil
}

func (s *inMemoryProfileStore) Search(_ context.Context, prefix string, limit int) ([]models.Creator, error) {
	var creators []models.Creator
	for _, profile := range s.profiles {
		if len(prefix) <= len(profile.Username) && profile.Username[:len(prefix)] == prefix {
			creators = append(creators, models.Creator{UserID: profile.UserID, Username: profile.Username})
		}
	}
	sort.Slice(creators, func(i, j int) bool { return creators[i].Username < creators[j].Username })
	if len(creators) > limit {
		creators = creators[:limit]
	}
	return creators, nil
}

type inMemoryPostStore struct {
	posts     []models.Post
	createErr error
}

func (s *inMemoryPostStore) Create(_ context.Context, post models.Post) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.posts = append(s.posts, post)
	return nil
}

func (s *inMemoryPostStore) Find(_ context.Context, id string) (models.Post, error) {
	for _, post := range s.posts {
		if post.ID == id {
			return post, nil
		}
	}
	return models.Post{}, repositories.ErrNotFound
}

func (s *inMemoryPostStore) ListFeed(_ context.Context, q repositories.FeedQuery) ([]models.Post, error) {
	matches := make([]models.Post, 0, len(s.posts))
	for _, post := range s.posts {
		if len(q.Authors) > 0 {
			found := false
			for _, author := range q.Authors {
				if post.OwnerID == author {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		matches = append(matches, post)
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID > matches[j].ID
	})

	if !q.CursorTime.IsZero() {
		filtered := matches[:0]
		for _, post := range matches {
			if post.CreatedAt.After(q.CursorTime) {
				continue
			}
			if post.CreatedAt.Equal(q.CursorTime) && post.ID >= q.CursorID {
				continue
			}
			filtered = append(filtered, post)
		}
		matches = filtered
	}

	if len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, nil
}

type inMemoryEngagement struct {
	likes     map[string]map[string]bool
	bookmarks map[string]map[string]bool
	comments  []models.Comment
}

func newInMemoryEngagement() *inMemoryEngagement {
	return &inMemoryEngagement{
		likes:     make(map[string]map[string]bool),
		bookmarks: make(map[string]map[string]bool),
	}
}

func toggleSet(set map[string]map[string]bool, postID, userID string) bool {
	if set[postID] == nil {
		set[postID] = make(map[string]bool)
	}
	if set[postID][userID] {
		delete(set[postID], userID)
		return false
	}
	set[postID][userID] = true
	return true
}

func (s *inMemoryEngagement) ToggleLike(_ context.Context, postID, userID string) (bool, error) {
	return toggleSet(s.likes, postID, userID), nil
}

func (s *inMemoryEngagement) ToggleBookmark(_ context.Context, postID, userID string) (bool, error) {
	return toggleSet(s.bookmarks, postID, userID), nil
}

func (s *inMemoryEngagement) AddComment(_ context.Context, comment models.Comment) error {
	s.comments = append(s.comments, comment)
	return nil
}

func (s *inMemoryEngagement) ListComments(_ context.Context, postID string) ([]models.Comment, error) {
	var out []models.Comment
	for _, comment := range s.comments {
		if comment.PostID == postID {
			out = append(out, comment)
		}
	}
	return out, nil
}

func (s *inMemoryEngagement) Counts(_ context.Context, postID string) (int, int, error) {
	comments := 0
	for _, comment := range s.comments {
		if comment.PostID == postID {
			comments++
		}
	}
	return len(s.likes[postID]), comments, nil
}

type inMemoryFollows struct {
	follows map[string]map[string]bool
}

func newInMemoryFollows() *inMemoryFollows {
	return &inMemoryFollows{follows: make(map[string]map[string]bool)}
}

func (s *inMemoryFollows) Toggle(_ context.Context, followerID, followeeID string) (bool, error) {
	if followerID == followeeID {
		return false, repositories.ErrConflict
	}
	return toggleSet(s.follows, followerID, followeeID), nil
}

func (s *inMemoryFollows) ListFollowees(_ context.Context, followerID string) ([]string, error) {
	var out []string
	for followee := range s.follows[followerID] {
		out = append(out, followee)
	}
	sort.Strings(out)
	return out, nil
}

func (s *inMemoryFollows) Counts(_ context.Context, userID string) (int, int, error) {
	followers := 0
	for _, followees := range s.follows {
		if followees[userID] {
			followers++
		}
	}
	return followers, len(s.follows[userID]), nil
}

func (s *inMemoryFollows) Trending(_ context.Context, limit int) ([]models.Creator, error) {
	counts := make(map[string]int)
	for _, followees := range s.follows {
		for followee := range followees {
			counts[followee]++
		}
	}
	creators := make([]models.Creator, 0, len(counts))
	for userID, followers := range counts {
		creators = append(creators, models.Creator{UserID: userID, Username: userID, Followers: followers})
	}
	sort.Slice(creators, func(i, j int) bool {
		if creators[i].Followers != creators[j].Followers {
			return creators[i].Followers > creators[j].Followers
		}
		return creators[i].Username < creators[j].Username
	})
	if len(creators) > limit {
		creators = creators[:limit]
	}
	return creators, nil
}

type inMemoryStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	saveErr   error
	deleteErr error
	deleted   []string
}

func newInMemoryStorage() *inMemoryStorage {
	return &inMemoryStorage{objects: make(map[string][]byte)}
}

func (s *inMemoryStorage) Save(_ context.Context, name string, r io.Reader) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.objects[name] = buf.Bytes()
	s.mu.Unlock()
	return fmt.Sprintf("https://media.example.com/%s", name), nil
}

func (s *inMemoryStorage) Delete(_ context.Context, name string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.mu.Lock()
	delete(s.objects, name)
	s.deleted = append(s.deleted, name)
	s.mu.Unlock()
	return nil
}

type sweeperStub struct {
	keys []string
}

func (s *sweeperStub) Enqueue(_ context.Context, key string) error {
	s.keys = append(s.keys, key)
	return nil
}

type identityStub struct {
	identity models.Identity
}

func (s identityStub) Resolve(context.Context, string) models.Identity {
	return s.identity
}

type limiterStub struct {
	allow bool
}

func (l limiterStub) Allow(string) bool { return l.allow }

type busStub struct {
	published []models.Post
	events    chan models.Post
}

func newBusStub() *busStub {
	return &busStub{events: make(chan models.Post, 8)}
}

func (b *busStub) Publish(post models.Post) {
	b.published = append(b.published, post)
	select {
	case b.events <- post:
	default:
	}
}

func (b *busStub) Subscribe() (<-chan models.Post, func()) {
	return b.events, func() {}
}
